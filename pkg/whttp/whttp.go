package whttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html/charset"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/metrics"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; SpotAppRobot/1.0; +https://example.com/robot)"
	DefaultTimeout   = 12 * time.Second
	DefaultRetryMax  = 3

	defaultRetryWaitMin = 400 * time.Millisecond
	defaultRetryWaitMax = 4 * time.Second
	maxBodyBytes        = 5 << 20
)

// Options configures a Client. Zero values fall back to the package defaults.
type Options struct {
	// Kind labels fetch metrics, e.g. "robots" or "tos".
	Kind         string
	Timeout      time.Duration
	UserAgent    string
	Proxy        string
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HTTPClient replaces the pooled client, mainly for tests.
	HTTPClient *http.Client
}

// Client issues idempotent GET/HEAD requests with retries on flaky statuses.
type Client struct {
	rc        *retryablehttp.Client
	userAgent string
	kind      string
}

// Response is a fully read HTTP response with the body decoded to UTF-8 when it is text.
type Response struct {
	URL         string
	FinalURL    string
	Method      string
	StatusCode  int
	ContentType string
	Header      http.Header
	Raw         []byte
	Body        string
}

func NewClient(opts Options) (*Client, error) {
	rc := retryablehttp.NewClient()
	rc.Logger = leveledLogger{}
	rc.RetryMax = DefaultRetryMax
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	} else if opts.RetryMax < 0 {
		rc.RetryMax = 0
	}
	rc.RetryWaitMin = defaultRetryWaitMin
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	rc.RetryWaitMax = defaultRetryWaitMax
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rc.HTTPClient.Timeout = timeout

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		tr, ok := rc.HTTPClient.Transport.(*http.Transport)
		if !ok {
			return nil, errors.New("proxy requires an *http.Transport")
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	kind := opts.Kind
	if kind == "" {
		kind = "default"
	}
	return &Client{rc: rc, userAgent: ua, kind: kind}, nil
}

// checkRetry retries transport errors and 429/500/502/503/504 only.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// Get fetches rawURL following redirects.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL)
}

// Head issues a HEAD request; the returned Response has no body.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, http.MethodHead, rawURL)
}

// Probe checks existence and content type with HEAD and falls back to GET when the server does not
// support HEAD or answers ambiguously. A GET fallback response carries the body.
func (c *Client) Probe(ctx context.Context, rawURL string) (*Response, error) {
	res, err := c.Head(ctx, rawURL)
	if err == nil && !ambiguousHead(res) {
		return res, nil
	}
	if err != nil {
		utils.Log.Debugf("[whttp] HEAD %s failed (%v), retrying with GET", rawURL, err)
	}
	return c.Get(ctx, rawURL)
}

func ambiguousHead(res *Response) bool {
	switch {
	case res.StatusCode == http.StatusNotFound, res.StatusCode == http.StatusGone:
		return false
	case res.StatusCode >= 400:
		// 405, 501, 403 and friends are common answers to HEAD from servers that serve GET fine.
		return true
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return res.ContentType == ""
	}
	return true
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		metrics.Fetches.WithLabelValues(c.kind, "invalid").Inc()
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	start := time.Now()
	resp, err := c.rc.Do(req)
	metrics.FetchDuration.WithLabelValues(c.kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Fetches.WithLabelValues(c.kind, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.Fetches.WithLabelValues(c.kind, outcome(resp.StatusCode)).Inc()

	res := &Response{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		Method:      method,
		StatusCode:  resp.StatusCode,
		ContentType: strings.ToLower(resp.Header.Get("Content-Type")),
		Header:      resp.Header,
	}
	if method == http.MethodHead {
		return res, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	res.Raw = raw
	res.Body = decodeBody(raw, res.ContentType)
	return res, nil
}

func outcome(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "ok"
	case code >= 300 && code < 600:
		return strconv.Itoa(code/100) + "xx"
	}
	return "other"
}

// decodeBody converts text bodies to UTF-8, sniffing meta tags when the header names no charset.
func decodeBody(raw []byte, contentType string) string {
	if !isTextual(contentType) {
		return string(raw)
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(decoded)
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	return strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "html") ||
		strings.Contains(contentType, "xml") ||
		strings.Contains(contentType, "json")
}

// IsHTML reports whether the server declared an HTML body.
func (r *Response) IsHTML() bool {
	return r != nil && strings.Contains(r.ContentType, "text/html")
}

// IsPDF reports whether the server declared a PDF body.
func (r *Response) IsPDF() bool {
	return r != nil && strings.Contains(r.ContentType, "pdf")
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// HasBody reports whether the response was produced by a GET.
func (r *Response) HasBody() bool {
	return r != nil && r.Method == http.MethodGet
}

// leveledLogger routes retryablehttp's chatter to debug.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, kv ...interface{}) { utils.Log.Debugf("[whttp] %s %v", msg, kv) }
func (leveledLogger) Info(msg string, kv ...interface{})  { utils.Log.Debugf("[whttp] %s %v", msg, kv) }
func (leveledLogger) Debug(msg string, kv ...interface{}) { utils.Log.Debugf("[whttp] %s %v", msg, kv) }
func (leveledLogger) Warn(msg string, kv ...interface{})  { utils.Log.Debugf("[whttp] %s %v", msg, kv) }

// ErrorClass names the kind of transport failure for human-readable notes.
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var netErr net.Error
	var certErr *tls.CertificateVerificationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.As(err, &dnsErr):
		return "DNSError"
	case errors.As(err, &certErr):
		return "SSLError"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Timeout"
	case errors.As(err, &opErr):
		return "ConnectionError"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "unsupported protocol scheme") {
		return "InvalidSchema"
	}
	return "RequestError"
}
