package whttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func newTestClient(t *testing.T, retryMax int) *Client {
	t.Helper()
	c, err := NewClient(Options{
		Kind:         "test",
		Timeout:      2 * time.Second,
		RetryMax:     retryMax,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetRetriesFlakyStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title> Hello \n World </title></head></html>"))
	}))
	defer srv.Close()

	res, err := newTestClient(t, 3).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if !res.IsHTML() || res.Title() != "Hello World" {
		t.Fatalf("unexpected response: html=%v title=%q", res.IsHTML(), res.Title())
	}
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res, err := newTestClient(t, 3).Get(context.Background(), srv.URL+"/missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.StatusCode != http.StatusNotFound || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("status=%d calls=%d, want 404 after one call", res.StatusCode, calls)
	}
}

func TestGetReturnsLastFlakyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	res, err := newTestClient(t, 1).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", res.StatusCode)
	}
}

func TestProbeFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>terms</p>"))
	}))
	defer srv.Close()

	res, err := newTestClient(t, -1).Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !res.HasBody() || res.StatusCode != http.StatusOK || res.Body != "<p>terms</p>" {
		t.Fatalf("expected GET fallback with body, got method=%s status=%d body=%q", res.Method, res.StatusCode, res.Body)
	}
}

func TestProbeKeepsHeadAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
	}))
	defer srv.Close()

	res, err := newTestClient(t, -1).Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.HasBody() || !res.IsPDF() {
		t.Fatalf("expected HEAD pdf answer, got method=%s ctype=%s", res.Method, res.ContentType)
	}
}

func TestDecodeShiftJISFromMeta(t *testing.T) {
	page := `<html><head><meta charset="Shift_JIS"><title>学割</title></head><body>学生 500円</body></html>`
	encoded, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), page)
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	res, err := newTestClient(t, -1).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Title() != "学割" {
		t.Fatalf("title = %q, want 学割", res.Title())
	}
	doc, err := res.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if got := Text(doc.Find("body")); got != "学生 500円" {
		t.Fatalf("body text = %q", got)
	}
}

func TestTextSkipsScripts(t *testing.T) {
	res := &Response{Body: `<div><p>a</p><script>var x = 1;</script><td>b</td><style>.c{}</style>c</div>`}
	doc, err := res.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if got := Text(doc.Find("div")); got != "a b c" {
		t.Fatalf("Text = %q, want %q", got, "a b c")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"学生料金です", 2, "学生"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
