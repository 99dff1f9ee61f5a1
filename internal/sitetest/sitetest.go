// Package sitetest serves fake websites for tests. Every host name resolves to one local server,
// and pages are looked up by host and path.
package sitetest

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Page is a canned response.
type Page struct {
	Status      int
	ContentType string
	Body        string
	// Location is sent for 3xx statuses.
	Location string
}

// HTML returns a 200 text/html page.
func HTML(body string) Page {
	return Page{Status: http.StatusOK, ContentType: "text/html; charset=utf-8", Body: body}
}

// Text returns a 200 text/plain page.
func Text(body string) Page {
	return Page{Status: http.StatusOK, ContentType: "text/plain; charset=utf-8", Body: body}
}

// Status returns an empty page with the given status.
func Status(code int) Page {
	return Page{Status: code, ContentType: "text/plain"}
}

// Server answers for every host. Unknown pages are 404.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	pages map[string]Page
	hits  map[string]int
}

// New starts a server; it is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{pages: make(map[string]Page), hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a page for "host/path", e.g. "foo.example/terms".
func (s *Server) Handle(hostPath string, p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[hostPath] = p
}

// Hits returns how many requests reached "host/path".
func (s *Server) Hits(hostPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[hostPath]
}

// HostHits returns how many requests reached any path on host.
func (s *Server) HostHits(host string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.hits {
		if strings.HasPrefix(k, host+"/") {
			n += v
		}
	}
	return n
}

// Client returns an HTTP client that sends every request to this server regardless of host.
func (s *Server) Client() *http.Client {
	addr := s.Listener.Addr().String()
	dialer := &net.Dialer{}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	key := host + r.URL.Path

	s.mu.Lock()
	s.hits[key]++
	p, ok := s.pages[key]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	if p.Location != "" {
		w.Header().Set("Location", p.Location)
	}
	status := p.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(p.Body))
	}
}
