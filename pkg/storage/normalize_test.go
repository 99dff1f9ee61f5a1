package storage

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"HTTP://Example.COM:80/Path/?utm_source=x&a=1#frag", "http://example.com/Path?a=1"},
		{"https://ex.com", "https://ex.com/"},
		{"https://ex.com:443/a/", "https://ex.com/a"},
		{"https://ex.com/?fbclid=abc", "https://ex.com/"},
		{"https://ex.com/s?q=1&msclkid=2", "https://ex.com/s?q=1"},
		{"  https://ex.com/x  ", "https://ex.com/x"},
		{"", ""},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitOrigin(t *testing.T) {
	scheme, netloc, ok := SplitOrigin("HTTPS://Shop.Example.com:8443/a?b")
	if !ok || scheme != "https" || netloc != "shop.example.com:8443" {
		t.Fatalf("SplitOrigin = %q %q %v", scheme, netloc, ok)
	}
	if _, _, ok := SplitOrigin("/relative/path"); ok {
		t.Fatalf("relative URL should not have an origin")
	}
	if !SameOrigin("http://a.example/x", "http://A.example/y") {
		t.Fatalf("expected same origin")
	}
	if SameOrigin("http://a.example/", "https://a.example/") {
		t.Fatalf("scheme must be part of the origin")
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"http://shop.foo.example.co.uk/path", "example.co.uk", true},
		{"shop.example.com", "example.com", true},
		{"example.com", "example.com", true},
		{"127.0.0.1", "", false},
		{"localhost", "", false},
	}
	for _, tt := range tests {
		got, ok := RegistrableDomain(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("RegistrableDomain(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestApexBase(t *testing.T) {
	base, apex, ok := ApexBase("https", "shop.example.com:8443")
	if !ok || base != "https://example.com" || apex != "example.com" {
		t.Fatalf("ApexBase = %q %q %v", base, apex, ok)
	}
	if _, _, ok := ApexBase("https", "example.com"); ok {
		t.Fatalf("apex host has no fallback")
	}
}
