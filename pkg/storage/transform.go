package storage

import (
	"net"
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// RegistrableDomain returns the eTLD+1 of a host or URL.
// e.g., "http://shop.foo.example.co.uk/path" -> "example.co.uk", true
func RegistrableDomain(s string) (string, bool) {
	host := strings.TrimSpace(s)

	// Without a scheme url.Parse puts everything in Path.
	if !strings.Contains(host, "://") && strings.Contains(host, ".") {
		host = "http://" + host
	}
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Hostname()
	} else {
		host = strings.Split(strings.Split(s, "/")[0], ":")[0]
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if !strings.Contains(host, ".") || net.ParseIP(host) != nil {
		return "", false
	}

	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return "", false
	}
	return domain, true
}

// ApexBase returns scheme://registrable for a netloc, and false when the netloc already is its apex
// or has none.
func ApexBase(scheme, netloc string) (string, string, bool) {
	host := netloc
	if h, _, err := net.SplitHostPort(netloc); err == nil {
		host = h
	}
	apex, ok := RegistrableDomain(host)
	if !ok || strings.EqualFold(apex, host) {
		return "", "", false
	}
	return scheme + "://" + apex, apex, true
}
