package storage

import (
	"net/url"
	"strings"
)

var trackingPrefixes = []string{"utm_", "msclkid", "fbclid"}

// NormalizeURL applies the canonicalization used for URL identity: lowercase scheme and host,
// no fragment, no default port, no trailing slash and no tracking query keys.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && u.Port() == "80" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && u.Port() == "443" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	if u.RawQuery != "" {
		var kept []string
		for _, kv := range strings.Split(u.RawQuery, "&") {
			if kv == "" || isTracking(kv) {
				continue
			}
			kept = append(kept, kv)
		}
		u.RawQuery = strings.Join(kept, "&")
	}
	return u.String()
}

func isTracking(kv string) bool {
	for _, p := range trackingPrefixes {
		if strings.HasPrefix(kv, p) {
			return true
		}
	}
	return false
}

// SplitOrigin returns the scheme and lowercased netloc of a URL, or ok=false when either is missing.
func SplitOrigin(raw string) (scheme, netloc string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false
	}
	return strings.ToLower(u.Scheme), strings.ToLower(u.Host), true
}

// Netloc returns the lowercased host[:port] of a URL, or "" when it cannot be parsed.
func Netloc(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SameOrigin reports whether two URLs share scheme and netloc.
func SameOrigin(a, b string) bool {
	sa, na, ok := SplitOrigin(a)
	if !ok {
		return false
	}
	sb, nb, ok := SplitOrigin(b)
	return ok && sa == sb && na == nb
}
