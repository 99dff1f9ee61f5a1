package verdict

import (
	"strconv"
	"strings"
)

// RobotsStatus is the robots.txt answer for a single URL path.
type RobotsStatus string

const (
	RobotsAllowed RobotsStatus = "allowed"
	RobotsBlocked RobotsStatus = "blocked"
	RobotsUnknown RobotsStatus = "unknown"
)

// ParseRobotsStatus maps a CSV cell to a RobotsStatus. Anything unrecognised is unknown.
func ParseRobotsStatus(s string) RobotsStatus {
	switch RobotsStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RobotsAllowed:
		return RobotsAllowed
	case RobotsBlocked:
		return RobotsBlocked
	default:
		return RobotsUnknown
	}
}

// TosStatus is the terms-of-service answer for a domain.
type TosStatus string

const (
	TosAllowed     TosStatus = "allowed"
	TosForbidden   TosStatus = "forbidden"
	TosConditional TosStatus = "conditional"
	TosUnknown     TosStatus = "unknown"
)

// ParseTosStatus maps a CSV cell to a TosStatus. Anything unrecognised is unknown.
func ParseTosStatus(s string) TosStatus {
	switch TosStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TosAllowed:
		return TosAllowed
	case TosForbidden:
		return TosForbidden
	case TosConditional:
		return TosConditional
	default:
		return TosUnknown
	}
}

// Reason explains how a TosVerdict was reached.
type Reason string

const (
	ReasonMatchedForbid      Reason = "matched_forbid"
	ReasonMatchedAllow       Reason = "matched_allow"
	ReasonMatchedConditional Reason = "matched_conditional"
	ReasonNoSignal           Reason = "no_signal"
	ReasonFoundNoSignal      Reason = "tos_found_no_signal"
	ReasonPDF                Reason = "pdf_terms_detected"
	ReasonEmptyHTML          Reason = "empty_html"
	ReasonNotFound           Reason = "not_found"
	ReasonInvalidURL         Reason = "invalid_url"
)

// ApexPrefix marks reasons obtained from the registrable domain instead of the exact host.
const ApexPrefix = "apex:"

// WithApex returns the reason prefixed with the apex marker.
func (r Reason) WithApex() Reason {
	if r.IsApex() {
		return r
	}
	return Reason(ApexPrefix + string(r))
}

// IsApex reports whether the reason came from the apex fallback.
func (r Reason) IsApex() bool {
	return strings.HasPrefix(string(r), ApexPrefix)
}

// Base strips the apex marker.
func (r Reason) Base() Reason {
	return Reason(strings.TrimPrefix(string(r), ApexPrefix))
}

// RobotsVerdict is cached per (scheme, netloc) for one run.
type RobotsVerdict struct {
	RobotsURL  string
	HTTPStatus int
	CanFetch   RobotsStatus
	Notes      string
}

// TosVerdict is cached per netloc, and per apex domain when the fallback was used.
type TosVerdict struct {
	TosURL     string
	HTTPStatus int
	CanScrape  TosStatus
	Reason     Reason
	Evidence   string
}

// Informative reports whether the verdict says anything beyond "no terms page was found".
func (v TosVerdict) Informative() bool {
	return v.TosURL != "" || v.Reason.Base() != ReasonNotFound
}

// Decision is the merged scraping permission.
type Decision string

const (
	Yes Decision = "YES"
	No  Decision = "NO"
)

// StatusCell renders an HTTP status for CSV output, leaving it blank when no response was received.
func StatusCell(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
