package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/storage"
)

// FacilityColumns is the header of the facility output.
var FacilityColumns = []string{
	"url", "final_url", "source_page", "title", "address",
	"discount_text", "discount_value_yen", "discount_percent",
	"used_llm", "hop_used", "quality_flags", "error",
}

// AggregatorHosts are hosts that list venues rather than being one.
var AggregatorHosts = []string{
	"prtimes.jp", "news.yahoo.co.jp", "twitter.com", "x.com", "navitime.co.jp",
	"tripadvisor.com", "pinterest.com", "note.com", "instagram.com", "facebook.com",
}

const (
	FlagFetchFailed     = "fetch_failed"
	FlagTitleShort      = "title_short"
	FlagTitleGarbled    = "title_garbled"
	FlagTitleGeneric    = "title_generic"
	FlagAddrEmpty       = "addr_empty"
	FlagAddrNotJPLike   = "addr_not_jp_like"
	FlagAddrGarbled     = "addr_garbled"
	FlagDiscMissing     = "disc_missing"
	FlagYenUnreasonable = "yen_unreasonable"
	FlagPctUnreasonable = "pct_unreasonable"
	FlagAggregator      = "looks_like_aggregator"
)

// Result is the outcome of extracting one page. Numeric fields only ever hold in-range values;
// use SetYen and SetPercent to change them and Recompute to refresh Flags.
type Result struct {
	URL          string
	FinalURL     string
	SourcePage   string
	Title        string
	Address      string
	DiscountText string
	Yen          *int
	Percent      *int
	UsedLLM      bool
	HopUsed      bool
	Flags        []string
	Error        string

	yenRejected bool
	pctRejected bool
}

// ReasonableYen reports whether v is a plausible student price.
func ReasonableYen(v int) bool { return v >= YenMin && v <= YenMax }

// ReasonablePercent reports whether v is a plausible discount rate.
func ReasonablePercent(v int) bool { return v >= PctMin && v <= PctMax }

// SetYen stores v when it is in range. An out-of-range offer is remembered for the
// yen_unreasonable flag but never stored.
func (r *Result) SetYen(v *int) bool {
	if v == nil {
		return false
	}
	if !ReasonableYen(*v) {
		if r.Yen == nil {
			r.yenRejected = true
		}
		return false
	}
	n := *v
	r.Yen, r.yenRejected = &n, false
	return true
}

// SetPercent is SetYen for percentages.
func (r *Result) SetPercent(v *int) bool {
	if v == nil {
		return false
	}
	if !ReasonablePercent(*v) {
		if r.Percent == nil {
			r.pctRejected = true
		}
		return false
	}
	n := *v
	r.Percent, r.pctRejected = &n, false
	return true
}

// HasDiscount reports whether any discount signal is present.
func (r *Result) HasDiscount() bool {
	return r.Yen != nil || r.Percent != nil || r.DiscountText != ""
}

// Recompute derives Flags from the current field values.
func (r *Result) Recompute() {
	if r.Error != "" {
		r.Flags = []string{FlagFetchFailed}
		return
	}
	set := make(map[string]struct{})
	add := func(f string) { set[f] = struct{}{} }

	if runeLen(r.Title) < 3 {
		add(FlagTitleShort)
	}
	if looksGarbled(r.Title) {
		add(FlagTitleGarbled)
	}
	if IsGenericTitle(r.Title) {
		add(FlagTitleGeneric)
	}

	if r.Address == "" {
		add(FlagAddrEmpty)
	} else if !LooksJapanese(r.Address) {
		add(FlagAddrNotJPLike)
	}
	if looksGarbled(r.Address) {
		add(FlagAddrGarbled)
	}

	if r.Yen == nil && r.Percent == nil && !hasStudentMention(r.DiscountText) {
		add(FlagDiscMissing)
	}
	if r.Yen == nil && r.yenRejected {
		add(FlagYenUnreasonable)
	}
	if r.Percent == nil && r.pctRejected {
		add(FlagPctUnreasonable)
	}

	host := storage.Netloc(r.FinalURL)
	if host == "" {
		host = storage.Netloc(r.URL)
	}
	for _, h := range AggregatorHosts {
		if strings.Contains(host, h) {
			add(FlagAggregator)
			break
		}
	}

	r.Flags = r.Flags[:0]
	for f := range set {
		r.Flags = append(r.Flags, f)
	}
	sort.Strings(r.Flags)
}

// Has reports whether flag is set.
func (r *Result) Has(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// hasPrefix reports whether any flag starts with prefix.
func (r *Result) hasPrefix(prefix string) bool {
	for _, f := range r.Flags {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

// needsLLM reports whether the rule pass left a failing field.
func (r *Result) needsLLM() bool {
	return r.hasPrefix("title_") || r.hasPrefix("addr_") ||
		r.Has(FlagDiscMissing) || r.Has(FlagYenUnreasonable) || r.Has(FlagPctUnreasonable)
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Row renders the result with FacilityColumns.
func (r *Result) Row() csvio.Row {
	return csvio.Row{
		"url":                r.URL,
		"final_url":          r.FinalURL,
		"source_page":        r.SourcePage,
		"title":              r.Title,
		"address":            r.Address,
		"discount_text":      r.DiscountText,
		"discount_value_yen": intCell(r.Yen),
		"discount_percent":   intCell(r.Percent),
		"used_llm":           yesNo(r.UsedLLM),
		"hop_used":           yesNo(r.HopUsed),
		"quality_flags":      strings.Join(r.Flags, "|"),
		"error":              r.Error,
	}
}
