package extract

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/width"

	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const mainTextLimit = 30000

var mainSelectors = []string{
	"main", "article", "#content", "#main", ".entry", ".post", ".page-content", ".l-main", ".c-contents",
}

// MainText returns the visible text of the first content container longer than 40 runes,
// or of the whole document.
func MainText(doc *goquery.Document) string {
	for _, sel := range mainSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if t := whttp.Text(node); utf8.RuneCountInString(t) > 40 {
			return whttp.Truncate(t, mainTextLimit)
		}
	}
	return whttp.Truncate(whttp.Text(doc.Selection), mainTextLimit)
}

// toNumber parses a digit run that may use full-width digits and thousands separators.
func toNumber(s string) (int, bool) {
	s = strings.ReplaceAll(width.Narrow.String(s), ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func looksGarbled(s string) bool {
	return strings.ContainsRune(s, utf8.RuneError)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func containsAnyFold(s string, words []string) bool {
	ls := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(ls, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// runeSpan converts a byte span of s to rune offsets.
func runeSpan(s string, start, end int) (int, int) {
	rs := utf8.RuneCountInString(s[:start])
	return rs, rs + utf8.RuneCountInString(s[start:end])
}

// window returns runes[from:to] clamped to the slice bounds.
func window(runes []rune, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}
