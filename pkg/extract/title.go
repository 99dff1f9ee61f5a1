package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const maxTitleRunes = 48

// GenericTitleWords are page titles that say nothing about the venue.
var GenericTitleWords = []string{
	"公式サイト", "公式", "ホームページ", "TOP", "トップ", "トップページ", "HOME", "Home",
	"お知らせ", "ニュース", "最新情報", "サイト", "インフォメーション", "案内", "予約", "アクセス",
}

var (
	titleSepRe    = regexp.MustCompile(`\s*[｜|\-—–·・:：»›]+\s*`)
	titleChromeRe = regexp.MustCompile(`[（(].{0,12}?(公式|ホームページ|サイト|TOP|トップ).{0,12}?[）)]`)
)

func isGenericWord(s string) bool {
	for _, w := range GenericTitleWords {
		if strings.EqualFold(w, s) {
			return true
		}
	}
	return false
}

// CleanTitle keeps the first meaningful segment of a page title and strips site chrome.
func CleanTitle(raw string) string {
	t := whttp.CollapseSpace(raw)
	if t == "" {
		return ""
	}
	parts := titleSepRe.Split(t, -1)
	chosen := strings.TrimSpace(parts[0])
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" && !isGenericWord(p) {
			chosen = p
			break
		}
	}
	if isGenericWord(chosen) {
		return ""
	}
	chosen = strings.TrimSpace(titleChromeRe.ReplaceAllString(chosen, ""))
	if utf8.RuneCountInString(chosen) > maxTitleRunes {
		chosen = strings.TrimRight(whttp.Truncate(chosen, maxTitleRunes), " ")
	}
	return chosen
}

// IsGenericTitle reports an empty, very short or boilerplate title.
func IsGenericTitle(t string) bool {
	s := strings.TrimSpace(t)
	if utf8.RuneCountInString(s) < 3 {
		return true
	}
	for _, w := range GenericTitleWords {
		if s == w {
			return true
		}
	}
	return false
}

// bestTitle walks the title sources in priority order and returns the first usable one.
func bestTitle(doc *goquery.Document, structuredName string) string {
	meta := func(prop string) string {
		v, _ := doc.Find(`meta[property="` + prop + `"]`).First().Attr("content")
		return v
	}
	candidates := []string{
		structuredName,
		meta("og:site_name"),
		meta("og:title"),
		doc.Find("title").First().Text(),
		whttp.Text(doc.Find("h1").First()),
	}
	for _, c := range candidates {
		if t := CleanTitle(c); t != "" && !IsGenericTitle(t) {
			return t
		}
	}
	return ""
}
