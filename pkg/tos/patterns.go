package tos

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const wikimediaTerms = "https://foundation.wikimedia.org/wiki/Special:MyLanguage/Policy:Terms_of_Use"

// KnownTerms maps hosts whose terms page is known up front. Values are paths or absolute URLs.
var KnownTerms = map[string]string{
	"www.asoview.com":  "/terms/",
	"asoview.com":      "/terms/",
	"ja.wikipedia.org": wikimediaTerms,
	"wikipedia.org":    wikimediaTerms,
}

var candidatePaths = []string{
	"/terms", "/terms/", "/terms-of-service", "/terms-of-service/",
	"/terms-and-conditions", "/terms-and-conditions/",
	"/tos", "/tos/", "/legal/terms", "/legal/terms/",
	"/agreement", "/agreement/", "/user-agreement", "/user-agreement/",
	"/rules", "/rules/", "/guidelines", "/guidelines/",
	"/policy", "/policy/", "/policies", "/policies/", "/sitepolicy", "/sitepolicy/",
	"/kiyaku", "/kiyaku/", "/riyokiyaku", "/riyokiyaku/",
	"/利用規約", "/利用規約/", "/ご利用にあたって", "/ご利用にあたって/",
	"/ご利用条件", "/ご利用条件/", "/会員規約", "/会員規約/",
	"/guide/terms", "/guide/terms/", "/help/terms", "/help/terms/",
	"/company/terms", "/company/terms/", "/about/terms", "/about/terms/",
	"/terms.html", "/rule.html", "/rules.html", "/kiyaku.html", "/policy.html", "/agreement.html",
}

// CandidatePaths returns the conventional terms locations, shortest first.
func CandidatePaths() []string {
	out := append([]string(nil), candidatePaths...)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) < utf8.RuneCountInString(out[j])
	})
	return out
}

// representativePages are scanned for links to the terms page.
var representativePages = []string{"/", "/about/", "/company/", "/guide/", "/help/"}

// AnchorKeywords identify links and titles of terms pages. Matching is case-insensitive.
var AnchorKeywords = []string{
	"利用規約", "規約", "会員規約", "サイトポリシー", "ご利用にあたって", "ご利用条件", "約款",
	"Terms", "Terms of Service", "Terms & Conditions", "Policies", "Policy", "Legal", "Rules", "Agreement", "User Agreement",
}

// sitemapKeys select terms-like URLs out of sitemaps.
var sitemapKeys = []string{"terms", "kiyaku", "policy", "policies", "rules", "agreement", "riyokiyaku", "sitepolicy"}

// HasAnchorKeyword reports whether s mentions any anchor keyword.
func HasAnchorKeyword(s string) bool {
	if s == "" {
		return false
	}
	ls := strings.ToLower(s)
	for _, k := range AnchorKeywords {
		if strings.Contains(ls, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func hasSitemapKey(s string) bool {
	ls := strings.ToLower(s)
	for _, k := range sitemapKeys {
		if strings.Contains(ls, k) {
			return true
		}
	}
	return false
}

// Pattern families are evaluated in this order and the first match wins: prohibitions take
// precedence over permissions when a page contains both.
var (
	forbidPatterns = compileAll(
		`スクレイピング(を)?(禁止|禁ずる|しないで)`,
		`クローリング(を)?(禁止|禁ずる)`,
		`自動(化|的)手段(での)?(アクセス|取得|収集)を?禁止`,
		`(ボット|bot|ロボット|robot|クローラ|crawler|spider).*(禁止|不可|許可しない)`,
		`データ(の)?(収集|抽出|マイニング|収拾).*(禁止|不可)`,
		`無断(転載|複製|複写|再配布).*(禁止|不可)`,
		`\b(scrap(e|ing)|crawl(ing)?|spider(ing)?|harvest(ing)?|automated\s+means)\b.*(prohibit|forbid|not\s+allow|disallow|禁止)`,
	)
	allowPatterns = compileAll(
		`公式API(の)?利用(を)?認め(る|ています)`,
		`API(の)?利用(が)?可能`,
		`データ(の)?(引用|転載)は(出典明記|条件付き)で可`,
		`\bAPI\b.*(allowed|permit|利用可|ご利用いただけます)`,
		`Creative\s*Commons|CC[- ]BY|オープンデータ|Open\s*Data`,
	)
	conditionalPatterns = compileAll(
		`(事前|書面)の(許可|承諾)が必要`,
		`当社の(許諾|承認)なく.*(禁止|できません)`,
		`商用(目的|利用)は(禁止|不可)`,
		`非商用(に限り|のみ)許可`,
		`(合理的|一定)の範囲(内)?での(引用|転載).*(可|認める)`,
		`\bwith\s+prior\s+(written\s+)?consent\b`,
	)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}
