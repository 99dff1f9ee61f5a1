package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/spotscope/pkg/whttp"
)

// Prefectures is the alternation of all 47 prefecture names.
const Prefectures = "北海道|青森県|岩手県|宮城県|秋田県|山形県|福島県|茨城県|栃木県|群馬県|埼玉県|千葉県|東京都|神奈川県|" +
	"新潟県|富山県|石川県|福井県|山梨県|長野県|岐阜県|静岡県|愛知県|三重県|滋賀県|京都府|大阪府|兵庫県|奈良県|和歌山県|" +
	"鳥取県|島根県|岡山県|広島県|山口県|徳島県|香川県|愛媛県|高知県|福岡県|佐賀県|長崎県|熊本県|大分県|宮崎県|鹿児島県|沖縄県"

const postalPattern = `〒\s*\d{3}[-‐–－]?\d{4}`

var (
	PostalRe      = regexp.MustCompile(postalPattern)
	PrefectureRe  = regexp.MustCompile(Prefectures)
	addressRe     = regexp.MustCompile(`(?s)(` + postalPattern + `\s*)?(` + Prefectures + `).+?[0-9０-９\-－丁目番地号\.、,\s]+`)
	labelledRe    = regexp.MustCompile(`(住所|所在地)[:：]\s*([^\n\r<]{1,80})`)
	blockNumberRe = regexp.MustCompile(`[0-9０-９]+(丁目|番地|−|-)`)
	addrNoiseRe   = regexp.MustCompile(`(TEL|電話|営業時間|Open|OPEN)[:：]?`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

var accessSelectors = []string{"#access", ".access", "section.access", "div.access"}

// ScoreAddress rates how much s looks like a Japanese street address.
func ScoreAddress(s string) int {
	score := 0
	if PostalRe.MatchString(s) {
		score += 3
	}
	if PrefectureRe.MatchString(s) {
		score += 3
	}
	if blockNumberRe.MatchString(s) {
		score += 2
	}
	if utf8.RuneCountInString(s) >= 10 {
		score++
	}
	return score
}

// LooksJapanese reports whether s names a prefecture.
func LooksJapanese(s string) bool {
	return PrefectureRe.MatchString(s)
}

// CleanAddress cuts trailing phone and opening-hours text.
func CleanAddress(s string) string {
	if loc := addrNoiseRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.Trim(whttp.CollapseSpace(s), " ・,、。|>/")
}

// AddressCandidates finds labelled addresses and prefecture-anchored spans in text, in order of appearance.
func AddressCandidates(text string) []string {
	var cands []string
	for _, m := range labelledRe.FindAllStringSubmatch(text, -1) {
		cands = append(cands, strings.TrimSpace(m[2]))
	}
	runes := []rune(text)
	for _, loc := range addressRe.FindAllStringIndex(text, -1) {
		rs, re := runeSpan(text, loc[0], loc[1])
		c := whttp.CollapseSpace(window(runes, rs-10, re+10))
		cands = append(cands, strings.Trim(c, " ・,、。|>/"))
	}

	var out []string
	seen := make(map[string]struct{})
	for _, c := range cands {
		key := spacesRe.ReplaceAllString(c, "")
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// BestAddress returns the highest scoring candidate, the first one on ties.
func BestAddress(cands []string) string {
	best, bestScore := "", -1
	for _, c := range cands {
		if s := ScoreAddress(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// ruleAddress tries structured data, then access sections, then the page text.
func ruleAddress(doc *goquery.Document, sd structured, mainText string) string {
	if sd.address != "" && ScoreAddress(sd.address) >= 4 {
		return CleanAddress(sd.address)
	}
	if sd.microdata != "" && ScoreAddress(sd.microdata) >= 4 {
		return CleanAddress(sd.microdata)
	}
	for _, sel := range accessSelectors {
		sec := doc.Find(sel).First()
		if sec.Length() == 0 {
			continue
		}
		if a := BestAddress(AddressCandidates(whttp.Text(sec))); a != "" {
			return CleanAddress(a)
		}
	}
	text := mainText + " " + whttp.Text(doc.Selection)
	return CleanAddress(BestAddress(AddressCandidates(text)))
}
