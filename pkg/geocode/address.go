package geocode

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/sw33tLie/spotscope/pkg/extract"
)

const postalPattern = `〒?\s*\d{3}[-‐–－]?\d{4}`

var (
	postalRe  = regexp.MustCompile(postalPattern)
	addressRe = regexp.MustCompile(`(?s)(` + postalPattern + `\s*)?(` + extract.Prefectures + `).+?[0-9０-９\-−ー－丁目番地号\.、,\sF階地]+`)
	noiseRe   = regexp.MustCompile(`(TEL|電話|営業時間|Open|OPEN|Google\s*map|Google\s*Maps)[:：]?`)
	spaceRe   = regexp.MustCompile(`\s+`)

	hyphens = strings.NewReplacer("‐", "-", "–", "-", "－", "-", "ー", "-")
)

func cleanSpaces(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ExtractJPAddress pulls the postal-code-to-block-number part out of free text.
// It returns "" when nothing looks like a Japanese address.
func ExtractJPAddress(raw string) string {
	text := hyphens.Replace(cleanSpaces(raw))
	if text == "" {
		return ""
	}
	if m := addressRe.FindString(text); m != "" {
		if loc := noiseRe.FindStringIndex(m); loc != nil {
			m = m[:loc[0]]
		}
		return cleanSpaces(m)
	}
	if loc := postalRe.FindStringIndex(text); loc != nil {
		runes := []rune(text[loc[0]:])
		if len(runes) > 64 {
			runes = runes[:64]
		}
		return cleanSpaces(string(runes))
	}
	return ""
}

// SkipAddress reports online-only venues and listings with many locations.
func SkipAddress(raw string) bool {
	return strings.Contains(raw, "オンライン") || strings.Contains(raw, "多数")
}

// simplify drops the postal code and narrows full-width characters for a second lookup.
func simplify(addr string) string {
	s := strings.TrimSpace(postalRe.ReplaceAllString(addr, ""))
	return cleanSpaces(hyphens.Replace(width.Narrow.String(s)))
}
