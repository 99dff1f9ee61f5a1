package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const (
	YenMin = 100
	YenMax = 100000
	PctMin = 1
	PctMax = 95

	maxDiscountText = 160
)

// StudentKeywords mark text about student pricing.
var StudentKeywords = []string{"学割", "学生", "大学生", "高校生", "専門学生", "Student", "student"}

var (
	yenRe         = regexp.MustCompile(`([0-9０-９,，]+)\s*円`)
	pctRe         = regexp.MustCompile(`([1-9][0-9]?)\s*[%％]`)
	studentHitRe  = regexp.MustCompile(`(学割|学生|学生証|Student|student)`)
	studentLineRe = regexp.MustCompile(`(大学生|高校生|専門学生|学生|学割)[^。\n\r]{0,20}?([0-9０-９,，]+)\s*円`)
)

// Discount is a student pricing signal. Nil numbers mean "not found".
type Discount struct {
	Text    string
	Yen     *int
	Percent *int
}

func (d Discount) numeric() bool {
	return d.Yen != nil || d.Percent != nil
}

// Empty reports that nothing at all was found.
func (d Discount) Empty() bool {
	return d.Text == "" && !d.numeric()
}

func ptr(n int) *int { return &n }

func firstYen(s string) *int {
	if m := yenRe.FindStringSubmatch(s); m != nil {
		if n, ok := toNumber(m[1]); ok {
			return ptr(n)
		}
	}
	return nil
}

func firstPercent(s string) *int {
	if m := pctRe.FindStringSubmatch(s); m != nil {
		if n, ok := toNumber(m[1]); ok {
			return ptr(n)
		}
	}
	return nil
}

// blockRows returns the row texts of a table, definition list or list.
func blockRows(block *goquery.Selection) []string {
	var rows []string
	switch goquery.NodeName(block) {
	case "table":
		block.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			rows = append(rows, whttp.Text(tr))
		})
	case "dl":
		block.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			dd := dt.NextAllFiltered("dd").First()
			if dd.Length() == 0 {
				return
			}
			rows = append(rows, whttp.Text(dt)+" "+whttp.Text(dd))
		})
	case "ul", "ol":
		block.Find("li").Each(func(_ int, li *goquery.Selection) {
			rows = append(rows, whttp.Text(li))
		})
	}
	return rows
}

// discountFromBlock reads the first student row of a block that mentions students.
func discountFromBlock(block *goquery.Selection) Discount {
	var d Discount
	if !containsAny(whttp.Text(block), StudentKeywords) {
		return d
	}
	for _, row := range blockRows(block) {
		if row == "" || !containsAny(row, StudentKeywords) {
			continue
		}
		if d.Text == "" {
			d.Text = whttp.Truncate(row, maxDiscountText)
		}
		if d.Yen == nil {
			d.Yen = firstYen(row)
		}
		if d.Percent == nil {
			d.Percent = firstPercent(row)
		}
		if d.numeric() {
			break
		}
	}
	return d
}

// DiscountFromText scans keyword windows of text for a price or percentage.
func DiscountFromText(text string) Discount {
	runes := []rune(text)
	var windows []string
	for _, loc := range studentHitRe.FindAllStringIndex(text, -1) {
		rs, re := runeSpan(text, loc[0], loc[1])
		windows = append(windows, window(runes, rs-120, re+200))
	}
	if len(windows) == 0 {
		windows = []string{window(runes, 0, 1600)}
	}

	var d Discount
	for _, w := range windows {
		var yenRaw string
		if m := studentLineRe.FindStringSubmatch(w); m != nil {
			yenRaw = m[2]
		} else if m := yenRe.FindStringSubmatch(w); m != nil {
			yenRaw = m[1]
		}
		pct := firstPercent(w)
		if (yenRaw != "" || pct != nil) && d.Text == "" {
			d.Text = whttp.Truncate(whttp.CollapseSpace(w), maxDiscountText)
		}
		if yenRaw != "" && d.Yen == nil {
			if n, ok := toNumber(yenRaw); ok {
				d.Yen = ptr(n)
			}
		}
		if pct != nil && d.Percent == nil {
			d.Percent = pct
		}
		if d.numeric() {
			break
		}
	}
	return d
}

// ruleDiscount prefers structured blocks and falls back to the main text.
func ruleDiscount(doc *goquery.Document, mainText string) Discount {
	var d Discount
	doc.Find("table, dl, ul, ol").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		b := discountFromBlock(block)
		if b.numeric() || (b.Text != "" && d.Text == "") {
			if b.Text != "" {
				d.Text = b.Text
			}
			if b.Yen != nil {
				d.Yen = b.Yen
			}
			if b.Percent != nil {
				d.Percent = b.Percent
			}
			return !b.numeric()
		}
		return true
	})
	if d.Empty() {
		return DiscountFromText(mainText)
	}
	return d
}

// hasStudentMention reports discount text that at least talks about students.
func hasStudentMention(s string) bool {
	return strings.Contains(s, "学")
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
