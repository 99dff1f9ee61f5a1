package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/spotscope/pkg/storage"
)

// PriceKeywords mark links to fee or ticket pages.
var PriceKeywords = []string{
	"料金", "ご利用料金", "利用料金", "価格", "プライス", "チケット", "入場料",
	"Fee", "Fees", "Price", "Prices", "Ticket", "Admission",
}

// priceLinks returns up to max same-origin links whose anchor text mentions a price.
func priceLinks(pageURL string, doc *goquery.Document, max int) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	self := storage.NormalizeURL(pageURL)
	seen := make(map[string]struct{})

	var out []string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if text == "" || !containsAnyFold(text, PriceKeywords) {
			return true
		}
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		u := abs.String()
		if !storage.SameOrigin(u, pageURL) {
			return true
		}
		key := storage.NormalizeURL(u)
		if key == self {
			return true
		}
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
		out = append(out, u)
		return len(out) < max
	})
	return out
}
