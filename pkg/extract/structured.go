package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

var preferredTypes = map[string]bool{
	"Place":         true,
	"LocalBusiness": true,
	"Organization":  true,
	"Event":         true,
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)

// structured holds what embedded metadata says about the page.
type structured struct {
	name      string
	address   string
	microdata string
}

func parseStructured(doc *goquery.Document) structured {
	blocks := jsonLDBlocks(doc)
	sd := structured{
		address:   jsonLDAddress(blocks),
		microdata: microdataAddress(doc),
	}
	for _, b := range blocks {
		if preferredTypes[typeOf(b)] {
			if n := strings.TrimSpace(b.Get("name").String()); n != "" {
				sd.name = n
				break
			}
		}
	}
	return sd
}

// jsonLDBlocks returns every JSON-LD object on the page. Top-level arrays are flattened and
// a malformed script is scanned for standalone objects.
func jsonLDBlocks(doc *goquery.Document) []gjson.Result {
	var out []gjson.Result
	add := func(r gjson.Result) {
		if r.IsObject() {
			out = append(out, r)
		}
	}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		if gjson.Valid(text) {
			r := gjson.Parse(text)
			if r.IsArray() {
				r.ForEach(func(_, v gjson.Result) bool {
					add(v)
					return true
				})
				return
			}
			add(r)
			return
		}
		utils.Log.Debugf("[extract] malformed JSON-LD block (%d bytes), scanning for objects", len(text))
		for _, m := range jsonObjectRe.FindAllString(text, -1) {
			if gjson.Valid(m) {
				add(gjson.Parse(m))
			}
		}
	})
	return out
}

func typeOf(obj gjson.Result) string {
	t := obj.Get("@type")
	if t.IsArray() {
		for _, v := range t.Array() {
			if v.Type == gjson.String {
				return v.String()
			}
		}
		return ""
	}
	return t.String()
}

// jsonLDAddress prefers venue-like types and falls back to any block carrying an address.
func jsonLDAddress(blocks []gjson.Result) string {
	for _, b := range blocks {
		if preferredTypes[typeOf(b)] {
			if s := pickAddress(b); s != "" {
				return s
			}
		}
	}
	for _, b := range blocks {
		if s := pickAddress(b); s != "" {
			return s
		}
	}
	return ""
}

func pickAddress(node gjson.Result) string {
	if !node.IsObject() {
		return ""
	}
	if a := node.Get("address"); a.Exists() {
		if s := flattenAddress(a); s != "" {
			return s
		}
	}
	if loc := node.Get("location"); loc.IsObject() {
		if s := flattenAddress(loc.Get("address")); s != "" {
			return s
		}
	}
	var found string
	node.ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.IsObject():
			found = pickAddress(v)
		case v.IsArray():
			v.ForEach(func(_, it gjson.Result) bool {
				found = pickAddress(it)
				return found == ""
			})
		}
		return found == ""
	})
	return found
}

func flattenAddress(a gjson.Result) string {
	switch {
	case a.IsObject():
		var parts []string
		for _, k := range []string{"postalCode", "addressRegion", "addressLocality", "streetAddress"} {
			if v := strings.TrimSpace(a.Get(k).String()); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, " ")
	case a.Type == gjson.String:
		return strings.TrimSpace(a.String())
	}
	return ""
}

func microdataAddress(doc *goquery.Document) string {
	for _, sel := range []string{`[itemprop="address"]`, `[itemtype*="PostalAddress"]`} {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := whttp.Text(s); utf8.RuneCountInString(t) >= 6 {
				found = t
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}
