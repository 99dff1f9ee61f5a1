package tos

import (
	"context"
	"encoding/xml"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/spotscope/internal/utils"
)

// Limits bounds how much of a site is explored while looking for its terms page.
type Limits struct {
	Candidates     int
	LinkPages      int
	AnchorsPerPage int
	Sitemaps       int
	SitemapPerKey  int
}

// DefaultLimits are used for zero fields.
var DefaultLimits = Limits{
	Candidates:     60,
	LinkPages:      5,
	AnchorsPerPage: 10,
	Sitemaps:       5,
	SitemapPerKey:  3,
}

func (l Limits) withDefaults() Limits {
	if l.Candidates <= 0 {
		l.Candidates = DefaultLimits.Candidates
	}
	if l.LinkPages <= 0 {
		l.LinkPages = DefaultLimits.LinkPages
	}
	if l.AnchorsPerPage <= 0 {
		l.AnchorsPerPage = DefaultLimits.AnchorsPerPage
	}
	if l.Sitemaps <= 0 {
		l.Sitemaps = DefaultLimits.Sitemaps
	}
	if l.SitemapPerKey <= 0 {
		l.SitemapPerKey = DefaultLimits.SitemapPerKey
	}
	return l
}

// candidateSet hands out deduplicated candidate URLs until the cap is reached.
type candidateSet struct {
	seen map[string]struct{}
	max  int
}

func newCandidateSet(max int) *candidateSet {
	return &candidateSet{seen: make(map[string]struct{}), max: max}
}

func (s *candidateSet) full() bool {
	return len(s.seen) >= s.max
}

// add returns the URLs of in that were not seen before, within the remaining budget.
func (s *candidateSet) add(in ...string) []string {
	var out []string
	for _, u := range in {
		if s.full() {
			break
		}
		key := strings.TrimRight(u, "/")
		if key == "" {
			continue
		}
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}

func pathCandidates(base string) []string {
	paths := CandidatePaths()
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = base + p
	}
	return out
}

// linkCandidates scans the representative pages of a site for anchors that look like terms links.
func (e *Evaluator) linkCandidates(ctx context.Context, base string) []string {
	var out []string
	pages := representativePages
	if len(pages) > e.limits.LinkPages {
		pages = pages[:e.limits.LinkPages]
	}
	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		res, err := e.client.Get(ctx, base+p)
		if err != nil || res.StatusCode == 404 || !res.IsHTML() {
			continue
		}
		doc, err := res.Document()
		if err != nil {
			continue
		}
		pageURL, err := url.Parse(res.FinalURL)
		if err != nil {
			continue
		}
		n := 0
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			text := strings.TrimSpace(a.Text())
			if !HasAnchorKeyword(text) && !hasSitemapKey(decodedPath(href)) {
				return true
			}
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				return true
			}
			abs := pageURL.ResolveReference(ref)
			if abs.Scheme != "http" && abs.Scheme != "https" {
				return true
			}
			abs.Fragment = ""
			out = append(out, abs.String())
			n++
			return n < e.limits.AnchorsPerPage
		})
	}
	return out
}

func decodedPath(href string) string {
	if s, err := url.PathUnescape(href); err == nil {
		return s
	}
	return href
}

var sitemapLineRe = regexp.MustCompile(`(?im)^\s*sitemap:\s*(\S+)`)
var locRe = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapDoc covers both urlset and sitemapindex documents.
type sitemapDoc struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

// sitemapCandidates reads the sitemaps declared in robots.txt and picks terms-like URLs,
// at most SitemapPerKey per key and shortest first.
func (e *Evaluator) sitemapCandidates(ctx context.Context, base string) []string {
	res, err := e.client.Get(ctx, base+"/robots.txt")
	if err != nil || !res.OK() {
		return nil
	}
	var sitemaps []string
	for _, m := range sitemapLineRe.FindAllStringSubmatch(res.Body, -1) {
		sitemaps = append(sitemaps, m[1])
		if len(sitemaps) >= e.limits.Sitemaps {
			break
		}
	}

	var locs []string
	for _, sm := range sitemaps {
		if ctx.Err() != nil {
			break
		}
		r, err := e.client.Get(ctx, sm)
		if err != nil || !r.OK() {
			continue
		}
		locs = append(locs, parseSitemap(r.Body)...)
	}
	return pickSitemapURLs(locs, e.limits.SitemapPerKey)
}

// parseSitemap returns every <loc> of a sitemap, falling back to a plain scan when the XML is malformed.
func parseSitemap(body string) []string {
	var doc sitemapDoc
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		utils.Log.Debugf("[tos] sitemap is not valid XML, scanning for <loc>: %v", err)
		var out []string
		for _, m := range locRe.FindAllStringSubmatch(body, -1) {
			out = append(out, m[1])
		}
		return out
	}
	var out []string
	for _, l := range append(doc.URLs, doc.Sitemaps...) {
		if loc := strings.TrimSpace(l.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

func pickSitemapURLs(locs []string, perKey int) []string {
	var out []string
	for _, key := range sitemapKeys {
		var matched []string
		for _, l := range locs {
			if strings.Contains(strings.ToLower(l), key) {
				matched = append(matched, l)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool { return len(matched[i]) < len(matched[j]) })
		if len(matched) > perKey {
			matched = matched[:perKey]
		}
		out = append(out, matched...)
	}
	return out
}
