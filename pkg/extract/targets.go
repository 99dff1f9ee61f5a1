package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/storage"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

// TargetsColumns is the header of the targets output.
var TargetsColumns = []string{"source_url", "item_name", "item_url", "extraction_method", "notes"}

const (
	MethodLLM   = "llm"
	MethodMixed = "mixed"
	MethodRule  = "rule"
	MethodNone  = "none"

	NoteNoItems     = "no_items"
	NoteFetchFailed = "fetch_failed"

	maxTargetItems   = 120
	minLLMItems      = 3
	followingAnchors = 40
	ancestorDepth    = 5
)

// ExcludedHosts are social networks and booking portals that never count as a venue.
var ExcludedHosts = []string{
	"instagram.com", "www.instagram.com",
	"tiktok.com", "www.tiktok.com",
	"facebook.com", "m.facebook.com", "www.facebook.com",
	"x.com", "twitter.com", "mobile.twitter.com", "t.co",
	"line.me",
	"asoview.com", "www.asoview.com",
	"hotpepper.jp", "www.hotpepper.jp",
	"tabelog.com", "www.tabelog.com",
	"gnavi.co.jp", "www.gnavi.co.jp",
	"jalan.net", "www.jalan.net",
	"prtimes.jp", "news.yahoo.co.jp",
	"pinterest.com", "www.pinterest.com",
	"tripadvisor.com", "www.tripadvisor.com",
	"chiebukuro.yahoo.co.jp", "detail.chiebukuro.yahoo.co.jp",
}

func excludedHost(host string) bool {
	for _, h := range ExcludedHosts {
		if h == host {
			return true
		}
	}
	return false
}

var (
	targetKeywords     = []string{"学割", "学生", "Student", "student", "学生割引", "学割情報", "大学生", "高校生", "専門学生"}
	targetPriceWords   = []string{"料金", "チケット", "入場", "Price", "Ticket"}
	contentRoots       = []string{"main", "article", "#content", ".entry", ".post", ".page-content", ".l-main", ".c-contents", "body"}
	chromeAncestorTags = map[string]bool{"nav": true, "header": true, "footer": true, "aside": true}
)

// TargetItem is one venue listed on an aggregator page.
type TargetItem struct {
	Name string
	URL  string
}

// Targets is everything extracted from one aggregator page.
type Targets struct {
	Source string
	Items  []TargetItem
	Method string
	Notes  string
}

// Rows renders t with TargetsColumns. A page without items still produces one row carrying its notes.
func (t Targets) Rows() []csvio.Row {
	if len(t.Items) == 0 {
		return []csvio.Row{{
			"source_url":        t.Source,
			"extraction_method": t.Method,
			"notes":             t.Notes,
		}}
	}
	rows := make([]csvio.Row, 0, len(t.Items))
	for _, it := range t.Items {
		rows = append(rows, csvio.Row{
			"source_url":        t.Source,
			"item_name":         it.Name,
			"item_url":          it.URL,
			"extraction_method": t.Method,
			"notes":             t.Notes,
		})
	}
	return rows
}

// targetSet collects items, skipping excluded hosts and repeated url+name pairs.
type targetSet struct {
	base  *url.URL
	seen  map[string]struct{}
	items []TargetItem
}

func newTargetSet(base *url.URL) *targetSet {
	return &targetSet{base: base, seen: make(map[string]struct{})}
}

func (s *targetSet) full() bool { return len(s.items) >= maxTargetItems }

func (s *targetSet) push(name, href string) {
	name = strings.TrimSpace(name)
	var norm string
	if href = strings.TrimSpace(href); href != "" {
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		norm = storage.NormalizeURL(s.base.ResolveReference(ref).String())
		if excludedHost(storage.Netloc(norm)) {
			return
		}
	}
	if norm == "" && name == "" {
		return
	}
	key := norm + "::" + name
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, TargetItem{Name: name, URL: norm})
}

// ExtractTargets lists the venues an aggregator page points to.
func (x *Extractor) ExtractTargets(ctx context.Context, rawURL string) Targets {
	p, _ := x.fetch(ctx, rawURL)
	if p == nil {
		return Targets{Source: rawURL, Method: MethodNone, Notes: NoteFetchFailed}
	}
	base, err := url.Parse(p.url)
	if err != nil {
		return Targets{Source: rawURL, Method: MethodNone, Notes: NoteFetchFailed}
	}

	set := newTargetSet(base)
	method := MethodRule
	if x.llm != nil {
		for _, it := range x.llmTargets(ctx, p) {
			set.push(it.Name, it.URL)
		}
		if len(set.items) > 0 {
			method = MethodLLM
		}
	}

	if x.llm == nil || len(set.items) < minLLMItems {
		before := len(set.items)
		ruleTargets(p.doc, set)
		if method == MethodLLM && len(set.items) > before {
			method = MethodMixed
		}
	}

	out := Targets{Source: p.url, Items: set.items, Method: method}
	if len(out.Items) > maxTargetItems {
		out.Items = out.Items[:maxTargetItems]
	}
	if len(out.Items) == 0 {
		out.Notes = NoteNoItems
	}
	return out
}

func (x *Extractor) llmTargets(ctx context.Context, p *page) []TargetItem {
	chunks := Chunk(p.main, chunkSize, chunkOverlap)
	var out []TargetItem
	for _, r := range completeChunks(ctx, x.llm, x.opts.LLMConcurrency, targetsPrompt, p.url, chunks) {
		for _, it := range r.Get("items").Array() {
			out = append(out, TargetItem{
				Name: strings.TrimSpace(it.Get("name").String()),
				URL:  strings.TrimSpace(it.Get("url").String()),
			})
		}
	}
	return out
}

// ruleTargets adds anchors near student headings, then qualifying anchors in the content area.
func ruleTargets(doc *goquery.Document, set *targetSet) {
	order := documentOrder(doc)
	all := doc.Find("a[href]")

	doc.Find("h2, h3, h4").EachWithBreak(func(_ int, hd *goquery.Selection) bool {
		if !containsAny(whttp.Text(hd), targetKeywords) {
			return true
		}
		sib := hd.Next()
		blockText := whttp.Text(sib)
		anchors := sib.Find("a[href]")
		if anchors.Length() == 0 {
			anchors = following(all, order, hd.Get(0), followingAnchors)
		}
		blockHit := containsAny(blockText, targetKeywords)
		anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
			txt := whttp.Text(a)
			if blockHit || containsAny(txt, targetKeywords) || containsAny(txt, targetPriceWords) {
				pushAnchor(set, a, txt)
			}
			return !set.full()
		})
		return !set.full()
	})
	if set.full() {
		return
	}

	root := doc.Selection
	for _, sel := range contentRoots {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			root = s
			break
		}
	}
	root.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if inPageChrome(a) {
			return true
		}
		txt := whttp.Text(a)
		if containsAny(txt, targetKeywords) || containsAny(txt, targetPriceWords) {
			pushAnchor(set, a, txt)
		}
		return !set.full()
	})
}

func pushAnchor(set *targetSet, a *goquery.Selection, txt string) {
	href, _ := a.Attr("href")
	if strings.TrimSpace(href) == "" {
		return
	}
	name := CleanTitle(txt)
	if name == "" {
		name = txt
	}
	set.push(name, href)
}

// inPageChrome reports an anchor inside navigation, header, footer, sidebar or breadcrumbs.
func inPageChrome(a *goquery.Selection) bool {
	n := a.Get(0).Parent
	for depth := 0; n != nil && depth < ancestorDepth; depth++ {
		if n.Type == html.ElementNode {
			if chromeAncestorTags[n.Data] {
				return true
			}
			for _, attr := range n.Attr {
				if (attr.Key == "class" || attr.Key == "id") && strings.Contains(strings.ToLower(attr.Val), "breadcrumb") {
					return true
				}
			}
		}
		n = n.Parent
	}
	return false
}

// documentOrder numbers every node in a depth-first walk.
func documentOrder(doc *goquery.Document) map[*html.Node]int {
	order := make(map[*html.Node]int)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		order[n] = len(order)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return order
}

// following returns up to limit anchors that come after node in document order.
func following(anchors *goquery.Selection, order map[*html.Node]int, node *html.Node, limit int) *goquery.Selection {
	pos := order[node]
	after := anchors.FilterFunction(func(_ int, a *goquery.Selection) bool {
		return order[a.Get(0)] > pos
	})
	if after.Length() > limit {
		after = after.Slice(0, limit)
	}
	return after
}
