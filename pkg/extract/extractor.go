package extract

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/llm"
	"github.com/sw33tLie/spotscope/pkg/metrics"
	"github.com/sw33tLie/spotscope/pkg/politeness"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const DefaultMaxHops = 2

// Options controls an Extractor. A nil LLM disables the model pass.
type Options struct {
	LLM            llm.Client
	LLMConcurrency int
	Hop            bool
	MaxHops        int
	// HopDelay is waited before each hop fetch.
	HopDelay time.Duration
}

// Extractor pulls venue facts out of pages.
type Extractor struct {
	client *whttp.Client
	llm    llm.Client
	opts   Options
}

func New(client *whttp.Client, opts Options) *Extractor {
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	if opts.LLMConcurrency <= 0 {
		opts.LLMConcurrency = llm.DefaultMaxConcurrency
	}
	return &Extractor{client: client, llm: opts.LLM, opts: opts}
}

// page is a fetched, parsed HTML document.
type page struct {
	url  string
	doc  *goquery.Document
	main string
}

// fetch returns the parsed page, or the error marker for a result row.
func (x *Extractor) fetch(ctx context.Context, rawURL string) (*page, string) {
	res, err := x.client.Get(ctx, rawURL)
	if err != nil {
		utils.Log.Debugf("[extract] %s: %v", rawURL, err)
		return nil, "fetch_failed:no_resp"
	}
	if !res.IsHTML() || res.Body == "" {
		return nil, "fetch_failed:" + res.ContentType
	}
	doc, err := res.Document()
	if err != nil {
		return nil, "fetch_failed:" + res.ContentType
	}
	return &page{url: res.FinalURL, doc: doc, main: MainText(doc)}, ""
}

// ruleFields is the deterministic part of extraction for one page.
type ruleFields struct {
	title    string
	address  string
	discount Discount
}

func rules(p *page) ruleFields {
	sd := parseStructured(p.doc)
	return ruleFields{
		title:    bestTitle(p.doc, sd.name),
		address:  ruleAddress(p.doc, sd, p.main),
		discount: ruleDiscount(p.doc, p.main),
	}
}

// Extract runs fetch, rules, the optional model pass and the optional price-page hop for rawURL.
// Failures are reported in the result, never returned.
func (x *Extractor) Extract(ctx context.Context, rawURL string) Result {
	r := x.extract(ctx, rawURL)
	outcome := "ok"
	switch {
	case r.Error != "":
		outcome = "failed"
	case r.Has(FlagDiscMissing):
		outcome = "no_discount"
	}
	metrics.ExtractResults.WithLabelValues(outcome).Inc()
	return r
}

func (x *Extractor) extract(ctx context.Context, rawURL string) Result {
	r := Result{URL: rawURL, FinalURL: rawURL, SourcePage: rawURL}

	p, failure := x.fetch(ctx, rawURL)
	if p == nil {
		r.Error = failure
		r.Recompute()
		return r
	}
	r.FinalURL, r.SourcePage = p.url, p.url

	rf := rules(p)
	r.Title = rf.title
	r.Address = rf.address
	r.DiscountText = rf.discount.Text
	r.SetYen(rf.discount.Yen)
	r.SetPercent(rf.discount.Percent)
	r.Recompute()

	if x.llm != nil && r.needsLLM() {
		x.applyLLM(ctx, &r, p)
		r.Recompute()
	}

	if x.opts.Hop && !r.HasDiscount() {
		x.hop(ctx, &r, p)
		r.Recompute()
	}
	return r
}

// applyLLM fills only the fields the rule pass left empty or failing.
func (x *Extractor) applyLLM(ctx context.Context, r *Result, p *page) {
	got, ok := x.llmFields(ctx, p.url, p.main)
	if !ok {
		return
	}
	r.UsedLLM = true
	if got.title != "" && r.hasPrefix("title_") {
		r.Title = got.title
	}
	if got.address != "" && r.hasPrefix("addr_") {
		r.Address = CleanAddress(got.address)
	}
	if got.discount.Text != "" && r.DiscountText == "" {
		r.DiscountText = got.discount.Text
	}
	if r.Yen == nil {
		r.SetYen(got.discount.Yen)
	}
	if r.Percent == nil {
		r.SetPercent(got.discount.Percent)
	}
}

// hop follows price-like links on the same site until one yields a discount.
func (x *Extractor) hop(ctx context.Context, r *Result, p *page) {
	for _, link := range priceLinks(p.url, p.doc, x.opts.MaxHops) {
		r.HopUsed = true
		if err := politeness.Sleep(ctx, x.opts.HopDelay); err != nil {
			return
		}
		hp, failure := x.fetch(ctx, link)
		if hp == nil {
			utils.Log.Debugf("[extract] hop %s: %s", link, failure)
			continue
		}
		rf := rules(hp)
		if r.DiscountText == "" {
			r.DiscountText = rf.discount.Text
		}
		if r.Yen == nil {
			r.SetYen(rf.discount.Yen)
		}
		if r.Percent == nil {
			r.SetPercent(rf.discount.Percent)
		}
		if r.Address == "" {
			r.Address = rf.address
		}
		if r.Title == "" {
			r.Title = rf.title
		}
		if r.HasDiscount() {
			utils.Log.Debugf("[extract] discount found on hop %s", link)
			return
		}
	}
}
