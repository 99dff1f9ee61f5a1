package tos

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/metrics"
	"github.com/sw33tLie/spotscope/pkg/storage"
	"github.com/sw33tLie/spotscope/pkg/verdict"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

// Evaluator finds and classifies the terms page of each site. Results are cached per netloc and,
// once the apex fallback has been used, per registrable domain.
type Evaluator struct {
	client *whttp.Client
	known  map[string]string
	limits Limits

	mu     sync.RWMutex
	byHost map[string]verdict.TosVerdict
	byApex map[string]verdict.TosVerdict
	group  singleflight.Group
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithLimits overrides the exploration caps; zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(e *Evaluator) { e.limits = l.withDefaults() }
}

// WithKnownTerms replaces the host to terms page shortcut table.
func WithKnownTerms(m map[string]string) Option {
	return func(e *Evaluator) { e.known = m }
}

func NewEvaluator(client *whttp.Client, opts ...Option) *Evaluator {
	e := &Evaluator{
		client: client,
		known:  KnownTerms,
		limits: DefaultLimits,
		byHost: make(map[string]verdict.TosVerdict),
		byApex: make(map[string]verdict.TosVerdict),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate returns the terms verdict for the site serving rawURL.
func (e *Evaluator) Evaluate(ctx context.Context, rawURL string) verdict.TosVerdict {
	v := e.evaluate(ctx, rawURL)
	metrics.TosVerdicts.WithLabelValues(string(v.CanScrape)).Inc()
	return v
}

func (e *Evaluator) evaluate(ctx context.Context, rawURL string) verdict.TosVerdict {
	scheme, netloc, ok := storage.SplitOrigin(rawURL)
	if !ok {
		return verdict.TosVerdict{CanScrape: verdict.TosUnknown, Reason: verdict.ReasonInvalidURL}
	}
	if v, ok := e.cached(netloc); ok {
		return v
	}
	base, apex, hasApex := storage.ApexBase(scheme, netloc)
	if hasApex {
		// Siblings of a subdomain that already fell back share its apex verdict.
		if v, ok := e.fallback(apex); ok && v.Informative() {
			v.Reason = v.Reason.WithApex()
			e.store(netloc, v)
			return v
		}
	}

	res, _, _ := e.group.Do("host:"+netloc, func() (interface{}, error) {
		if v, ok := e.cached(netloc); ok {
			return v, nil
		}
		v := e.evaluateSite(ctx, scheme+"://"+netloc, netloc)
		if !v.Informative() && hasApex {
			utils.Log.Debugf("[tos] nothing found on %s, trying %s", netloc, base)
			v = e.evaluateApex(ctx, base, apex)
			v.Reason = v.Reason.WithApex()
		}
		if ctx.Err() == nil {
			e.store(netloc, v)
		}
		return v, nil
	})
	return res.(verdict.TosVerdict)
}

// evaluateApex returns the unprefixed verdict of the registrable domain.
func (e *Evaluator) evaluateApex(ctx context.Context, base, apex string) verdict.TosVerdict {
	if v, ok := e.cachedApex(apex); ok {
		return v
	}
	res, _, _ := e.group.Do("apex:"+apex, func() (interface{}, error) {
		if v, ok := e.cachedApex(apex); ok {
			return v, nil
		}
		v := e.evaluateSite(ctx, base, apex)
		if ctx.Err() == nil {
			e.mu.Lock()
			e.byApex[apex] = v
			if _, ok := e.byHost[apex]; !ok {
				e.byHost[apex] = v
			}
			e.mu.Unlock()
		}
		return v, nil
	})
	return res.(verdict.TosVerdict)
}

func (e *Evaluator) cached(netloc string) (verdict.TosVerdict, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.byHost[netloc]
	return v, ok
}

func (e *Evaluator) fallback(apex string) (verdict.TosVerdict, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.byApex[apex]
	return v, ok
}

// cachedApex also accepts a direct evaluation of the apex host itself.
func (e *Evaluator) cachedApex(apex string) (verdict.TosVerdict, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.byApex[apex]; ok {
		return v, true
	}
	v, ok := e.byHost[apex]
	return v, ok
}

func (e *Evaluator) store(netloc string, v verdict.TosVerdict) {
	e.mu.Lock()
	e.byHost[netloc] = v
	e.mu.Unlock()
}

type outcome int

const (
	skip outcome = iota
	keep
	stop
)

// evaluateSite runs discovery and classification for one origin.
func (e *Evaluator) evaluateSite(ctx context.Context, base, host string) verdict.TosVerdict {
	if v, ok := e.evaluateKnown(ctx, base, host); ok {
		return v
	}

	notFound := verdict.TosVerdict{CanScrape: verdict.TosUnknown, Reason: verdict.ReasonNotFound}
	var last *verdict.TosVerdict
	set := newCandidateSet(e.limits.Candidates)

	stages := []func() []string{
		func() []string { return pathCandidates(base) },
		func() []string { return e.linkCandidates(ctx, base) },
		func() []string { return e.sitemapCandidates(ctx, base) },
	}
	for _, stage := range stages {
		if set.full() || ctx.Err() != nil {
			break
		}
		for _, u := range set.add(stage()...) {
			if ctx.Err() != nil {
				break
			}
			v, out := e.examine(ctx, u)
			switch out {
			case stop:
				return v
			case keep:
				last = &v
			}
		}
	}
	if last != nil {
		return *last
	}
	return notFound
}

// evaluateKnown short-circuits discovery for hosts with a known terms page.
func (e *Evaluator) evaluateKnown(ctx context.Context, base, host string) (verdict.TosVerdict, bool) {
	target, ok := e.known[strings.ToLower(host)]
	if !ok {
		return verdict.TosVerdict{}, false
	}
	if strings.HasPrefix(target, "/") {
		target = base + target
	}
	res, err := e.client.Get(ctx, target)
	if err != nil || res.StatusCode == 404 {
		return verdict.TosVerdict{}, false
	}
	if res.IsPDF() {
		return pdfVerdict(res), true
	}
	if !res.IsHTML() {
		return verdict.TosVerdict{}, false
	}
	v, out := classifyPage(res)
	if out == keep {
		v.Reason = verdict.ReasonFoundNoSignal
	}
	return v, true
}

// examine fetches one candidate and decides whether it ends the search.
func (e *Evaluator) examine(ctx context.Context, u string) (verdict.TosVerdict, outcome) {
	res, err := e.client.Probe(ctx, u)
	if err != nil || res.StatusCode == 404 {
		return verdict.TosVerdict{}, skip
	}
	if res.IsPDF() {
		return pdfVerdict(res), stop
	}
	if !res.IsHTML() {
		return verdict.TosVerdict{}, skip
	}
	if !res.HasBody() {
		res, err = e.client.Get(ctx, u)
		if err != nil || res.StatusCode == 404 || !res.IsHTML() {
			return verdict.TosVerdict{}, skip
		}
	}
	return classifyPage(res)
}

func pdfVerdict(res *whttp.Response) verdict.TosVerdict {
	return verdict.TosVerdict{
		TosURL:     res.FinalURL,
		HTTPStatus: res.StatusCode,
		CanScrape:  verdict.TosUnknown,
		Reason:     verdict.ReasonPDF,
	}
}

func classifyPage(res *whttp.Response) (verdict.TosVerdict, outcome) {
	v := verdict.TosVerdict{TosURL: res.FinalURL, HTTPStatus: res.StatusCode, CanScrape: verdict.TosUnknown}

	var text string
	if doc, err := res.Document(); err == nil {
		text = whttp.Text(doc.Selection)
	}
	if text == "" {
		v.Reason = verdict.ReasonEmptyHTML
		return v, stop
	}

	status, reason, evidence := Classify(text)
	if reason != verdict.ReasonNoSignal {
		v.CanScrape, v.Reason, v.Evidence = status, reason, evidence
		return v, stop
	}
	if HasAnchorKeyword(res.Title()) {
		v.Reason = verdict.ReasonFoundNoSignal
		return v, stop
	}
	v.Reason = verdict.ReasonNoSignal
	return v, keep
}
