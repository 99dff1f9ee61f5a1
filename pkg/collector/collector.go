package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/storage"
	"github.com/sw33tLie/spotscope/pkg/workers"
)

// Columns is the header of the collector output.
var Columns = []string{"title", "url", "snippet"}

// DefaultFilters are the words a hit must mention to be kept.
var DefaultFilters = []string{"学割", "学生", "学生料金"}

const DefaultMaxResults = 100

// Record is one search hit.
type Record struct {
	Title   string
	URL     string
	Snippet string
}

// Row renders r with Columns.
func (r Record) Row() csvio.Row {
	return csvio.Row{"title": r.Title, "url": r.URL, "snippet": r.Snippet}
}

// Searcher runs one web search and returns up to max hits.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]Record, error)
}

// Options controls Collect.
type Options struct {
	// MaxResults is the number of hits asked for per keyword.
	MaxResults int
	// Filters replaces DefaultFilters when set.
	Filters []string
	Log     workers.Logger
}

// Matches reports whether the title or snippet of r contains one of filters.
func Matches(r Record, filters []string) bool {
	text := r.Title + r.Snippet
	for _, f := range filters {
		if f != "" && strings.Contains(text, f) {
			return true
		}
	}
	return false
}

// Collect searches every keyword and keeps the hits that mention a filter word, once per normalized URL.
// A keyword whose search fails is logged and skipped.
func Collect(ctx context.Context, s Searcher, keywords []string, opts Options) ([]Record, error) {
	log := workers.OrNop(opts.Log)
	max := opts.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	filters := opts.Filters
	if len(filters) == 0 {
		filters = DefaultFilters
	}

	var out []Record
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		hits, err := s.Search(ctx, kw, max)
		if err != nil {
			log.Warnf("Search for %q failed: %v", kw, err)
			continue
		}
		kept := 0
		for _, h := range hits {
			if h.URL == "" || !Matches(h, filters) {
				continue
			}
			key := storage.NormalizeURL(h.URL)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, h)
			kept++
		}
		log.Infof("%q: %d hits, %d kept", kw, len(hits), kept)
	}
	return out, nil
}

// Run collects keywords into outCSV and returns its path.
func Run(ctx context.Context, s Searcher, keywords []string, outCSV string, opts Options) (string, error) {
	records, err := Collect(ctx, s, keywords, opts)
	if err != nil {
		return "", err
	}
	t := &csvio.Table{Header: Columns}
	for _, r := range records {
		t.Rows = append(t.Rows, r.Row())
	}
	if err := csvio.WriteFile(outCSV, t); err != nil {
		return "", fmt.Errorf("writing %s: %w", outCSV, err)
	}
	workers.OrNop(opts.Log).Infof("Saved %d URLs to %s", len(records), outCSV)
	return outCSV, nil
}
