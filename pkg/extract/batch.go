package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/permission"
	"github.com/sw33tLie/spotscope/pkg/politeness"
	"github.com/sw33tLie/spotscope/pkg/storage"
	"github.com/sw33tLie/spotscope/pkg/verdict"
	"github.com/sw33tLie/spotscope/pkg/workers"
)

// RunOptions controls the batch runners.
type RunOptions struct {
	// Limit caps the number of URLs processed; zero means all.
	Limit int
	// Pacer spaces fetches per site. Nil disables waiting.
	Pacer *politeness.Pacer
	Log   workers.Logger
}

// AllowedURLs returns the URLs of a merged CSV whose scraping_allowed is YES, in file order.
func AllowedURLs(finalCSV string, limit int) ([]string, error) {
	in, err := csvio.ReadFile(finalCSV)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", finalCSV, err)
	}
	var urls []string
	for _, row := range in.Rows {
		if !strings.EqualFold(row.Get(permission.Column), string(verdict.Yes)) {
			continue
		}
		if u := row.Get("url"); u != "" {
			urls = append(urls, u)
		}
		if limit > 0 && len(urls) >= limit {
			break
		}
	}
	return urls, nil
}

// RunFacility extracts every allowed URL of finalCSV into outCSV.
func RunFacility(ctx context.Context, x *Extractor, finalCSV, outCSV string, opts RunOptions) (string, error) {
	log := workers.OrNop(opts.Log)
	urls, err := AllowedURLs(finalCSV, opts.Limit)
	if err != nil {
		return "", err
	}

	w, err := csvio.Create(outCSV, FacilityColumns)
	if err != nil {
		return "", err
	}
	defer w.Close()

	for i, u := range urls {
		if err := opts.Pacer.Wait(ctx, storage.Netloc(u)); err != nil {
			return "", err
		}
		r := x.Extract(ctx, u)
		log.Infof("[%d/%d] %s -> %q yen=%s flags=%s", i+1, len(urls), u, r.Title, intCell(r.Yen), strings.Join(r.Flags, "|"))
		if err := w.Write(r.Row()); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	log.Infof("Extracted %d URLs into %s", len(urls), outCSV)
	return outCSV, nil
}

// RunTargets lists the venues of every allowed aggregator page of finalCSV into outCSV.
func RunTargets(ctx context.Context, x *Extractor, finalCSV, outCSV string, opts RunOptions) (string, error) {
	log := workers.OrNop(opts.Log)
	urls, err := AllowedURLs(finalCSV, opts.Limit)
	if err != nil {
		return "", err
	}

	w, err := csvio.Create(outCSV, TargetsColumns)
	if err != nil {
		return "", err
	}
	defer w.Close()

	for i, u := range urls {
		if err := opts.Pacer.Wait(ctx, storage.Netloc(u)); err != nil {
			return "", err
		}
		t := x.ExtractTargets(ctx, u)
		log.Infof("[%d/%d] %s -> %d items (%s)", i+1, len(urls), u, len(t.Items), t.Method)
		for _, row := range t.Rows() {
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	log.Infof("Listed targets of %d pages into %s", len(urls), outCSV)
	return outCSV, nil
}
