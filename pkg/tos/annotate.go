package tos

import (
	"context"
	"fmt"

	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/politeness"
	"github.com/sw33tLie/spotscope/pkg/storage"
	"github.com/sw33tLie/spotscope/pkg/verdict"
	"github.com/sw33tLie/spotscope/pkg/workers"
)

// Columns are appended to the input header.
var Columns = []string{"tos_url", "tos_http_status", "tos_can_scrape", "tos_reason", "tos_evidence"}

// AnnotateOptions controls the terms CSV stage.
type AnnotateOptions struct {
	Pacer   *politeness.Pacer
	Workers int
	Log     workers.Logger
}

// Annotate adds the terms verdict of each row's site. Rows without a URL pass through with blank columns.
func Annotate(ctx context.Context, e *Evaluator, inCSV, outCSV string, opts AnnotateOptions) (string, error) {
	log := workers.OrNop(opts.Log)

	in, err := csvio.ReadFile(inCSV)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", inCSV, err)
	}
	log.Infof("Checking terms of service for %d rows", len(in.Rows))

	verdicts := workers.Map(ctx, in.Rows, opts.Workers, func(ctx context.Context, i int, row csvio.Row) *verdict.TosVerdict {
		u := row.Get("url")
		if u == "" {
			return nil
		}
		if err := opts.Pacer.Wait(ctx, storage.Netloc(u)); err != nil {
			return &verdict.TosVerdict{CanScrape: verdict.TosUnknown, Reason: verdict.ReasonNotFound}
		}
		v := e.Evaluate(ctx, u)
		log.Debugf("[tos] %d/%d %s -> %s (%s) %s", i+1, len(in.Rows), u, v.CanScrape, v.Reason, v.TosURL)
		return &v
	})
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w, err := csvio.Create(outCSV, csvio.UnionHeader(in.Header, Columns))
	if err != nil {
		return "", err
	}
	for i, row := range in.Rows {
		out := row.Clone()
		applyVerdict(out, verdicts[i])
		if err := w.Write(out); err != nil {
			w.Close()
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return outCSV, nil
}

func applyVerdict(row csvio.Row, v *verdict.TosVerdict) {
	if v == nil {
		for _, c := range Columns {
			row[c] = ""
		}
		return
	}
	row["tos_url"] = v.TosURL
	row["tos_http_status"] = verdict.StatusCell(v.HTTPStatus)
	row["tos_can_scrape"] = string(v.CanScrape)
	row["tos_reason"] = string(v.Reason)
	row["tos_evidence"] = v.Evidence
}
