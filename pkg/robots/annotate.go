package robots

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
var Columns = []string{"robots_url", "robots_http_status", "robots_can_fetch", "notes"}

// AnnotateOptions controls the robots CSV stage.
type AnnotateOptions struct {
	Pacer   *politeness.Pacer
	Workers int
	Log     workers.Logger
}

// Annotate reads title,url[,snippet] rows, drops empty and repeated URLs, and writes every
// remaining row with its robots verdict.
func Annotate(ctx context.Context, e *Evaluator, inCSV, outCSV string, opts AnnotateOptions) (string, error) {
	log := workers.OrNop(opts.Log)

	in, err := csvio.ReadFile(inCSV)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", inCSV, err)
	}

	var rows []csvio.Row
	seen := make(map[string]struct{})
	for _, row := range in.Rows {
		u := row.Get("url")
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		rows = append(rows, row)
	}
	log.Infof("Checking robots.txt for %d URLs", len(rows))

	verdicts := workers.Map(ctx, rows, opts.Workers, func(ctx context.Context, i int, row csvio.Row) verdict.RobotsVerdict {
		u := row.Get("url")
		if err := opts.Pacer.Wait(ctx, storage.Netloc(u)); err != nil {
			return verdict.RobotsVerdict{CanFetch: verdict.RobotsUnknown, Notes: "request error: " + err.Error()}
		}
		v := e.Evaluate(ctx, u)
		log.Debugf("[robots] %d/%d %s -> %s (%s)", i+1, len(rows), u, v.CanFetch, v.Notes)
		return v
	})
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w, err := csvio.Create(outCSV, csvio.UnionHeader(in.Header, Columns))
	if err != nil {
		return "", err
	}
	for i, row := range rows {
		out := row.Clone()
		out["url"] = row.Get("url")
		out["title"] = row.Get("title")
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

func applyVerdict(row csvio.Row, v verdict.RobotsVerdict) {
	row["robots_url"] = v.RobotsURL
	row["robots_http_status"] = verdict.StatusCell(v.HTTPStatus)
	row["robots_can_fetch"] = string(v.CanFetch)
	row["notes"] = v.Notes
}
