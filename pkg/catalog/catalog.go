// Package catalog turns scraped facility rows into the catalog import format.
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sw33tLie/spotscope/pkg/csvio"
)

// Columns is the catalog header, in order.
var Columns = []string{"id", "name", "url", "address", "lat", "lon", "tags", "description", "image_url", "price"}

var required = []string{"url", "title", "address"}

// Options shapes the generated ids.
type Options struct {
	IDPrefix string
	// StartID is the id of the first data row. Zero means 1.
	StartID int
	// ZeroPad left-pads the numeric part to this many digits.
	ZeroPad int
}

// ID formats the id of the n-th row.
func (o Options) ID(n int) string {
	s := strconv.Itoa(n)
	if pad := o.ZeroPad - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return o.IDPrefix + s
}

// Convert maps scraped rows onto catalog rows. Rows with no url, title or address are skipped
// but still use up their id.
func Convert(in *csvio.Table, opts Options) (*csvio.Table, error) {
	var missing []string
	for _, c := range required {
		if !in.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns %v (have %v)", missing, in.Header)
	}
	start := opts.StartID
	if start == 0 {
		start = 1
	}

	out := &csvio.Table{Header: Columns}
	for i, row := range in.Rows {
		u, title, addr := row.Get("url"), row.Get("title"), row.Get("address")
		if u == "" && title == "" && addr == "" {
			continue
		}
		out.Rows = append(out.Rows, csvio.Row{
			"id":      opts.ID(start + i),
			"name":    title,
			"url":     u,
			"address": addr,
		})
	}
	return out, nil
}

// Run converts inCSV into outCSV and returns the number of rows written.
func Run(inCSV, outCSV string, opts Options) (int, error) {
	in, err := csvio.ReadFile(inCSV)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", inCSV, err)
	}
	out, err := Convert(in, opts)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", inCSV, err)
	}
	if err := csvio.WriteFile(outCSV, out); err != nil {
		return 0, fmt.Errorf("writing %s: %w", outCSV, err)
	}
	return len(out.Rows), nil
}
