package permission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/verdict"
)

// Column is the header name of the merged decision.
const Column = "scraping_allowed"

// Merge is conservative only on an explicit prohibition: a robots block or a forbidding ToS.
// Every other combination, unknowns included, is allowed.
func Merge(robots verdict.RobotsStatus, tos verdict.TosStatus) verdict.Decision {
	if robots == verdict.RobotsBlocked || tos == verdict.TosForbidden {
		return verdict.No
	}
	return verdict.Yes
}

// MergeRow applies Merge to a CSV row, treating missing columns as unknown.
func MergeRow(row csvio.Row) verdict.Decision {
	return Merge(
		verdict.ParseRobotsStatus(row.Get("robots_can_fetch")),
		verdict.ParseTosStatus(row.Get("tos_can_scrape")),
	)
}

// MergeFiles joins the robots-annotated and ToS-annotated tables on url and writes the union,
// sorted by url, with the scraping_allowed column appended.
func MergeFiles(robotsCSV, tosCSV, outCSV string) (string, error) {
	robots, err := csvio.ReadFile(robotsCSV)
	if err != nil {
		return "", fmt.Errorf("reading robots results: %w", err)
	}
	docs, err := csvio.ReadFile(tosCSV)
	if err != nil {
		return "", fmt.Errorf("reading tos results: %w", err)
	}

	byURL := make(map[string]csvio.Row)
	for _, table := range []*csvio.Table{robots, docs} {
		for _, row := range table.Rows {
			u := strings.TrimSpace(row.Get("url"))
			if u == "" {
				continue
			}
			merged, ok := byURL[u]
			if !ok {
				merged = csvio.Row{}
			}
			for k, v := range row {
				merged[k] = v
			}
			byURL[u] = merged
		}
	}

	urls := make([]string, 0, len(byURL))
	for u := range byURL {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	header := csvio.UnionHeader(robots.Header, docs.Header)
	header = csvio.UnionHeader(header, []string{Column})
	out := &csvio.Table{Header: header}
	for _, u := range urls {
		row := byURL[u]
		row[Column] = string(MergeRow(row))
		out.Rows = append(out.Rows, row)
	}

	if err := csvio.WriteFile(outCSV, out); err != nil {
		return "", err
	}
	return outCSV, nil
}
