package permission

import (
	"path/filepath"
	"testing"

	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/verdict"
)

func TestMerge(t *testing.T) {
	robots := []verdict.RobotsStatus{verdict.RobotsAllowed, verdict.RobotsBlocked, verdict.RobotsUnknown}
	tos := []verdict.TosStatus{verdict.TosAllowed, verdict.TosForbidden, verdict.TosConditional, verdict.TosUnknown}

	for _, r := range robots {
		for _, s := range tos {
			want := verdict.Yes
			if r == verdict.RobotsBlocked || s == verdict.TosForbidden {
				want = verdict.No
			}
			if got := Merge(r, s); got != want {
				t.Errorf("Merge(%s, %s) = %s, want %s", r, s, got, want)
			}
		}
	}
}

func TestMergeRowMissingColumns(t *testing.T) {
	if got := MergeRow(csvio.Row{"url": "http://a.example/"}); got != verdict.Yes {
		t.Fatalf("row without verdicts = %s, want YES", got)
	}
	if got := MergeRow(csvio.Row{"robots_can_fetch": " Blocked "}); got != verdict.No {
		t.Fatalf("blocked row = %s, want NO", got)
	}
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	robotsCSV := filepath.Join(dir, "robot_checked", "x.csv")
	tosCSV := filepath.Join(dir, "document_checked", "x.csv")
	outCSV := filepath.Join(dir, "final_checked", "x.csv")

	err := csvio.WriteFile(robotsCSV, &csvio.Table{
		Header: []string{"title", "url", "robots_can_fetch"},
		Rows: []csvio.Row{
			{"title": "b", "url": "http://b.example/", "robots_can_fetch": "blocked"},
			{"title": "a", "url": "http://a.example/", "robots_can_fetch": "allowed"},
			{"title": "c", "url": "http://c.example/", "robots_can_fetch": "allowed"},
		},
	})
	if err != nil {
		t.Fatalf("writing robots csv: %v", err)
	}
	err = csvio.WriteFile(tosCSV, &csvio.Table{
		Header: []string{"title", "url", "robots_can_fetch", "tos_can_scrape"},
		Rows: []csvio.Row{
			{"title": "a (tos)", "url": "http://a.example/", "robots_can_fetch": "allowed", "tos_can_scrape": "forbidden"},
			{"title": "d", "url": "http://d.example/", "robots_can_fetch": "", "tos_can_scrape": "allowed"},
		},
	})
	if err != nil {
		t.Fatalf("writing tos csv: %v", err)
	}

	if _, err := MergeFiles(robotsCSV, tosCSV, outCSV); err != nil {
		t.Fatalf("MergeFiles: %v", err)
	}
	got, err := csvio.ReadFile(outCSV)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}

	wantHeader := []string{"title", "url", "robots_can_fetch", "tos_can_scrape", Column}
	if len(got.Header) != len(wantHeader) {
		t.Fatalf("header = %v, want %v", got.Header, wantHeader)
	}
	for i := range wantHeader {
		if got.Header[i] != wantHeader[i] {
			t.Fatalf("header = %v, want %v", got.Header, wantHeader)
		}
	}

	want := []struct {
		url, title, decision string
	}{
		{"http://a.example/", "a (tos)", "NO"},
		{"http://b.example/", "b", "NO"},
		{"http://c.example/", "c", "YES"},
		{"http://d.example/", "d", "YES"},
	}
	if len(got.Rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(got.Rows), len(want))
	}
	for i, w := range want {
		r := got.Rows[i]
		if r["url"] != w.url || r["title"] != w.title || r[Column] != w.decision {
			t.Errorf("row %d = %v, want url=%s title=%s %s=%s", i, r, w.url, w.title, Column, w.decision)
		}
	}
}
