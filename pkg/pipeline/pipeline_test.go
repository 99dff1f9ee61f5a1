package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/spotscope/internal/sitetest"
	"github.com/sw33tLie/spotscope/pkg/collector"
	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/extract"
	"github.com/sw33tLie/spotscope/pkg/filter"
	"github.com/sw33tLie/spotscope/pkg/robots"
	"github.com/sw33tLie/spotscope/pkg/tos"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

type staticSearcher []collector.Record

func (s staticSearcher) Search(context.Context, string, int) ([]collector.Record, error) {
	return s, nil
}

const fooHome = `<html><head><title>Foo Museum | 公式サイト</title></head><body><main>
<h1>Foo Museum</h1>
<p>〒110-0007 東京都台東区上野公園7-7</p>
<table><tr><td>一般</td><td>1,000円</td></tr><tr><td>学生</td><td>500円</td></tr></table>
</main></body></html>`

func newClient(t *testing.T, srv *sitetest.Server, kind string) *whttp.Client {
	t.Helper()
	c, err := whttp.NewClient(whttp.Options{Kind: kind, Timeout: 2 * time.Second, RetryMax: -1, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("out", "tickets")
	assert.Equal(t, filepath.Join("out", "csv", "tickets.csv"), p.URLs)
	assert.Equal(t, filepath.Join("out", "csv", "tickets_filtered.csv"), p.Filtered)
	assert.Equal(t, filepath.Join("out", "robot_checked", "tickets_with_robots.csv"), p.Robots)
	assert.Equal(t, filepath.Join("out", "document_checked", "tickets_with_tos.csv"), p.Tos)
	assert.Equal(t, filepath.Join("out", "final_checked", "tickets_final.csv"), p.Final)
	assert.Equal(t, filepath.Join(".", "csv", "x.csv"), PathsFor("", "x").URLs)
}

func TestRunRequiresStages(t *testing.T) {
	_, err := Run(context.Background(), Config{Keywords: []string{"学割"}})
	require.Error(t, err)
}

func TestFooMuseumEndToEnd(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("foo.example/robots.txt", sitetest.Text("User-agent: *\nDisallow: /private\n"))
	srv.Handle("foo.example/terms", sitetest.HTML(`<html><head><title>利用規約</title></head><body><p>当館の公開データはAPI利用が可能です。</p></body></html>`))
	srv.Handle("foo.example/", sitetest.HTML(fooHome))
	srv.Handle("bar.example/robots.txt", sitetest.Text("User-agent: *\nDisallow: /\n"))

	dir := t.TempDir()
	cfg := Config{
		Keywords: []string{"学割 博物館"},
		Basename: "museums",
		Dir:      dir,
		Searcher: staticSearcher{
			{Title: "Foo Museum", URL: "http://foo.example/", Snippet: "学割あります"},
			{Title: "Bar Hall", URL: "http://bar.example/tickets", Snippet: "学生料金"},
			{Title: "Unrelated", URL: "http://baz.example/", Snippet: "天気"},
		},
		Filter: filter.New(nil, 0, nil),
		Robots: robots.NewEvaluator(newClient(t, srv, "robots"), "*"),
		Tos:    tos.NewEvaluator(newClient(t, srv, "tos")),
	}
	final, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "final_checked", "museums_final.csv"), final)
	assert.FileExists(t, filepath.Join(dir, "csv", "museums_filtered.csv"))

	got, err := csvio.ReadFile(final)
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	bar, foo := got.Rows[0], got.Rows[1]

	assert.Equal(t, "http://foo.example/", foo["url"])
	assert.Equal(t, "allowed", foo["robots_can_fetch"])
	assert.Equal(t, "allowed", foo["tos_can_scrape"])
	assert.Equal(t, "matched_allow", foo["tos_reason"])
	assert.Equal(t, "YES", foo["scraping_allowed"])

	assert.Equal(t, "blocked", bar["robots_can_fetch"])
	assert.Equal(t, "NO", bar["scraping_allowed"])

	x := extract.New(newClient(t, srv, "extract"), extract.Options{Hop: true})
	out := filepath.Join(dir, "scraped", "museums_scraped.csv")
	_, err = extract.RunFacility(context.Background(), x, final, out, extract.RunOptions{})
	require.NoError(t, err)

	scraped, err := csvio.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, scraped.Rows, 1)
	row := scraped.Rows[0]
	assert.Equal(t, "Foo Museum", row["title"])
	assert.Contains(t, row["discount_text"], "500円")
	assert.Equal(t, "500", row["discount_value_yen"])
	assert.NotContains(t, row["quality_flags"], "disc_missing")
	assert.Equal(t, "NO", row["used_llm"])
}
