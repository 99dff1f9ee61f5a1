package extract

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/spotscope/internal/sitetest"
	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const fooMuseum = `<html><head><title>Foo Museum | 公式サイト</title></head><body>
<nav><a href="/">トップ</a></nav>
<main>
<h1>Foo Museum</h1>
<p>所在地 〒110-0007 東京都台東区上野公園7-7 TEL：03-0000-0000</p>
<table>
<tr><th>区分</th><th>料金</th></tr>
<tr><td>一般</td><td>1,000円</td></tr>
<tr><td>学生</td><td>500円</td></tr>
</table>
</main></body></html>`

type fakeLLM struct {
	calls int32
	fn    func(prompt string) (gjson.Result, error)
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (gjson.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(prompt)
}

func answer(js string) func(string) (gjson.Result, error) {
	return func(string) (gjson.Result, error) { return gjson.Parse(js), nil }
}

func newExtractor(t *testing.T, srv *sitetest.Server, opts Options) *Extractor {
	t.Helper()
	client, err := whttp.NewClient(whttp.Options{
		Kind:       "extract",
		Timeout:    2 * time.Second,
		RetryMax:   -1,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return New(client, opts)
}

func TestExtractStudentTable(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("foo.example/", sitetest.HTML(fooMuseum))
	llm := &fakeLLM{fn: answer(`{}`)}
	x := newExtractor(t, srv, Options{LLM: llm, Hop: true})

	r := x.Extract(context.Background(), "http://foo.example/")
	require.Empty(t, r.Error)
	assert.Equal(t, "Foo Museum", r.Title)
	assert.Contains(t, r.Address, "東京都台東区上野公園7-7")
	assert.NotContains(t, r.Address, "TEL")
	assert.Contains(t, r.DiscountText, "500円")
	require.NotNil(t, r.Yen)
	assert.Equal(t, 500, *r.Yen)
	assert.NotContains(t, r.Flags, FlagDiscMissing)
	assert.False(t, r.UsedLLM)
	assert.False(t, r.HopUsed)
	assert.Zero(t, atomic.LoadInt32(&llm.calls), "rules were sufficient, the model must not be asked")
}

func TestExtractIsDeterministic(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("foo.example/", sitetest.HTML(fooMuseum))
	x := newExtractor(t, srv, Options{})

	a := x.Extract(context.Background(), "http://foo.example/")
	b := x.Extract(context.Background(), "http://foo.example/")
	require.Empty(t, a.Error)
	require.NotNil(t, a.Yen)
	assert.Equal(t, 500, *a.Yen)
	assert.Equal(t, "Foo Museum", a.Title)
	assert.Empty(t, b.Error)
	assert.Equal(t, a.Title, b.Title)
	assert.Equal(t, a.Address, b.Address)
	assert.Equal(t, a.Yen, b.Yen)
	assert.Equal(t, a.Percent, b.Percent)
	assert.Equal(t, a.Flags, b.Flags)
}

func TestExtractFetchFailures(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("pdf.example/doc", sitetest.Page{Status: http.StatusOK, ContentType: "application/pdf", Body: "%PDF-1.4"})
	srv.Handle("empty.example/", sitetest.HTML(""))
	x := newExtractor(t, srv, Options{})

	r := x.Extract(context.Background(), "http://pdf.example/doc")
	assert.Equal(t, "fetch_failed:application/pdf", r.Error)
	assert.Equal(t, []string{FlagFetchFailed}, r.Flags)
	assert.Empty(t, r.Title)

	r = x.Extract(context.Background(), "http://empty.example/")
	assert.Equal(t, []string{FlagFetchFailed}, r.Flags)

	client, err := whttp.NewClient(whttp.Options{Timeout: time.Second, RetryMax: -1})
	require.NoError(t, err)
	r = New(client, Options{}).Extract(context.Background(), "http://127.0.0.1:1/")
	assert.Equal(t, "fetch_failed:no_resp", r.Error)
	assert.Equal(t, "NO", r.Row()["used_llm"])
}

func TestExtractLLMFillsFailingFields(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("baz.example/", sitetest.HTML(`<html><head><title>トップ</title></head><body><main><p>ようこそ。水槽の生き物たちをゆっくりご覧ください。週末はイベントも開催しています。</p></main></body></html>`))
	llm := &fakeLLM{fn: answer(`{"title":"Baz Aquarium｜トップ","address":"神奈川県横浜市中区1-2-3 TEL 045","discount_text":"学生 800円","discount_value_yen":800,"discount_percent":null}`)}
	x := newExtractor(t, srv, Options{LLM: llm})

	r := x.Extract(context.Background(), "http://baz.example/")
	assert.True(t, r.UsedLLM)
	assert.Equal(t, "Baz Aquarium", r.Title)
	assert.Equal(t, "神奈川県横浜市中区1-2-3", r.Address)
	assert.Equal(t, "学生 800円", r.DiscountText)
	require.NotNil(t, r.Yen)
	assert.Equal(t, 800, *r.Yen)
	assert.Nil(t, r.Percent)
	assert.Empty(t, r.Flags)
	assert.Equal(t, int32(1), atomic.LoadInt32(&llm.calls))
}

func TestExtractLLMOutOfRangeIsDropped(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("q.example/", sitetest.HTML(`<html><head><title>Quux Science Hall</title></head><body><p>東京都港区芝公園4-2-8</p></body></html>`))
	llm := &fakeLLM{fn: answer(`{"title":"","address":"","discount_text":"","discount_value_yen":1000000,"discount_percent":99}`)}
	x := newExtractor(t, srv, Options{LLM: llm})

	r := x.Extract(context.Background(), "http://q.example/")
	assert.True(t, r.UsedLLM)
	assert.Nil(t, r.Yen)
	assert.Nil(t, r.Percent)
	assert.Contains(t, r.Flags, FlagYenUnreasonable)
	assert.Contains(t, r.Flags, FlagPctUnreasonable)
	assert.Contains(t, r.Flags, FlagDiscMissing)
	assert.Empty(t, r.Row()["discount_value_yen"])
}

func TestExtractLLMFailureIsNoSignal(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("q.example/", sitetest.HTML(`<html><head><title>Quux Science Hall</title></head><body><p>東京都港区芝公園4-2-8</p></body></html>`))
	llm := &fakeLLM{fn: func(string) (gjson.Result, error) { return gjson.Result{}, errors.New("connection refused") }}
	x := newExtractor(t, srv, Options{LLM: llm})

	r := x.Extract(context.Background(), "http://q.example/")
	assert.Empty(t, r.Error)
	assert.False(t, r.UsedLLM)
	assert.Equal(t, "Quux Science Hall", r.Title)
	assert.Contains(t, r.Flags, FlagDiscMissing)
}

func TestExtractHopsToPricePage(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("hop.example/", sitetest.HTML(`<html><head><title>Hop Garden</title></head><body>
<p>大阪府大阪市北区梅田1-1-1</p>
<a href="http://other.example/fee">料金（外部）</a>
<a href="/guide/price">料金のご案内</a>
</body></html>`))
	srv.Handle("hop.example/guide/price", sitetest.HTML(`<ul><li>一般 1,200円</li><li>学生 600円</li></ul>`))
	x := newExtractor(t, srv, Options{Hop: true})

	r := x.Extract(context.Background(), "http://hop.example/")
	assert.True(t, r.HopUsed)
	require.NotNil(t, r.Yen)
	assert.Equal(t, 600, *r.Yen)
	assert.Equal(t, "Hop Garden", r.Title)
	assert.Equal(t, "YES", r.Row()["hop_used"])
	assert.Zero(t, srv.HostHits("other.example"))
}

func TestExtractTargets(t *testing.T) {
	page := `<html><body>
<nav><a href="/gakuwari">学割トップ</a></nav>
<main>
<h2>学割が使える施設</h2>
<ul>
<li>学生料金あり: <a href="https://a.example/">A水族館</a></li>
<li><a href="https://www.instagram.com/aquarium">Instagram</a></li>
<li><a href="/spots/b">B美術館</a></li>
</ul>
<p><a href="https://c.example/ticket">C博物館のチケット</a></p>
</main></body></html>`
	srv := sitetest.New(t)
	srv.Handle("agg.example/list", sitetest.HTML(page))

	x := newExtractor(t, srv, Options{})
	got := x.ExtractTargets(context.Background(), "http://agg.example/list")
	assert.Equal(t, MethodRule, got.Method)
	assert.Equal(t, []TargetItem{
		{Name: "A水族館", URL: "https://a.example/"},
		{Name: "B美術館", URL: "http://agg.example/spots/b"},
		{Name: "C博物館のチケット", URL: "https://c.example/ticket"},
	}, got.Items)

	llm := &fakeLLM{fn: answer(`{"items":[{"name":"D公園","url":"https://d.example/"},{"name":"Insta","url":"https://instagram.com/x"}]}`)}
	x = newExtractor(t, srv, Options{LLM: llm})
	got = x.ExtractTargets(context.Background(), "http://agg.example/list")
	assert.Equal(t, MethodMixed, got.Method)
	require.Len(t, got.Items, 4)
	assert.Equal(t, TargetItem{Name: "D公園", URL: "https://d.example/"}, got.Items[0])

	missing := x.ExtractTargets(context.Background(), "http://agg.example/none")
	assert.Equal(t, NoteFetchFailed, missing.Notes)
	rows := missing.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, NoteFetchFailed, rows[0]["notes"])
}

func TestRunFacility(t *testing.T) {
	srv := sitetest.New(t)
	srv.Handle("foo.example/", sitetest.HTML(fooMuseum))
	x := newExtractor(t, srv, Options{})

	dir := t.TempDir()
	final := filepath.Join(dir, "final_checked", "foo_final.csv")
	out := filepath.Join(dir, "scraped", "foo_scraped.csv")
	require.NoError(t, csvio.WriteFile(final, &csvio.Table{
		Header: []string{"title", "url", "scraping_allowed"},
		Rows: []csvio.Row{
			{"title": "Foo Museum", "url": "http://foo.example/", "scraping_allowed": "yes"},
			{"title": "Blocked", "url": "http://blocked.example/", "scraping_allowed": "NO"},
			{"title": "No url", "url": "", "scraping_allowed": "YES"},
			{"title": "Missing", "url": "http://missing.example/", "scraping_allowed": "YES"},
		},
	}))

	_, err := RunFacility(context.Background(), x, final, out, RunOptions{})
	require.NoError(t, err)
	got, err := csvio.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, FacilityColumns, got.Header)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "500", got.Rows[0]["discount_value_yen"])
	assert.Equal(t, "http://missing.example/", got.Rows[1]["url"])
	assert.Equal(t, "fetch_failed", got.Rows[1]["quality_flags"])

	_, err = RunFacility(context.Background(), x, final, out, RunOptions{Limit: 1})
	require.NoError(t, err)
	got, err = csvio.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, got.Rows, 1)
}
