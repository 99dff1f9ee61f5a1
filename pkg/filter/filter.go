// Package filter drops search hits that are not venue, ticket or pricing pages.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sw33tLie/spotscope/pkg/collector"
	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/llm"
	"github.com/sw33tLie/spotscope/pkg/politeness"
	"github.com/sw33tLie/spotscope/pkg/workers"
)

const (
	DefaultBatchSize = 12
	batchDelay       = 200 * time.Millisecond
)

// BlockedDomains are social, news, video and shopping sites. Subdomains are blocked too.
var BlockedDomains = []string{
	"twitter.com", "x.com", "t.co", "facebook.com", "instagram.com", "pinterest.com",
	"note.com", "hatena.ne.jp", "hatenablog.com", "togetter.com",
	"news.yahoo.co.jp", "line.me", "lineblog.me",
	"tripadvisor.com", "ja.tripadvisor.com",
	"navitime.co.jp", "prtimes.jp", "atpress.ne.jp",
	"youtube.com", "youtu.be", "nicovideo.jp",
	"amazon.co.jp", "rakuten.co.jp", "yahoo.co.jp", "zozo.jp",
}

var blockedExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg",
	".zip", ".rar", ".7z", ".gz", ".mp4", ".mov", ".wmv", ".avi",
	".ppt", ".pptx", ".doc", ".docx", ".xls", ".xlsx", ".csv",
}

var (
	positiveHints = []string{
		"公式", "公式サイト", "施設", "営業時間", "アクセス", "料金", "価格", "チケット", "入場",
		"ご利用案内", "利用案内", "予約", "購入", "券", "Price", "Prices", "Ticket", "Admission",
	}
	negativeHints = []string{"まとめ", "一覧", "記事", "ニュース", "口コミ", "レビュー", "PR", "リリース", "配信"}
	discountHints = []string{"学割", "学生", "学生証", "U25", "U24", "Student", "student"}
)

func countHits(text string, words []string) int {
	text = strings.ToLower(text)
	n := 0
	for _, w := range words {
		if strings.Contains(text, strings.ToLower(w)) {
			n++
		}
	}
	return n
}

func blockedHost(host string) bool {
	for _, d := range BlockedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Keep is the rule-based decision: true for pages that look like an official, sales or venue page.
func Keep(r collector.Record) bool {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	if blockedHost(strings.ToLower(u.Hostname())) {
		return false
	}

	text := r.Title + " " + r.Snippet
	if countHits(text, negativeHints) >= 2 {
		return false
	}
	return countHits(text, positiveHints) > 0 || countHits(text, discountHints) > 0
}

var batchPrompt = template.Must(template.New("filter").Parse(`あなたは日本語の分類アシスタントです。以下のアイテムごとに「学割スポット/アクティビティの
公式・販売・施設情報ページか」を判定してください。返すのは厳密なJSONのみです。

返却フォーマット:
{"results": [{"idx": 0, "keep": "YES"|"NO"}, ...]}

YESにする基準:
- 施設の公式サイトや、チケット/料金/入場案内/利用案内/アクセス/予約/購入ページ
- 旅行会社や販売サイトの「商品詳細/チケット詳細」ページ
NOにする基準:
- 第三者によるまとめ記事、ニュース、SNS、口コミ、通販比較、プレスリリース
- 学割と明らかに無関係なページ。判断に迷うものは残す。

アイテム:
{{.}}`))

type batchItem struct {
	Idx     int    `json:"idx"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Filter decides which records to keep, with the rules alone or with a model.
type Filter struct {
	llm       llm.Client
	batchSize int
	delay     time.Duration
	log       workers.Logger
}

// New filters with client in batches of batchSize. A nil client uses the rules only.
func New(client llm.Client, batchSize int, log workers.Logger) *Filter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Filter{llm: client, batchSize: batchSize, delay: batchDelay, log: workers.OrNop(log)}
}

// Decide returns one keep decision per record.
func (f *Filter) Decide(ctx context.Context, records []collector.Record) []bool {
	keep := make([]bool, len(records))
	if f.llm == nil {
		for i, r := range records {
			keep[i] = Keep(r)
		}
		return keep
	}
	for start := 0; start < len(records); start += f.batchSize {
		if start > 0 {
			if err := politeness.Sleep(ctx, f.delay); err != nil {
				break
			}
		}
		end := start + f.batchSize
		if end > len(records) {
			end = len(records)
		}
		f.decideBatch(ctx, records, start, end, keep)
	}
	return keep
}

// decideBatch asks the model about records[start:end]. A failed batch falls back to the rules;
// indexes the model leaves out are dropped.
func (f *Filter) decideBatch(ctx context.Context, records []collector.Record, start, end int, keep []bool) {
	items := make([]batchItem, 0, end-start)
	for i := start; i < end; i++ {
		r := records[i]
		items = append(items, batchItem{Idx: i, Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	res, err := f.complete(ctx, items)
	if err != nil {
		f.log.Debugf("[filter] batch %d-%d failed, using rules: %v", start, end-1, err)
		for i := start; i < end; i++ {
			keep[i] = Keep(records[i])
		}
		return
	}
	for _, r := range res.Get("results").Array() {
		idx := int(r.Get("idx").Int())
		if idx < start || idx >= end {
			continue
		}
		keep[idx] = strings.EqualFold(strings.TrimSpace(r.Get("keep").String()), "YES")
	}
}

func (f *Filter) complete(ctx context.Context, items []batchItem) (res gjson.Result, err error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return res, err
	}
	var b strings.Builder
	if err := batchPrompt.Execute(&b, string(data)); err != nil {
		return res, err
	}
	res, err = f.llm.Complete(ctx, b.String())
	if err != nil {
		return res, err
	}
	if !res.Get("results").IsArray() {
		return res, fmt.Errorf("%w: no results array", llm.ErrNoJSON)
	}
	return res, nil
}

// Run reads title,url[,snippet] rows, drops repeated URLs and writes the kept rows to outCSV.
func (f *Filter) Run(ctx context.Context, inCSV, outCSV string) (string, error) {
	in, err := csvio.ReadFile(inCSV)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", inCSV, err)
	}

	var records []collector.Record
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
		records = append(records, collector.Record{Title: row.Get("title"), URL: u, Snippet: row.Get("snippet")})
	}

	keep := f.Decide(ctx, records)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	header := []string{"title", "url"}
	if in.Has("snippet") {
		header = append(header, "snippet")
	}
	out := &csvio.Table{Header: header}
	for i, r := range records {
		if keep[i] {
			out.Rows = append(out.Rows, r.Row())
		}
	}
	if err := csvio.WriteFile(outCSV, out); err != nil {
		return "", fmt.Errorf("writing %s: %w", outCSV, err)
	}
	mode := "rule"
	if f.llm != nil {
		mode = "llm"
	}
	f.log.Infof("Filtered %d / %d URLs into %s (mode=%s)", len(out.Rows), len(records), outCSV, mode)
	return outCSV, nil
}
