package extract

import (
	"context"
	"strings"
	"sync"
	"text/template"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/llm"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const (
	chunkSize    = 3800
	chunkOverlap = 300
)

// Chunk splits text into runs of size runes, each overlapping the previous one by overlap runes.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step < 1 {
		step = 1
	}
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

var facilityPrompt = template.Must(template.New("facility").Parse(`あなたは日本語の抽出器。下の本文から厳密なJSONだけを返すこと。前後の文章は禁止。

出力:
{
  "title": "string",
  "address": "string",
  "discount_text": "string",
  "discount_value_yen": int|null,
  "discount_percent": int|null
}

制約:
- 推測しない。本文に根拠がない値は空/NULL。
- titleは施設名に正規化。区切りやサイト名は除去し短く。
- JSON以外は一切書かない。

URL: {{.URL}}

本文:
{{.Text}}`))

var targetsPrompt = template.Must(template.New("targets").Parse(`あなたは日本語の抽出器。本文から「学割対象の施設名とURL」を抽出し、厳密なJSONだけを返すこと。

出力スキーマ:
{"items":[{"name":"施設名","url":"https://..."}, ...]}

ルール:
- URLは可能なら絶対URL。相対URLしか無い場合は空文字でもよい。
- SNS/シェア/広告/ナビゲーション的なリンクは含めない。
- JSON以外は絶対に書かない。

ページURL: {{.URL}}

本文:
{{.Text}}`))

func render(t *template.Template, pageURL, text string) (string, error) {
	var b strings.Builder
	err := t.Execute(&b, struct{ URL, Text string }{pageURL, text})
	return b.String(), err
}

// completeChunks sends every chunk through the prompt with bounded concurrency. Failed chunks
// come back as invalid results; their order matches the chunks.
func completeChunks(ctx context.Context, client llm.Client, limit int, tpl *template.Template, pageURL string, chunks []string) []gjson.Result {
	results := make([]gjson.Result, len(chunks))
	if limit <= 0 {
		limit = llm.DefaultMaxConcurrency
	}
	sem := semaphore.NewWeighted(int64(limit))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			defer sem.Release(1)

			prompt, err := render(tpl, pageURL, chunk)
			if err != nil {
				utils.Log.Debugf("[extract] rendering prompt: %v", err)
				return
			}
			res, err := client.Complete(ctx, prompt)
			if err != nil {
				utils.Log.Debugf("[extract] llm chunk %d/%d of %s failed: %v", i+1, len(chunks), pageURL, err)
				return
			}
			if !res.IsObject() {
				utils.Log.Debugf("[extract] llm chunk %d/%d of %s: not an object", i+1, len(chunks), pageURL)
				return
			}
			results[i] = res
		}(i, chunk)
	}
	wg.Wait()
	return results
}

// partial is one chunk's answer.
type partial struct {
	title   string
	address string
	text    string
	yen     *int
	pct     *int
}

func intField(r gjson.Result) *int {
	if r.Type != gjson.Number {
		return nil
	}
	f := r.Float()
	if f != float64(int(f)) {
		return nil
	}
	return ptr(int(f))
}

func toPartial(r gjson.Result) partial {
	return partial{
		title:   strings.TrimSpace(r.Get("title").String()),
		address: strings.TrimSpace(r.Get("address").String()),
		text:    strings.TrimSpace(r.Get("discount_text").String()),
		yen:     intField(r.Get("discount_value_yen")),
		pct:     intField(r.Get("discount_percent")),
	}
}

// reconciled is the merged answer over all chunks.
type reconciled struct {
	title    string
	address  string
	discount Discount
}

func reconcile(parts []partial) reconciled {
	var out reconciled

	counts := make(map[string]int)
	var order []string
	for _, p := range parts {
		t := CleanTitle(p.title)
		if t == "" {
			continue
		}
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t]++
	}
	inRange := func(t string) bool { n := runeLen(t); return n >= 8 && n <= 42 }
	for _, t := range order {
		if out.title == "" {
			out.title = t
			continue
		}
		c, best := counts[t], counts[out.title]
		if c > best || (c == best && inRange(t) && !inRange(out.title)) {
			out.title = t
		}
	}

	var addrs []string
	for _, p := range parts {
		if p.address != "" {
			addrs = append(addrs, p.address)
		}
	}
	out.address = BestAddress(addrs)

	// An out-of-range value is only kept when no chunk offered a plausible one,
	// so the caller can flag it.
	var rawYen, rawPct *int
	for _, p := range parts {
		if p.yen != nil {
			if out.discount.Yen == nil && ReasonableYen(*p.yen) {
				out.discount.Yen = p.yen
			} else if rawYen == nil {
				rawYen = p.yen
			}
		}
		if p.pct != nil {
			if out.discount.Percent == nil && ReasonablePercent(*p.pct) {
				out.discount.Percent = p.pct
			} else if rawPct == nil {
				rawPct = p.pct
			}
		}
		if t := whttp.Truncate(p.text, maxDiscountText); runeLen(t) > runeLen(out.discount.Text) {
			out.discount.Text = t
		}
	}
	if out.discount.Yen == nil {
		out.discount.Yen = rawYen
	}
	if out.discount.Percent == nil {
		out.discount.Percent = rawPct
	}
	return out
}

// llmFields runs the facility prompt over text. ok is false when no chunk produced a record.
func (x *Extractor) llmFields(ctx context.Context, pageURL, text string) (reconciled, bool) {
	chunks := Chunk(text, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return reconciled{}, false
	}
	var parts []partial
	for _, r := range completeChunks(ctx, x.llm, x.opts.LLMConcurrency, facilityPrompt, pageURL, chunks) {
		if r.IsObject() {
			parts = append(parts, toPartial(r))
		}
	}
	if len(parts) == 0 {
		return reconciled{}, false
	}
	return reconcile(parts), true
}
