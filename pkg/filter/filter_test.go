package filter

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/spotscope/pkg/collector"
	"github.com/sw33tLie/spotscope/pkg/csvio"
)

func TestKeep(t *testing.T) {
	tests := []struct {
		name string
		rec  collector.Record
		want bool
	}{
		{"venue page", collector.Record{Title: "A水族館 公式サイト", URL: "https://a.example/"}, true},
		{"discount only", collector.Record{Title: "B", URL: "https://b.example/", Snippet: "学生証の提示で割引"}, true},
		{"no hints", collector.Record{Title: "天気", URL: "https://c.example/", Snippet: "晴れ"}, false},
		{"not http", collector.Record{Title: "公式", URL: "ftp://d.example/"}, false},
		{"pdf", collector.Record{Title: "料金表", URL: "https://e.example/price.PDF?v=2"}, false},
		{"blocked subdomain", collector.Record{Title: "学割", URL: "https://www.instagram.com/p/1"}, false},
		{"summary article", collector.Record{Title: "学割まとめ記事 2024", URL: "https://f.example/"}, false},
		{"lookalike host allowed", collector.Record{Title: "学割", URL: "https://mynote.com/"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Keep(tt.rec); got != tt.want {
				t.Fatalf("Keep(%+v) = %v, want %v", tt.rec, got, tt.want)
			}
		})
	}
}

type fakeLLM struct {
	prompts []string
	fn      func(prompt string) (gjson.Result, error)
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (gjson.Result, error) {
	f.prompts = append(f.prompts, prompt)
	return f.fn(prompt)
}

func records(n int) []collector.Record {
	out := make([]collector.Record, n)
	for i := range out {
		out[i] = collector.Record{Title: "公式", URL: "https://v" + string(rune('a'+i)) + ".example/"}
	}
	return out
}

func TestDecideWithModel(t *testing.T) {
	llm := &fakeLLM{fn: func(prompt string) (gjson.Result, error) {
		if strings.Contains(prompt, `"url": "https://va.example/"`) {
			return gjson.Parse(`{"results":[{"idx":0,"keep":"yes"},{"idx":1,"keep":"NO"},{"idx":7,"keep":"YES"}]}`), nil
		}
		return gjson.Result{}, errors.New("timeout")
	}}
	f := New(llm, 2, nil)
	f.delay = 0

	recs := records(3)
	recs[2].Title = "天気"
	got := f.Decide(context.Background(), recs)
	assert.Equal(t, []bool{true, false, false}, got)
	assert.Len(t, llm.prompts, 2)
}

func TestDecideFallsBackOnSchemaError(t *testing.T) {
	llm := &fakeLLM{fn: func(string) (gjson.Result, error) { return gjson.Parse(`{"keep":"NO"}`), nil }}
	f := New(llm, 0, nil)
	got := f.Decide(context.Background(), records(2))
	assert.Equal(t, []bool{true, true}, got)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "csv", "in_filtered.csv")
	require.NoError(t, csvio.WriteFile(in, &csvio.Table{
		Header: []string{"title", "url", "snippet"},
		Rows: []csvio.Row{
			{"title": "A水族館", "url": "https://a.example/", "snippet": "料金のご案内"},
			{"title": "A水族館", "url": "https://a.example/", "snippet": "dup"},
			{"title": "X", "url": "https://x.com/a", "snippet": "学割"},
			{"title": "", "url": "", "snippet": ""},
		},
	}))

	_, err := New(nil, 0, nil).Run(context.Background(), in, out)
	require.NoError(t, err)
	got, err := csvio.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "url", "snippet"}, got.Header)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "料金のご案内", got.Rows[0]["snippet"])
}
