package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sw33tLie/spotscope/internal/utils"
)

type ollamaClient struct {
	model    string
	endpoint string
	client   httpClient
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
	TopP        float64 `json:"top_p"`
}

func newOllama(cfg Config, hc httpClient) *ollamaClient {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	return &ollamaClient{model: model, endpoint: endpoint, client: hc}
}

func (o *ollamaClient) Complete(ctx context.Context, prompt string) (gjson.Result, error) {
	res, err := o.complete(ctx, prompt)
	observe(err)
	return res, err
}

func (o *ollamaClient) complete(ctx context.Context, prompt string) (gjson.Result, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:   o.model,
		Prompt:  prompt,
		Options: ollamaOptions{Temperature: 0, NumCtx: 8192, TopP: 0.8},
	})
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	utils.Log.Debugf("[llm] ollama %s prompt of %d bytes", o.model, len(prompt))
	resp, err := o.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode >= 300 {
		return gjson.Result{}, &StatusError{StatusCode: resp.StatusCode, Message: gjson.GetBytes(raw, "error").String()}
	}
	return ExtractJSON(gjson.GetBytes(raw, "response").String())
}
