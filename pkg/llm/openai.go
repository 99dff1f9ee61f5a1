package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sw33tLie/spotscope/internal/utils"
)

const systemPrompt = "You extract facts from Japanese web pages. Reply with a single JSON object and nothing else."

type openAIClient struct {
	apiKey   string
	model    string
	endpoint string
	client   httpClient
}

type openAIChatRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

func newOpenAI(cfg Config, hc httpClient) (*openAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("the openai provider requires an API key (set llm.api_key in config or OPENAI_API_KEY)")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" || model == defaultModel {
		model = defaultOpenAIModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &openAIClient{apiKey: apiKey, model: model, endpoint: endpoint, client: hc}, nil
}

func (o *openAIClient) Complete(ctx context.Context, prompt string) (gjson.Result, error) {
	res, err := o.complete(ctx, prompt)
	observe(err)
	return res, err
}

func (o *openAIClient) complete(ctx context.Context, prompt string) (gjson.Result, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	utils.Log.Debugf("[llm] openai %s prompt of %d bytes", o.model, len(prompt))
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
		return gjson.Result{}, &StatusError{StatusCode: resp.StatusCode, Message: gjson.GetBytes(raw, "error.message").String()}
	}
	return ExtractJSON(gjson.GetBytes(raw, "choices.0.message.content").String())
}
