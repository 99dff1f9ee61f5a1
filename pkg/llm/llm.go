package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sw33tLie/spotscope/pkg/metrics"
)

// Config controls which model answers extraction prompts.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	Endpoint       string
	Timeout        time.Duration
	MaxConcurrency int
	HTTPClient     *http.Client
}

// Client sends a prompt and returns the JSON object found in the answer.
type Client interface {
	Complete(ctx context.Context, prompt string) (gjson.Result, error)
}

const (
	defaultProvider       = "ollama"
	defaultModel          = "qwen2.5:32b-instruct-q4_K_M"
	defaultOllamaEndpoint = "http://localhost:11434/api/generate"
	defaultOpenAIModel    = "gpt-4.1-mini"
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultTimeout        = 120 * time.Second
	DefaultMaxConcurrency = 2
)

var (
	ErrEmptyResponse = errors.New("llm returned an empty response")
	ErrNoJSON        = errors.New("llm response contains no JSON object")
)

// StatusError is returned when the model endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm request failed with HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm request failed with HTTP %d", e.StatusCode)
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// New builds a Client for cfg.Provider.
func New(cfg Config) (Client, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	var hc httpClient = cfg.HTTPClient
	if cfg.HTTPClient == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	switch cfg.Provider {
	case "ollama":
		return newOllama(cfg, hc), nil
	case "openai":
		return newOpenAI(cfg, hc)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

var objectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON returns the outermost {...} span of text when it is valid JSON.
func ExtractJSON(text string) (gjson.Result, error) {
	if strings.TrimSpace(text) == "" {
		return gjson.Result{}, ErrEmptyResponse
	}
	m := objectRe.FindString(text)
	if m == "" || !gjson.Valid(m) {
		return gjson.Result{}, ErrNoJSON
	}
	return gjson.Parse(m), nil
}

func observe(err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNoJSON), errors.Is(err, ErrEmptyResponse):
		outcome = "invalid"
	default:
		var se *StatusError
		if errors.As(err, &se) {
			outcome = "status"
		} else {
			outcome = "error"
		}
	}
	metrics.LLMCalls.WithLabelValues(outcome).Inc()
}
