package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
		title   string
	}{
		{"bare object", `{"title":"Foo"}`, nil, "Foo"},
		{"wrapped in prose", "Sure! Here it is:\n```json\n{\"title\": \"Foo\"}\n```\nanything else?", nil, "Foo"},
		{"empty", "   ", ErrEmptyResponse, ""},
		{"no object", "I could not find anything.", ErrNoJSON, ""},
		{"broken object", `{"title": "Foo",}`, ErrNoJSON, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.title, got.Get("title").String())
		})
	}
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","response":"結果: {\"title\":\"Foo Museum\",\"discount_amount\":500}","done":true}`))
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, Model: "m"})
	require.NoError(t, err)

	res, err := c.Complete(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "Foo Museum", res.Get("title").String())
	assert.Equal(t, int64(500), res.Get("discount_amount").Int())

	assert.Equal(t, "m", got.Model)
	assert.Equal(t, "prompt text", got.Prompt)
	assert.False(t, got.Stream)
	assert.Equal(t, 8192, got.Options.NumCtx)
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "ollama", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "x")
	var se *StatusError
	require.True(t, errors.As(err, &se), "want *StatusError, got %v", err)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "model not found", se.Message)
}

func TestOpenAIComplete(t *testing.T) {
	var auth string
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"results\":[{\"idx\":0,\"keep\":\"YES\"}]}"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "OpenAI", APIKey: "sk-test", Endpoint: srv.URL})
	require.NoError(t, err)

	res, err := c.Complete(context.Background(), "classify")
	require.NoError(t, err)
	assert.Equal(t, "YES", res.Get("results.0.keep").String())
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, defaultOpenAIModel, got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "classify", got.Messages[1].Content)
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := New(Config{Provider: "openai"})
	assert.Error(t, err)
}

func TestUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "bard"})
	assert.Error(t, err)
}
