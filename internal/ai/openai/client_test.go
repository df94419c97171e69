package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/es-reviewer/internal/ai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, model string) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		APIKey:  "sk-test",
		Model:   model,
		BaseURL: srv.URL,
		Retry:   ai.RetryPolicy{MaxRetries: 2, Base: time.Millisecond},
	})
	require.NoError(t, err)
	return client
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{APIKey: "  "})
	require.ErrorIs(t, err, ai.ErrNotConfigured)

	client, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, "openai", client.Provider())
}

func TestCreateSendsResponsesPayload(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp_1","status":"completed","output":[{"type":"message","status":"completed","content":[{"type":"output_text","text":"{\"message\":\"A) ok\"}"}]}]}`))
	}, "gpt-5.2")

	temp := 0.2
	resp, err := client.Create(context.Background(), &ai.Request{
		Instructions: "rubric",
		Input:        "essay",
		Temperature:  &temp,
		Structured:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "resp_1", resp.ID)

	res := ai.Interpret(resp, true)
	assert.Equal(t, "A) ok", res.Text)

	assert.Equal(t, "gpt-5.2", got["model"])
	assert.Equal(t, "rubric", got["instructions"])
	assert.Equal(t, float64(DefaultMaxOutputTokens), got["max_output_tokens"])
	assert.Equal(t, false, got["store"])
	assert.Equal(t, DefaultPromptCacheKey, got["prompt_cache_key"])
	assert.Equal(t, DefaultPromptCacheRetention, got["prompt_cache_retention"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.Equal(t, map[string]any{"effort": "none"}, got["reasoning"])

	text := got["text"].(map[string]any)
	assert.Equal(t, "low", text["verbosity"])
	format := text["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, ai.SchemaName, format["name"])
	assert.Equal(t, true, format["strict"])

	input := got["input"].([]any)[0].(map[string]any)
	assert.Equal(t, "user", input["role"])
	part := input["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "input_text", part["type"])
	assert.Equal(t, "essay", part["text"])
}

func TestPayloadTemperatureRules(t *testing.T) {
	t.Parallel()

	client, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	temp := 0.7

	tests := []struct {
		name          string
		req           ai.Request
		wantTemp      bool
		wantReasoning bool
	}{
		{name: "reasoning off", req: ai.Request{Model: "gpt-5.2", Temperature: &temp}, wantTemp: true, wantReasoning: true},
		{name: "reasoning on drops temperature", req: ai.Request{Model: "o4-mini", Temperature: &temp, ReasoningEffort: "medium"}, wantReasoning: true},
		{name: "classic model", req: ai.Request{Model: "gpt-4.1", Temperature: &temp, ReasoningEffort: "high"}, wantTemp: true},
		{name: "no temperature", req: ai.Request{Model: "gpt-4.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body := client.payload(&tt.req)
			_, hasTemp := body["temperature"]
			_, hasReasoning := body["reasoning"]
			assert.Equal(t, tt.wantTemp, hasTemp)
			assert.Equal(t, tt.wantReasoning, hasReasoning)
			_, hasFormat := body["text"].(map[string]any)["format"]
			assert.False(t, hasFormat)
		})
	}
}

func TestCreateReportsAPIErrorMessage(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Unsupported parameter: temperature","type":"invalid_request_error"}}`))
	}, "")

	_, err := client.Create(context.Background(), &ai.Request{Input: "x"})

	var te *ai.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, "Unsupported parameter: temperature", te.Message)
	assert.Equal(t, int32(1), calls.Load())

	res := ai.FromError(err)
	assert.Equal(t, ai.StateTransport, res.State)
	assert.Equal(t, "Unsupported parameter: temperature", res.Error)
}

func TestCreateRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"incomplete","incomplete_details":{"reason":"max_output_tokens"},"output":[]}`))
	}, "")

	resp, err := client.Create(context.Background(), &ai.Request{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, ai.StatusIncomplete, resp.Status)
}

func TestCreateHonoursDeadline(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}, "")
	// Registered after newTestClient so it runs before srv.Close (cleanups are LIFO).
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Create(ctx, &ai.Request{Input: "x"})
	require.Error(t, err)
	assert.Equal(t, ai.StateTimeout, ai.FromError(err).State)
}
