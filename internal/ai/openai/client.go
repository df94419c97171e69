// Package openai implements the review transport on top of the OpenAI
// Responses API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/spigell/es-reviewer/internal/ai"
)

const (
	DefaultBaseURL              = "https://api.openai.com"
	DefaultModel                = "gpt-5.2"
	DefaultMaxOutputTokens      = 2000
	DefaultVerbosity            = "low"
	DefaultReasoningEffort      = "none"
	DefaultPromptCacheKey       = "es-review-v1"
	DefaultPromptCacheRetention = "in_memory"

	responsesPath = "/v1/responses"
	provider      = "openai"
)

var reasoningModel = regexp.MustCompile(`^(gpt-5|o\d)`)

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPTimeout caps a single HTTP exchange. The caller deadline still wins.
	HTTPTimeout time.Duration
	Retry       ai.RetryPolicy
}

// Client sends review requests to the Responses API.
type Client struct {
	http  *resty.Client
	model string
	retry ai.RetryPolicy
}

// New validates cfg and builds a Client. It performs no network I/O.
func New(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("openai api key is required: %w", ai.ErrNotConfigured)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(base).
		SetAuthToken(key).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.HTTPTimeout > 0 {
		client.SetTimeout(cfg.HTTPTimeout)
	}

	return &Client{http: client, model: model, retry: cfg.Retry}, nil
}

func (c *Client) Provider() string {
	return provider
}

func (c *Client) Model() string {
	return c.model
}

// Create posts one request, retrying transient failures.
func (c *Client) Create(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	body := c.payload(req)
	return c.retry.Do(ctx, func(ctx context.Context) (*ai.Response, error) {
		return c.post(ctx, body)
	})
}

func (c *Client) post(ctx context.Context, body map[string]any) (*ai.Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(responsesPath)
	if err != nil {
		return nil, &ai.TransportError{Err: err}
	}

	raw := resp.Body()
	if resp.IsError() {
		return nil, &ai.TransportError{
			StatusCode: resp.StatusCode(),
			Body:       string(raw),
			Message:    gjson.GetBytes(raw, "error.message").String(),
		}
	}

	var out ai.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ai.TransportError{
			StatusCode: resp.StatusCode(),
			Body:       string(raw),
			Message:    "decode response body",
			Err:        err,
		}
	}
	return &out, nil
}

func (c *Client) payload(req *ai.Request) map[string]any {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	body := map[string]any{
		"model":        model,
		"instructions": req.Instructions,
		"input": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "input_text", "text": req.Input},
				},
			},
		},
		"max_output_tokens":      maxTokens,
		"store":                  false,
		"tools":                  []any{},
		"prompt_cache_key":       orDefault(req.PromptCacheKey, DefaultPromptCacheKey),
		"prompt_cache_retention": orDefault(req.PromptCacheRetention, DefaultPromptCacheRetention),
	}

	text := map[string]any{"verbosity": orDefault(req.Verbosity, DefaultVerbosity)}
	if req.Structured {
		text["format"] = map[string]any{
			"type":   "json_schema",
			"name":   ai.SchemaName,
			"strict": true,
			"schema": ai.MessageSchema(true),
		}
	}
	body["text"] = text

	effort := orDefault(req.ReasoningEffort, DefaultReasoningEffort)
	reasoning := reasoningModel.MatchString(model)
	if reasoning {
		body["reasoning"] = map[string]any{"effort": effort}
	}

	// Reasoning models reject sampling parameters unless reasoning is off.
	if req.Temperature != nil && (!reasoning || effort == "none") {
		body["temperature"] = *req.Temperature
	}

	return body
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
