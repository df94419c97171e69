// Package gemini implements the review transport on top of the Google GenAI
// SDK, translating Gemini results into the shared response contract.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/es-reviewer/internal/ai"
)

const (
	defaultModel = "gemini-2.5-pro"
	provider     = "gemini"
)

// contentGenerator is the subset of *genai.Models used by the transport.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures a Transport.
type Config struct {
	APIKey string
	Model  string
	Retry  ai.RetryPolicy
}

// Transport sends review requests to Gemini.
type Transport struct {
	models    contentGenerator
	modelName string
	retry     ai.RetryPolicy
}

// New creates a Transport configured for the Gemini API backend.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", ai.ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newTransport(client.Models, cfg.Model, cfg.Retry), nil
}

func newTransport(models contentGenerator, model string, retry ai.RetryPolicy) *Transport {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Transport{models: models, modelName: model, retry: retry}
}

func (t *Transport) Provider() string {
	return provider
}

func (t *Transport) Model() string {
	if t == nil {
		return ""
	}
	return t.modelName
}

// Create runs one generation and maps the result into an ai.Response.
func (t *Transport) Create(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	if t == nil || t.models == nil {
		return nil, fmt.Errorf("gemini transport is not initialized: %w", ai.ErrNotConfigured)
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = t.modelName
	}
	config := generateConfig(req)
	contents := genai.Text(req.Input)

	return t.retry.Do(ctx, func(ctx context.Context) (*ai.Response, error) {
		resp, err := t.models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return nil, transportError(err)
		}
		return translate(resp), nil
	})
}

func generateConfig(req *ai.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.Instructions) != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.Structured {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"message": {Type: genai.TypeString},
			},
			Required: []string{"message"},
		}
	}
	return config
}

func transportError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ai.TransportError{
			StatusCode: apiErr.Code,
			Body:       apiErr.Status,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &ai.TransportError{Err: err}
}

// translate maps the first candidate onto the Responses shape: MAX_TOKENS
// becomes incomplete and safety stops become refusals.
func translate(resp *genai.GenerateContentResponse) *ai.Response {
	if resp == nil {
		return &ai.Response{Status: ai.StatusFailed, Error: &ai.APIError{Message: "gemini returned an empty response"}}
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return refusal(blockMessage(string(fb.BlockReason), fb.BlockReasonMessage))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return &ai.Response{Status: ai.StatusFailed, Error: &ai.APIError{Message: "gemini returned no candidates"}}
	}

	candidate := resp.Candidates[0]
	text := candidateText(candidate)
	reason := string(candidate.FinishReason)

	switch reason {
	case "MAX_TOKENS":
		out := message(ai.StatusIncomplete, text)
		out.Status = ai.StatusIncomplete
		out.IncompleteDetails = &ai.IncompleteDetails{Reason: "max_output_tokens"}
		return out
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		if text == "" {
			return refusal(blockMessage(reason, candidate.FinishMessage))
		}
	}

	return message(ai.StatusCompleted, text)
}

func candidateText(candidate *genai.Candidate) string {
	if candidate.Content == nil {
		return ""
	}
	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		builder.WriteString(part.Text)
	}
	return builder.String()
}

func message(status, text string) *ai.Response {
	item := ai.OutputItem{Type: ai.ItemTypeMessage, Status: status, Role: "assistant"}
	if text != "" {
		item.Content = []ai.ContentPart{{Type: ai.PartOutputText, Text: text}}
	}
	return &ai.Response{Status: ai.StatusCompleted, Output: []ai.OutputItem{item}}
}

func refusal(reason string) *ai.Response {
	return &ai.Response{
		Status: ai.StatusCompleted,
		Output: []ai.OutputItem{{
			Type:    ai.ItemTypeMessage,
			Status:  ai.StatusCompleted,
			Role:    "assistant",
			Content: []ai.ContentPart{{Type: ai.PartRefusal, Refusal: reason}},
		}},
	}
}

func blockMessage(reason, detail string) string {
	if detail = strings.TrimSpace(detail); detail != "" {
		return reason + ": " + detail
	}
	return reason
}
