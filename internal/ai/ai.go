// Package ai defines the contract between the reviewer and a language model
// provider, and classifies the provider response into a single result.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotConfigured reports a provider that cannot be used, such as a missing
// API key or model. It is returned before any network I/O happens.
var ErrNotConfigured = errors.New("ai provider is not configured")

// Request is one review call.
type Request struct {
	Model           string
	Instructions    string
	Input           string
	MaxOutputTokens int
	// Temperature is sent only when set and the reasoning mode allows it.
	Temperature          *float64
	Verbosity            string
	ReasoningEffort      string
	Structured           bool
	PromptCacheKey       string
	PromptCacheRetention string
}

// Transport performs a single model call. Implementations may retry
// transient failures; callers never do.
type Transport interface {
	Create(ctx context.Context, req *Request) (*Response, error)
	Provider() string
}

// Response mirrors the Responses API body. Other providers translate into it.
type Response struct {
	ID                string             `json:"id,omitempty"`
	Status            string             `json:"status,omitempty"`
	Error             *APIError          `json:"error,omitempty"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details,omitempty"`
	Output            []OutputItem       `json:"output,omitempty"`
	OutputText        string             `json:"output_text,omitempty"`
}

// APIError is a model-reported failure inside a successful HTTP exchange.
type APIError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// IncompleteDetails explains why a response stopped early.
type IncompleteDetails struct {
	Reason string `json:"reason,omitempty"`
}

// OutputItem is one entry of the output list.
type OutputItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type,omitempty"`
	Status  string        `json:"status,omitempty"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ContentPart is an output_text or refusal segment of a message item.
type ContentPart struct {
	Type    string `json:"type,omitempty"`
	Text    string `json:"text,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

const (
	ItemTypeMessage = "message"
	PartOutputText  = "output_text"
	PartRefusal     = "refusal"

	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusIncomplete = "incomplete"
)

// TransportError is returned by a Transport when the exchange itself failed:
// a non-2xx status, or no response at all when StatusCode is 0.
type TransportError struct {
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var sb strings.Builder
	sb.WriteString("model transport")
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the call may succeed when repeated.
func (e *TransportError) Retryable() bool {
	if e.Err != nil && (errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	}
	return false
}
