package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func message(parts ...ContentPart) OutputItem {
	return OutputItem{Type: ItemTypeMessage, Status: StatusCompleted, Content: parts}
}

func text(s string) ContentPart {
	return ContentPart{Type: PartOutputText, Text: s}
}

func TestInterpretStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		resp       *Response
		structured bool
		want       Result
	}{
		{
			name: "completed joins message text",
			resp: &Response{Status: StatusCompleted, Output: []OutputItem{
				{Type: "reasoning", Status: StatusCompleted},
				message(text("A) 要約"), text("\nB) スコア")),
			}},
			want: Result{OK: true, State: StateCompleted, Text: "A) 要約\nB) スコア"},
		},
		{
			name: "api error wins over everything",
			resp: &Response{Status: StatusIncomplete, Error: &APIError{Code: "server_error", Message: "boom"}, Output: []OutputItem{message(text("partial"))}},
			want: Result{State: StateFailed, Error: "boom"},
		},
		{
			name: "failed status",
			resp: &Response{Status: StatusFailed},
			want: Result{State: StateFailed, Error: "response failed"},
		},
		{
			name: "incomplete keeps partial text",
			resp: &Response{Status: StatusIncomplete, IncompleteDetails: &IncompleteDetails{Reason: "max_output_tokens"}, Output: []OutputItem{message(text("A) 途中まで"))}},
			want: Result{OK: true, State: StateIncomplete, Text: "A) 途中まで" + TruncatedNotice, Reason: "max_output_tokens"},
		},
		{
			name: "incomplete item status without text",
			resp: &Response{Status: StatusCompleted, Output: []OutputItem{{Type: ItemTypeMessage, Status: "in_progress"}}},
			want: Result{State: StateIncomplete, Error: "response incomplete"},
		},
		{
			name: "unknown top level status is incomplete",
			resp: &Response{Status: "queued"},
			want: Result{State: StateIncomplete, Error: "response incomplete"},
		},
		{
			name: "refusal without text",
			resp: &Response{Status: StatusCompleted, Output: []OutputItem{message(ContentPart{Type: PartRefusal, Refusal: "I can't help"})}},
			want: Result{State: StateRefused, Error: "content was refused", Reason: "I can't help"},
		},
		{
			name: "refusal next to text is ignored",
			resp: &Response{Status: StatusCompleted, Output: []OutputItem{message(text("ok"), ContentPart{Type: PartRefusal, Refusal: "no"})}},
			want: Result{OK: true, State: StateCompleted, Text: "ok"},
		},
		{
			name:       "structured payload",
			resp:       &Response{Status: StatusCompleted, Output: []OutputItem{message(text(`{"message":"A) 要約"}`))}},
			structured: true,
			want:       Result{OK: true, State: StateCompleted, Text: "A) 要約"},
		},
		{
			name:       "structured falls back to raw text",
			resp:       &Response{Status: StatusCompleted, Output: []OutputItem{message(text("A) plain text"))}},
			structured: true,
			want:       Result{OK: true, State: StateCompleted, Text: "A) plain text"},
		},
		{
			name:       "structured incomplete salvages the message prefix",
			resp:       &Response{Status: StatusIncomplete, Output: []OutputItem{message(text(`{"message":"A) 要約\nB) (1)課題`))}},
			structured: true,
			want:       Result{OK: true, State: StateIncomplete, Text: "A) 要約\nB) (1)課題" + TruncatedNotice},
		},
		{
			name: "top level output_text fallback",
			resp: &Response{Status: StatusCompleted, OutputText: "fallback"},
			want: Result{OK: true, State: StateCompleted, Text: "fallback"},
		},
		{
			name: "nil response",
			want: Result{State: StateFailed, Error: "empty response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Interpret(tt.resp, tt.structured))
		})
	}
}

func TestExtractMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "direct", input: `{"message":"hello"}`, want: "hello", ok: true},
		{name: "fenced", input: "```json\n{\"message\":\"fenced\"}\n```", want: "fenced", ok: true},
		{name: "surrounded", input: "Here you go:\n{\"message\": \"inner\"}\nThanks", want: "inner", ok: true},
		{name: "extra fields allowed", input: `{"message":"x","note":1}`, want: "x", ok: true},
		{name: "empty message", input: `{"message":""}`},
		{name: "wrong type", input: `{"message":42}`},
		{name: "no message key", input: `{"text":"hi"}`},
		{name: "not json", input: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractMessage(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StateTimeout, FromError(fmt.Errorf("call: %w", context.DeadlineExceeded)).State)

	res := FromError(&TransportError{StatusCode: http.StatusUnauthorized, Body: `{"error":{}}`, Message: "invalid api key"})
	assert.Equal(t, Result{State: StateTransport, Error: "invalid api key"}, res)

	res = FromError(&TransportError{StatusCode: http.StatusBadGateway, Body: "upstream"})
	assert.Equal(t, "upstream", res.Error)

	assert.Equal(t, StateTransport, FromError(errors.New("dial tcp")).State)
}

func TestTransportErrorRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, (&TransportError{StatusCode: http.StatusTooManyRequests}).Retryable())
	assert.True(t, (&TransportError{StatusCode: http.StatusServiceUnavailable}).Retryable())
	assert.True(t, (&TransportError{Err: errors.New("connection reset")}).Retryable())
	assert.False(t, (&TransportError{StatusCode: http.StatusBadRequest}).Retryable())
	assert.False(t, (&TransportError{Err: context.Canceled}).Retryable())
}
