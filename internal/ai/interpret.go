package ai

import (
	"context"
	"errors"
	"strings"
)

// State is the classified outcome of a model call.
type State string

const (
	StateCompleted State = "completed"
	StateIncomplete State = "incomplete"
	StateRefused    State = "refused"
	StateFailed     State = "failed"
	// StateTimeout is a call abandoned at the caller deadline.
	StateTimeout State = "timeout"
	// StateTransport is a call that never produced a response body.
	StateTransport State = "transport_error"
)

// TruncatedNotice is appended to partial text of an incomplete response.
const TruncatedNotice = "\n\n（※出力が途中で途切れました）"

// Result is what the reviewer gets back from one model call.
type Result struct {
	OK     bool
	State  State
	Text   string
	Error  string
	Reason string
}

// Interpret classifies a response in priority order failed, incomplete,
// refused, completed. When structured is set the text is expected to be a
// {"message": "..."} object; unparsable text is returned as is.
func Interpret(resp *Response, structured bool) Result {
	if resp == nil {
		return Result{State: StateFailed, Error: "empty response"}
	}

	reason := ""
	if resp.IncompleteDetails != nil {
		reason = resp.IncompleteDetails.Reason
	}

	if resp.Error != nil || resp.Status == StatusFailed {
		msg := reason
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		if msg == "" {
			msg = "response failed"
		}
		return Result{State: StateFailed, Error: msg, Reason: reason}
	}

	text, refusal := extractOutput(resp)

	if incomplete(resp) {
		partial := text
		if structured {
			partial = partialMessage(text)
		}
		if strings.TrimSpace(partial) == "" {
			return Result{State: StateIncomplete, Error: "response incomplete", Reason: reason}
		}
		return Result{OK: true, State: StateIncomplete, Text: partial + TruncatedNotice, Reason: reason}
	}

	if refusal != "" && text == "" {
		return Result{State: StateRefused, Error: "content was refused", Reason: refusal}
	}

	if structured && text != "" {
		if msg, ok := ExtractMessage(text); ok {
			text = msg
		}
	}

	return Result{OK: true, State: StateCompleted, Text: text}
}

// FromError turns a transport failure into a result. A context deadline is
// reported as a timeout.
func FromError(err error) Result {
	if err == nil {
		return Result{State: StateFailed, Error: "unknown error"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{State: StateTimeout, Error: "model call timed out"}
	}

	var te *TransportError
	if errors.As(err, &te) {
		msg := te.Message
		if msg == "" {
			msg = truncate(te.Body, 500)
		}
		if msg == "" {
			msg = te.Error()
		}
		return Result{State: StateTransport, Error: msg}
	}

	return Result{State: StateTransport, Error: err.Error()}
}

func incomplete(resp *Response) bool {
	if resp.Status != "" && resp.Status != StatusCompleted && resp.Status != StatusFailed {
		return true
	}
	if resp.IncompleteDetails != nil {
		return true
	}
	for _, item := range resp.Output {
		if item.Status != "" && item.Status != StatusCompleted {
			return true
		}
	}
	return false
}

// extractOutput concatenates output_text and refusal segments of message
// items, falling back to the top-level output_text.
func extractOutput(resp *Response) (string, string) {
	if len(resp.Output) == 0 {
		return resp.OutputText, ""
	}

	var text, refusal strings.Builder
	for _, item := range resp.Output {
		if item.Type != ItemTypeMessage {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case PartOutputText:
				text.WriteString(part.Text)
			case PartRefusal:
				if part.Refusal != "" {
					refusal.WriteString(part.Refusal)
				} else {
					refusal.WriteString(part.Text)
				}
			}
		}
	}

	return text.String(), refusal.String()
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}
