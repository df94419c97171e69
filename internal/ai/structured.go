package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaName names the structured output format in requests.
const SchemaName = "es_review"

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\n?```$")

// MessageSchema is the JSON schema of the structured payload. strict adds the
// closed-object constraint required by providers in strict mode.
func MessageSchema(strict bool) map[string]any {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
		"required": []any{"message"},
	}
	if strict {
		schema["additionalProperties"] = false
	}
	return schema
}

var payloadSchema = gojsonschema.NewGoLoader(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"message": map[string]any{"type": "string", "minLength": 1},
	},
	"required": []any{"message"},
})

// ExtractMessage pulls the message field out of a structured reply. It tries
// the text as is, then without Markdown fences, then the outermost object
// that mentions "message".
func ExtractMessage(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)

	candidates := []string{trimmed}
	unfenced := stripFences(trimmed)
	if unfenced != trimmed {
		candidates = append(candidates, unfenced)
	}
	if obj, ok := outermostObject(unfenced); ok {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		if msg, ok := decodeMessage(c); ok {
			return msg, true
		}
	}
	return "", false
}

func decodeMessage(candidate string) (string, bool) {
	if !strings.HasPrefix(candidate, "{") {
		return "", false
	}

	result, err := gojsonschema.Validate(payloadSchema, gojsonschema.NewStringLoader(candidate))
	if err != nil || !result.Valid() {
		return "", false
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return "", false
	}

	msg := strings.TrimSpace(payload.Message)
	return msg, msg != ""
}

func stripFences(s string) string {
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

func outermostObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	obj := s[start : end+1]
	if !strings.Contains(obj, `"message"`) {
		return "", false
	}
	return obj, true
}

// partialMessage recovers the readable prefix of a structured reply that was
// cut off before its closing quote.
func partialMessage(text string) string {
	if msg, ok := ExtractMessage(text); ok {
		return msg
	}

	idx := strings.Index(text, `"message"`)
	if idx < 0 {
		return text
	}
	rest := strings.TrimLeft(text[idx+len(`"message"`):], " \t\r\n")
	rest, ok := strings.CutPrefix(rest, ":")
	if !ok {
		return text
	}
	rest, ok = strings.CutPrefix(strings.TrimLeft(rest, " \t\r\n"), `"`)
	if !ok {
		return text
	}

	// Drop a dangling escape so the fragment can be closed and decoded.
	for strings.HasSuffix(rest, `\`) && !strings.HasSuffix(rest, `\\`) {
		rest = strings.TrimSuffix(rest, `\`)
	}
	if i := strings.LastIndex(rest, `\u`); i >= 0 && len(rest)-i < 6 {
		rest = rest[:i]
	}

	var decoded string
	if err := json.Unmarshal([]byte(`"`+rest+`"`), &decoded); err != nil {
		return text
	}
	return strings.TrimSpace(decoded)
}
