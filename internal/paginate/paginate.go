// Package paginate splits long reply text into chat-sized chunks and keeps the
// unsent remainder for a later "continue" request.
package paginate

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// DefaultMaxLen keeps a chunk safely below the 5000 character limit of a LINE text message.
	DefaultMaxLen = 4900
	// DefaultMaxChunks matches the number of messages a single LINE reply may carry.
	DefaultMaxChunks = 5

	// ContinuationNotice is appended to the last chunk when text remains.
	ContinuationNotice = "\n\n（続きがあります。「続き」と送ってください）"
	// Ellipsis marks a last chunk that was shortened to make room for the notice.
	Ellipsis = "…"
	// EmptyPlaceholder replaces an empty source text.
	EmptyPlaceholder = "（空の返答になりました）"

	// MinMaxLen is the smallest usable chunk length: the notice, the ellipsis
	// and room for one surrogate pair of content. Shorter limits are raised.
	MinMaxLen = 27

	// minBreakRatio rejects break points that would leave a pathologically short chunk.
	minBreakRatio = 0.6
)

type breakToken struct {
	text     string
	priority int
}

// Ordered from the most to the least preferred place to cut.
var breakTokens = []breakToken{
	{text: "\n\n", priority: 30},
	{text: "。", priority: 20},
	{text: "\n", priority: 10},
	{text: "！", priority: 5},
	{text: "？", priority: 5},
	{text: ".", priority: 3},
	{text: "!", priority: 3},
	{text: "?", priority: 3},
}

// Result holds the chunks to send now and the text left for the next page.
type Result struct {
	Chunks []string
	Rest   string
}

// HasMore reports whether a continuation is pending.
func (r Result) HasMore() bool {
	return r.Rest != ""
}

// Normalize converts CRLF and CR line endings to LF and trims the text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// Split cuts text into at most maxChunks chunks of at most maxLen characters.
// Length is counted in UTF-16 code units, the unit LINE limits messages in,
// and cuts only fall on rune boundaries. Chunks are exact substrings of the
// normalized text, so joining the chunks (without the notice) and Rest yields
// Normalize(text) again.
func Split(text string, maxLen, maxChunks int) Result {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if maxLen < MinMaxLen {
		maxLen = MinMaxLen
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}

	normalized := Normalize(text)
	if normalized == "" {
		return Result{Chunks: []string{EmptyPlaceholder}}
	}

	rest := []rune(normalized)
	if units(rest) <= maxLen {
		return Result{Chunks: []string{normalized}}
	}

	var chunks [][]rune
	for len(rest) > 0 && len(chunks) < maxChunks {
		if units(rest) <= maxLen {
			chunks = append(chunks, rest)
			rest = nil
			break
		}

		cut := bestBreak(rest, maxLen)
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}

	if len(rest) > 0 {
		last := chunks[len(chunks)-1]
		last, rest = appendNotice(last, rest, maxLen)
		chunks[len(chunks)-1] = last
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, string(c))
	}

	return Result{Chunks: out, Rest: string(rest)}
}

// Length returns the length of s in UTF-16 code units.
func Length(s string) int {
	n := 0
	for _, r := range s {
		n += runeLen(r)
	}
	return n
}

// Truncate returns the longest prefix of s that is at most limit UTF-16 code
// units long without splitting a rune.
func Truncate(s string, limit int) string {
	n := 0
	for i, r := range s {
		n += runeLen(r)
		if n > limit {
			return s[:i]
		}
	}
	return s
}

func runeLen(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	// invalid runes are sent as U+FFFD
	return 1
}

func units(text []rune) int {
	n := 0
	for _, r := range text {
		n += runeLen(r)
	}
	return n
}

// fit returns how many leading runes of text fit into limit code units.
func fit(text []rune, limit int) int {
	n := 0
	for i, r := range text {
		n += runeLen(r)
		if n > limit {
			return i
		}
	}
	return len(text)
}

// StripNotice removes the continuation suffix added by Split from a chunk.
func StripNotice(chunk string) string {
	if trimmed, ok := strings.CutSuffix(chunk, Ellipsis+ContinuationNotice); ok {
		return trimmed
	}
	return strings.TrimSuffix(chunk, ContinuationNotice)
}

// bestBreak returns the cut position (in runes) for the head of text.
// Only tokens lying completely inside the first maxLen code units qualify.
func bestBreak(text []rune, maxLen int) int {
	limit := fit(text, maxLen)
	window := string(text[:limit])
	minPos := int(float64(maxLen) * minBreakRatio)

	bestCut, bestPriority, bestPos := limit, -1, -1
	for _, token := range breakTokens {
		idx := strings.LastIndex(window, token.text)
		if idx < 0 {
			continue
		}

		pos := Length(window[:idx])
		if pos < minPos {
			continue
		}

		if token.priority > bestPriority || (token.priority == bestPriority && pos > bestPos) {
			bestPriority = token.priority
			bestPos = pos
			bestCut = utf8.RuneCountInString(window[:idx]) + utf8.RuneCountInString(token.text)
		}
	}

	return bestCut
}

// appendNotice adds the continuation notice to last. When the notice does
// not fit, the tail of last moves back to the front of rest.
func appendNotice(last, rest []rune, maxLen int) ([]rune, []rune) {
	notice := []rune(ContinuationNotice)
	if units(last)+units(notice) <= maxLen {
		return append(append([]rune{}, last...), notice...), rest
	}

	marker := []rune(Ellipsis)
	keep := fit(last, maxLen-units(notice)-units(marker))

	moved := append(append([]rune{}, last[keep:]...), rest...)
	out := make([]rune, 0, keep+len(marker)+len(notice))
	out = append(out, last[:keep]...)
	out = append(out, marker...)
	out = append(out, notice...)

	return out, moved
}
