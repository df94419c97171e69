package scorecard

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	// DefaultEvidenceLen is the excerpt length the rubric asks for.
	DefaultEvidenceLen = 25
	MinEvidenceLen     = 5
	MaxEvidenceLen     = 60
)

const (
	prefixScores   = "SCORES"
	prefixConf     = "CONF"
	prefixSignals  = "SIGNALS"
	prefixEvidence = "SIG_EVID"
)

var (
	// (3)主体性・行動力: S=4 | C=中 | 根拠=... | 不足=...
	scorecardLine = regexp.MustCompile(
		`(?m)^[ \t]*[(（]\s*(\d{1,2})\s*[)）][^:：\n]*[:：]\s*S\s*=\s*((?i:na)|[0-5])\s*[|｜]\s*C\s*=\s*(高|中|低|(?i:high|medium|low|na))\s*(?:[|｜]|$)`,
	)

	scorePair      = regexp.MustCompile(`^(\d{1,2})\s*=\s*((?i:na)|[0-5])$`)
	confidencePair = regexp.MustCompile(`^(\d{1,2})\s*=\s*(高|中|低|(?i:high|medium|low|na))$`)
	signalPair     = regexp.MustCompile(`^([A-Za-z_]+)\s*=\s*((?i:na)|[01])$`)
	evidencePair   = regexp.MustCompile(`^([A-Za-z_]+)\s*=\s*(.*)$`)

	// Lines that open a new block and therefore end a continued one.
	sectionStart = regexp.MustCompile(`^(?:[A-F][)）]|[A-Z_]+\s*[:：]|[(（]\d+[)）]|#)`)

	flagLine = regexp.MustCompile(`(?m)^[ \t]*(?:[-*・][ \t]*)?\[(CRITICAL|CHECK)\][ \t]*(.*)$`)
)

// ParseScores reads the ten-dimension table from a review. Scorecard lines
// win; the SCORES/CONF summary lines only fill dimensions they left empty.
// Missing or malformed lines leave a dimension NA.
func ParseScores(text string) ScoreTable {
	text = normalizeNewlines(text)
	table := NewScoreTable()

	for _, m := range scorecardLine.FindAllStringSubmatch(text, -1) {
		d := parseDimension(m[1])
		if !d.Valid() || table[d].Source == SourceScorecard {
			continue
		}

		entry := Entry{Source: SourceScorecard}
		if score, ok := parseScore(m[2]); ok {
			entry.Score = score
			entry.Observed = true
		}
		entry.Confidence, _ = ParseConfidence(m[3])
		table[d] = entry
	}

	for _, item := range splitList(extractBlock(text, prefixScores, ","), ",") {
		m := scorePair.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		d := parseDimension(m[1])
		if !d.Valid() || table[d].Source == SourceScorecard {
			continue
		}

		entry := table[d]
		entry.Source = SourceSummary
		entry.Score, entry.Observed = parseScore(m[2])
		table[d] = entry
	}

	for _, item := range splitList(extractBlock(text, prefixConf, ","), ",") {
		m := confidencePair.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		d := parseDimension(m[1])
		if !d.Valid() || table[d].Source == SourceScorecard {
			continue
		}

		entry := table[d]
		entry.Source = SourceSummary
		entry.Confidence, _ = ParseConfidence(m[2])
		table[d] = entry
	}

	for d, entry := range table {
		switch {
		case !entry.Observed:
			entry.Score = 0
			entry.Confidence = ConfidenceNA
		case entry.Confidence == ConfidenceNA:
			entry.Confidence = ConfidenceMedium
		}
		table[d] = entry
	}

	return table
}

// ParseSignals reads the SIGNALS and SIG_EVID blocks with the default
// evidence length.
func ParseSignals(text string) Signals {
	return ParseSignalsWithLimit(text, DefaultEvidenceLen)
}

// ParseSignalsWithLimit reads the SIGNALS and SIG_EVID blocks, truncating
// evidence excerpts to limit characters (clamped to 5..60). A 1 or 0 without
// evidence falls back to NA, or to 0 for ETHICS_RED.
func ParseSignalsWithLimit(text string, limit int) Signals {
	text = normalizeNewlines(text)
	signals := NewSignals()

	for _, item := range splitList(extractBlock(text, prefixSignals, ","), ",") {
		m := signalPair.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		sig, ok := ParseSignal(m[1])
		if !ok {
			continue
		}
		if value, ok := ParseSignalValue(m[2]); ok {
			signals.Values[sig] = value
		}
	}

	for _, item := range splitList(extractBlock(text, prefixEvidence, "|"), "|") {
		m := evidencePair.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		sig, ok := ParseSignal(m[1])
		if !ok {
			continue
		}

		excerpt := ClampEvidence(unquote(m[2]), limit)
		if excerpt == "" || strings.EqualFold(excerpt, "NA") {
			continue
		}
		signals.Evidence[sig] = excerpt
	}

	for _, sig := range SignalOrder {
		value := signals.Values[sig]
		if value == SignalNA || signals.HasEvidence(sig) {
			continue
		}
		signals.Values[sig] = defaultValue(sig)
	}

	return signals
}

// ParseFlags collects [CRITICAL] and [CHECK] lines.
func ParseFlags(text string) Flags {
	var flags Flags
	for _, m := range flagLine.FindAllStringSubmatch(normalizeNewlines(text), -1) {
		flags = append(flags, Flag{Severity: Severity(m[1]), Message: strings.TrimSpace(m[2])})
	}
	return flags
}

// ClampEvidence strips control and zero-width characters, folds the excerpt
// onto one line and shortens it to limit characters, ending with "…" when cut.
func ClampEvidence(s string, limit int) string {
	switch {
	case limit <= 0:
		limit = DefaultEvidenceLen
	case limit < MinEvidenceLen:
		limit = MinEvidenceLen
	case limit > MaxEvidenceLen:
		limit = MaxEvidenceLen
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			return ' '
		case isZeroWidth(r) || unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) <= limit {
		return cleaned
	}
	return string(runes[:limit-1]) + "…"
}

func isZeroWidth(r rune) bool {
	return (r >= 0x200B && r <= 0x200F) || r == 0xFEFF
}

// extractBlock returns the value after "PREFIX:" on the first line carrying
// that prefix, joined with continuation lines that hold "=" pairs.
func extractBlock(text, prefix, sep string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		value, ok := cutLinePrefix(line, prefix)
		if !ok {
			continue
		}

		parts := []string{strings.TrimSpace(value)}
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if next == "" || sectionStart.MatchString(next) || !strings.Contains(next, "=") {
				break
			}
			parts = append(parts, next)
		}

		return strings.Join(parts, sep)
	}
	return ""
}

func cutLinePrefix(line, prefix string) (string, bool) {
	line = strings.TrimLeft(strings.TrimSpace(line), "-*・ ")
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}
	rest = strings.TrimLeft(rest, " \t")
	for _, colon := range []string{":", "："} {
		if value, ok := strings.CutPrefix(rest, colon); ok {
			return value, true
		}
	}
	return "", false
}

func splitList(value, sep string) []string {
	if value == "" {
		return nil
	}
	if sep == "," {
		value = strings.ReplaceAll(value, "、", ",")
	}

	var out []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}}
	for _, p := range pairs {
		if strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) && len(s) >= len(p[0])+len(p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}

func parseDimension(s string) Dimension {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return Dimension(n)
}

func parseScore(s string) (int, bool) {
	if strings.EqualFold(s, "NA") {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 5 {
		return 0, false
	}
	return n, true
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
