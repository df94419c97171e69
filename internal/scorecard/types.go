// Package scorecard holds the fixed evaluation grammar shared by the model
// output and the aggregation engine: ten scored dimensions with a confidence
// label, fourteen fit signals backed by evidence excerpts, and risk flags.
package scorecard

import (
	"fmt"
	"strconv"
	"strings"
)

// Dimension identifies one of the ten rubric dimensions, numbered 1..10.
type Dimension int

const (
	DimensionProblemSolving Dimension = iota + 1
	DimensionChallenge
	DimensionInitiative
	DimensionGrit
	DimensionTeamwork
	DimensionInfluence
	DimensionIntegrity
	DimensionLearning
	DimensionAdaptability
	DimensionCustomerFocus
)

// DimensionCount is the number of rubric dimensions.
const DimensionCount = 10

var dimensionNames = map[Dimension]string{
	DimensionProblemSolving: "課題発見・問題解決力",
	DimensionChallenge:      "チャレンジ精神・向上心",
	DimensionInitiative:     "主体性・行動力",
	DimensionGrit:           "やり抜く力（粘り強さ）",
	DimensionTeamwork:       "協働性・チームワーク",
	DimensionInfluence:      "コミュニケーション・周囲巻き込み力（EQ/影響力含む）",
	DimensionIntegrity:      "誠実性・倫理観（Integrity）",
	DimensionLearning:       "学習意欲・自己成長力（Learning Agility）",
	DimensionAdaptability:   "適応力・柔軟性",
	DimensionCustomerFocus:  "顧客志向・社会貢献マインド（利他・ステークホルダー配慮）",
}

// Dimensions returns all dimensions in rubric order.
func Dimensions() []Dimension {
	out := make([]Dimension, 0, DimensionCount)
	for d := Dimension(1); d <= DimensionCount; d++ {
		out = append(out, d)
	}
	return out
}

func (d Dimension) Valid() bool {
	return d >= 1 && d <= DimensionCount
}

// Name returns the display name used in prompts and reports.
func (d Dimension) Name() string {
	if name, ok := dimensionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dimension %d", int(d))
}

func (d Dimension) String() string {
	return "(" + strconv.Itoa(int(d)) + ")"
}

// Confidence is the evidence strength attached to a dimension score.
// The zero value is NA and higher values rank stronger.
type Confidence int

const (
	ConfidenceNA Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

// ParseConfidence accepts both the Japanese labels (高/中/低) and their
// English equivalents, case-insensitively.
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "高", "high", "h":
		return ConfidenceHigh, true
	case "中", "medium", "mid", "m":
		return ConfidenceMedium, true
	case "低", "low", "l":
		return ConfidenceLow, true
	case "na", "n/a":
		return ConfidenceNA, true
	}
	return ConfidenceNA, false
}

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	}
	return "NA"
}

// Label is the Japanese label the rubric uses.
func (c Confidence) Label() string {
	switch c {
	case ConfidenceHigh:
		return "高"
	case ConfidenceMedium:
		return "中"
	case ConfidenceLow:
		return "低"
	}
	return "NA"
}

// MaxScore is the highest score the rubric allows at this confidence.
func (c Confidence) MaxScore() int {
	switch c {
	case ConfidenceLow:
		return 3
	case ConfidenceMedium:
		return 4
	case ConfidenceHigh:
		return 5
	}
	return 0
}

// Source tells which part of the model output produced an entry.
type Source int

const (
	SourceNone Source = iota
	// SourceScorecard marks entries read from the per-dimension scorecard lines.
	SourceScorecard
	// SourceSummary marks entries read from the SCORES/CONF summary lines.
	SourceSummary
)

// Entry is the score and confidence recorded for one dimension.
type Entry struct {
	Score      int
	Observed   bool
	Confidence Confidence
	Source     Source
}

// ScoreValue formats the score as the rubric writes it.
func (e Entry) ScoreValue() string {
	if !e.Observed {
		return "NA"
	}
	return strconv.Itoa(e.Score)
}

// ScoreTable maps every dimension to its entry. Tables built by NewScoreTable
// or ParseScores always contain all ten dimensions.
type ScoreTable map[Dimension]Entry

// NewScoreTable returns a table where every dimension is NA.
func NewScoreTable() ScoreTable {
	t := make(ScoreTable, DimensionCount)
	for _, d := range Dimensions() {
		t[d] = Entry{}
	}
	return t
}

// Set records an observed score. Out of range values are ignored.
func (t ScoreTable) Set(d Dimension, score int, conf Confidence) {
	if !d.Valid() || score < 0 || score > 5 {
		return
	}
	t[d] = Entry{Score: score, Observed: true, Confidence: conf, Source: t[d].Source}
}

// Observed returns the number of dimensions with a score.
func (t ScoreTable) Observed() int {
	n := 0
	for _, d := range Dimensions() {
		if t[d].Observed {
			n++
		}
	}
	return n
}

// CapViolations lists dimensions whose score exceeds the cap implied by
// their confidence.
func (t ScoreTable) CapViolations() []Dimension {
	var out []Dimension
	for _, d := range Dimensions() {
		e := t[d]
		if e.Observed && e.Confidence != ConfidenceNA && e.Score > e.Confidence.MaxScore() {
			out = append(out, d)
		}
	}
	return out
}

// Capped returns a copy with every score clamped to its confidence cap.
func (t ScoreTable) Capped() ScoreTable {
	out := make(ScoreTable, len(t))
	for d, e := range t {
		if e.Observed && e.Confidence != ConfidenceNA && e.Score > e.Confidence.MaxScore() {
			e.Score = e.Confidence.MaxScore()
		}
		out[d] = e
	}
	return out
}

// Signal is one of the fixed behavioural indicators used for company fit.
type Signal string

const (
	SignalWill      Signal = "WILL"
	SignalKPI       Signal = "KPI"
	SignalIter      Signal = "ITER"
	SignalInnov     Signal = "INNOV"
	SignalTransform Signal = "TRANSFORM"
	SignalAdapt     Signal = "ADAPT"
	SignalEmpathy   Signal = "EMPATHY"
	SignalService   Signal = "SERVICE"
	SignalCoord     Signal = "COORD"
	SignalStake     Signal = "STAKE"
	SignalVision    Signal = "VISION"
	SignalTough     Signal = "TOUGH"
	SignalIntegrity Signal = "INTEGRITY"
	SignalEthicsRed Signal = "ETHICS_RED"
)

// SignalOrder is the fixed key order the model is asked to follow.
var SignalOrder = []Signal{
	SignalWill, SignalKPI, SignalIter, SignalInnov, SignalTransform, SignalAdapt, SignalEmpathy,
	SignalService, SignalCoord, SignalStake, SignalVision, SignalTough, SignalIntegrity, SignalEthicsRed,
}

// ParseSignal resolves a key case-insensitively.
func ParseSignal(s string) (Signal, bool) {
	candidate := Signal(strings.ToUpper(strings.TrimSpace(s)))
	for _, sig := range SignalOrder {
		if sig == candidate {
			return sig, true
		}
	}
	return "", false
}

// SignalValue is the tri-state value of a signal. The zero value is NA.
type SignalValue int

const (
	SignalNA SignalValue = iota
	SignalNo
	SignalYes
)

// ParseSignalValue parses "0", "1" or "NA".
func ParseSignalValue(s string) (SignalValue, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1":
		return SignalYes, true
	case "0":
		return SignalNo, true
	case "NA":
		return SignalNA, true
	}
	return SignalNA, false
}

func (v SignalValue) String() string {
	switch v {
	case SignalYes:
		return "1"
	case SignalNo:
		return "0"
	}
	return "NA"
}

// defaultValue is NA for every signal except ETHICS_RED, which defaults to 0.
func defaultValue(sig Signal) SignalValue {
	if sig == SignalEthicsRed {
		return SignalNo
	}
	return SignalNA
}

// Signals is the parsed signal table together with the evidence excerpts.
type Signals struct {
	Values   map[Signal]SignalValue
	Evidence map[Signal]string
}

// NewSignals returns a table holding the default value for every key.
func NewSignals() Signals {
	s := Signals{
		Values:   make(map[Signal]SignalValue, len(SignalOrder)),
		Evidence: make(map[Signal]string),
	}
	for _, sig := range SignalOrder {
		s.Values[sig] = defaultValue(sig)
	}
	return s
}

// Value returns the value of sig, or its default when absent.
func (s Signals) Value(sig Signal) SignalValue {
	if v, ok := s.Values[sig]; ok {
		return v
	}
	return defaultValue(sig)
}

// HasEvidence reports whether an excerpt backs sig.
func (s Signals) HasEvidence(sig Signal) bool {
	return strings.TrimSpace(s.Evidence[sig]) != ""
}

// Confirmed reports whether sig is 1 and backed by evidence.
func (s Signals) Confirmed(sig Signal) bool {
	return s.Value(sig) == SignalYes && s.HasEvidence(sig)
}

// Severity classifies a risk flag.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityCheck    Severity = "CHECK"
)

// Flag is one risk line from the model output.
type Flag struct {
	Severity Severity
	Message  string
}

// Flags is the list of risk flags found in a review.
type Flags []Flag

// Count returns the number of flags with the given severity.
func (f Flags) Count(severity Severity) int {
	n := 0
	for _, flag := range f {
		if flag.Severity == severity {
			n++
		}
	}
	return n
}
