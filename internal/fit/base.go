// Package fit turns a parsed scorecard into scores: the company-blind base
// score, per-company weighted scores with signal-driven fit bonuses, the
// advisory decision, the company ranking and the improvement targets.
package fit

import (
	"math"

	"github.com/spigell/es-reviewer/internal/scorecard"
)

// Trust describes how many dimensions could be observed.
type Trust string

const (
	TrustHigh   Trust = "high"
	TrustMedium Trust = "medium"
	TrustLow    Trust = "low"
)

// Label is the Japanese label used in replies.
func (t Trust) Label() string {
	switch t {
	case TrustHigh:
		return "高"
	case TrustMedium:
		return "中"
	}
	return "低"
}

// Base is the company-blind score.
type Base struct {
	N            int
	Trust        Trust
	Quality      int
	Conservative int
}

// BaseScore averages the observed dimensions; NA dimensions are excluded.
func BaseScore(table scorecard.ScoreTable) Base {
	n, sum := 0, 0
	for _, d := range scorecard.Dimensions() {
		if e := table[d]; e.Observed {
			n++
			sum += e.Score
		}
	}

	base := Base{N: n, Trust: trustFor(n)}
	if n == 0 {
		return base
	}

	avg := float64(sum) / float64(n)
	base.Quality = round(avg / 5 * 100)
	base.Conservative = round(float64(base.Quality) * (0.9 + 0.1*float64(n)/scorecard.DimensionCount))

	return base
}

func trustFor(n int) Trust {
	switch {
	case n >= 7:
		return TrustHigh
	case n >= 4:
		return TrustMedium
	}
	return TrustLow
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
