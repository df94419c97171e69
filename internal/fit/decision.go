package fit

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/spigell/es-reviewer/internal/scorecard"
)

// Decision is the advisory screening outcome. It is a first-pass suggestion,
// the final call is made by a person.
type Decision string

const (
	DecisionPass   Decision = "pass"
	DecisionHold   Decision = "hold"
	DecisionReject Decision = "reject"
)

// Label is the Japanese label shown to users.
func (d Decision) Label() string {
	switch d {
	case DecisionPass:
		return "通過推奨"
	case DecisionHold:
		return "保留（面接で要確認）"
	}
	return "見送り（現状）"
}

// Decide applies the fixed decision rules in order:
// a critical flag or an integrity score of 0 rejects, a conservative score of
// 70+ with medium or high trust passes, 55..69 or low trust holds, anything
// else rejects. A table with nothing observed rejects as well.
func Decide(base Base, flags scorecard.Flags, table scorecard.ScoreTable) Decision {
	if flags.Count(scorecard.SeverityCritical) > 0 || table.Observed() == 0 {
		return DecisionReject
	}
	if e := table[scorecard.DimensionIntegrity]; e.Observed && e.Score == 0 {
		return DecisionReject
	}
	if base.Conservative >= 70 && (base.Trust == TrustHigh || base.Trust == TrustMedium) {
		return DecisionPass
	}
	if (base.Conservative >= 55 && base.Conservative <= 69) || base.Trust == TrustLow {
		return DecisionHold
	}
	return DecisionReject
}

// Top returns up to n non-reference results ordered by final, conservative,
// quality and coverage, all descending.
func Top(results []CompanyResult, n int) []CompanyResult {
	eligible := make([]CompanyResult, 0, len(results))
	for _, r := range results {
		if !r.Reference {
			eligible = append(eligible, r)
		}
	}

	slices.SortStableFunc(eligible, func(a, b CompanyResult) int {
		return cmp.Or(
			cmp.Compare(b.Final, a.Final),
			cmp.Compare(b.Conservative, a.Conservative),
			cmp.Compare(b.Quality, a.Quality),
			cmp.Compare(b.Coverage, a.Coverage),
		)
	})

	if n >= 0 && len(eligible) > n {
		eligible = eligible[:n]
	}
	return eligible
}

// Target is a dimension worth improving.
type Target struct {
	Dimension scorecard.Dimension
	Reason    string
}

// ImproveTargets returns the n dimensions most in need of attention:
// unobserved ones first, then lower scores, then lower confidence.
func ImproveTargets(table scorecard.ScoreTable, n int) []Target {
	dims := scorecard.Dimensions()
	slices.SortStableFunc(dims, func(a, b scorecard.Dimension) int {
		ea, eb := table[a], table[b]
		if ea.Observed != eb.Observed {
			if !ea.Observed {
				return -1
			}
			return 1
		}
		return cmp.Or(
			cmp.Compare(ea.Score, eb.Score),
			cmp.Compare(ea.Confidence, eb.Confidence),
		)
	})

	if n >= 0 && len(dims) > n {
		dims = dims[:n]
	}

	out := make([]Target, 0, len(dims))
	for _, d := range dims {
		out = append(out, Target{Dimension: d, Reason: improveReason(table[d])})
	}
	return out
}

func improveReason(e scorecard.Entry) string {
	if !e.Observed {
		return "未言及（面接で確認）"
	}
	reason := fmt.Sprintf("スコア%dで改善余地", e.Score)
	if e.Confidence == scorecard.ConfidenceLow {
		reason += "（根拠薄）"
	}
	return reason
}
