package fit

import (
	"math"

	"github.com/spigell/es-reviewer/internal/companies"
	"github.com/spigell/es-reviewer/internal/scorecard"
)

// ReferenceCoverage is the weight coverage below which a company result is
// only a reference and is left out of the ranking.
const ReferenceCoverage = 0.6

// maxHits limits how many matched rule ids a result reports.
const maxHits = 6

// CompanyResult is the score of one essay against one company profile.
type CompanyResult struct {
	ID           string
	Label        string
	Quality      int
	Conservative int
	Final        int
	Coverage     float64
	Reference    bool
	Fit          Bonus
}

// Bonus is the outcome of the fit rules of a profile.
type Bonus struct {
	Bonus    int
	Penalty  int
	Net      int
	Coverage float64
	Hits     []string
}

// CompanyScores scores every profile against the same tables, in profile order.
func CompanyScores(profiles []*companies.Profile, table scorecard.ScoreTable, signals scorecard.Signals) []CompanyResult {
	out := make([]CompanyResult, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, CompanyScore(p, table, signals))
	}
	return out
}

// CompanyScore weights the observed dimensions with the profile weights and
// adds the fit bonus. A profile whose weighted dimensions are all NA scores 0
// and is marked as reference.
func CompanyScore(p *companies.Profile, table scorecard.ScoreTable, signals scorecard.Signals) CompanyResult {
	res := CompanyResult{ID: p.ID, Label: p.Label}

	weighted, denom := 0, 0
	for d, w := range p.Weights {
		e := table[d]
		if !e.Observed || w <= 0 {
			continue
		}
		weighted += w * e.Score
		denom += w
	}

	if denom == 0 {
		res.Reference = true
		return res
	}

	total := p.TotalWeight()
	res.Coverage = clampFloat(float64(denom)/float64(total), 0, 1)
	res.Quality = round(float64(weighted) / float64(denom) * 20)
	res.Conservative = round(float64(res.Quality) * (0.9 + 0.1*res.Coverage))
	res.Reference = res.Coverage < ReferenceCoverage
	res.Fit = ComputeBonus(p, table, signals)
	res.Final = clamp(res.Conservative+res.Fit.Net, 0, 100)

	return res
}

// ComputeBonus evaluates the fit rules, combos and penalties of a profile.
func ComputeBonus(p *companies.Profile, table scorecard.ScoreTable, signals scorecard.Signals) Bonus {
	var (
		observed, hit, combo, penalty int
		hits                          []string
	)

	for _, rule := range p.FitRules {
		if rule.Points <= 0 {
			continue
		}

		if rule.Dimension.Valid() {
			e := table[rule.Dimension]
			if !e.Observed {
				continue
			}
			observed += rule.Points
			if rule.Gate == nil || rule.Gate.Passes(e) {
				hit += rule.Points
				hits = append(hits, rule.ID)
			}
			continue
		}

		value := signals.Value(rule.Signal)
		if value == scorecard.SignalNA || !signals.HasEvidence(rule.Signal) {
			continue
		}
		if !gateOpen(rule.Gate, table) {
			continue
		}

		observed += rule.Points
		if value == scorecard.SignalYes {
			hit += rule.Points
			hits = append(hits, rule.ID)
		}
	}

	for _, c := range p.FitCombos {
		if c.Points <= 0 || len(c.Require) == 0 {
			continue
		}
		if comboHolds(c, signals) {
			combo += c.Points
			hits = append(hits, c.ID)
		}
	}

	for _, pr := range p.Penalties {
		if pr.Penalty > 0 && signals.Confirmed(pr.Signal) {
			penalty += pr.Penalty
		}
	}

	coverage := 0.0
	if ruleMax := p.RulePoints(); ruleMax > 0 {
		coverage = float64(observed) / float64(ruleMax)
	}

	fitMax := float64(p.MaxFit())
	attained := min(fitMax, float64(hit+combo))
	bonus := round(attained / fitMax * math.Sqrt(clampFloat(coverage, 0, 1)) * float64(p.MaxBonus()))

	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}

	return Bonus{
		Bonus:    bonus,
		Penalty:  penalty,
		Net:      bonus - penalty,
		Coverage: coverage,
		Hits:     hits,
	}
}

// gateOpen passes when no gate is set, when the gate lists no dimensions, or
// when any listed dimension meets both thresholds.
func gateOpen(g *companies.Gate, table scorecard.ScoreTable) bool {
	if g == nil || len(g.Dimensions) == 0 {
		return true
	}
	for _, d := range g.Dimensions {
		if g.Passes(table[d]) {
			return true
		}
	}
	return false
}

func comboHolds(c companies.FitCombo, signals scorecard.Signals) bool {
	for sig, want := range c.Require {
		if !signals.HasEvidence(sig) {
			return false
		}
		if want == 1 && signals.Value(sig) != scorecard.SignalYes {
			return false
		}
		if want == 0 && signals.Value(sig) != scorecard.SignalNo {
			return false
		}
	}
	return true
}
