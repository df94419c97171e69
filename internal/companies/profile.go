// Package companies holds the company addon catalog: per-company dimension
// weights, fit rules and the aliases used to recognise a company name.
package companies

import (
	"github.com/spigell/es-reviewer/internal/scorecard"
)

const (
	// DefaultFitMax is used when a profile sets neither fit-max nor any rule points.
	DefaultFitMax = 20
	// DefaultFitBonusMax caps the fit bonus when a profile does not set it.
	DefaultFitBonusMax = 12
	// DefaultGateMinScore applies when a gate leaves min-score unset.
	DefaultGateMinScore = 3
)

// Profile is one company addon.
type Profile struct {
	ID        string                      `mapstructure:"id" validate:"required"`
	Label     string                      `mapstructure:"label" validate:"required"`
	Core      string                      `mapstructure:"core"`
	Emphasis  []scorecard.Dimension       `mapstructure:"emphasis" validate:"dive,min=1,max=10"`
	Note      string                      `mapstructure:"note"`
	Weights   map[scorecard.Dimension]int `mapstructure:"weights" validate:"required,min=1,dive,keys,min=1,max=10,endkeys,gt=0"`
	Checks    []string                    `mapstructure:"checks"`
	Aliases   []string                    `mapstructure:"aliases" validate:"required,min=1,dive,required"`
	FitMax    int                         `mapstructure:"fit-max" validate:"gte=0"`
	BonusMax  int                         `mapstructure:"fit-bonus-max" validate:"gte=0"`
	FitRules  []FitRule                   `mapstructure:"fit-rules" validate:"dive"`
	FitCombos []FitCombo                  `mapstructure:"fit-combos" validate:"dive"`
	Penalties []PenaltyRule               `mapstructure:"penalties" validate:"dive"`
}

// FitRule awards points for a signal or for a dimension score.
// Exactly one of Signal and Dimension is set.
type FitRule struct {
	ID        string              `mapstructure:"id" validate:"required"`
	Signal    scorecard.Signal    `mapstructure:"signal" validate:"required_without=Dimension,excluded_with=Dimension,omitempty,signal"`
	Dimension scorecard.Dimension `mapstructure:"dim" validate:"required_without=Signal,omitempty,min=1,max=10"`
	Points    int                 `mapstructure:"points" validate:"gt=0"`
	Gate      *Gate               `mapstructure:"gate"`
}

// Gate requires a minimum score and confidence before a rule counts.
// For signal rules at least one of Dimensions must pass; an empty list passes.
type Gate struct {
	Dimensions    []scorecard.Dimension `mapstructure:"dims" validate:"dive,min=1,max=10"`
	MinScore      *int                  `mapstructure:"min-score" validate:"omitempty,gte=0,lte=5"`
	MinConfidence string                `mapstructure:"min-confidence" validate:"omitempty,confidence"`
}

// FitCombo awards points when every required signal holds the required value.
type FitCombo struct {
	ID      string                   `mapstructure:"id" validate:"required"`
	Require map[scorecard.Signal]int `mapstructure:"require" validate:"required,min=1,dive,keys,signal,endkeys,oneof=0 1"`
	Points  int                      `mapstructure:"points" validate:"gt=0"`
}

// PenaltyRule deducts points when a signal is confirmed.
type PenaltyRule struct {
	ID      string           `mapstructure:"id" validate:"required"`
	Signal  scorecard.Signal `mapstructure:"signal" validate:"required,signal"`
	Penalty int              `mapstructure:"penalty" validate:"gt=0"`
}

// Threshold returns the minimum score, defaulting to 3 when min-score is
// unset. An explicit 0 lets any observed score pass.
func (g *Gate) Threshold() int {
	if g == nil || g.MinScore == nil {
		return DefaultGateMinScore
	}
	return *g.MinScore
}

// Confidence returns the minimum confidence, defaulting to medium.
func (g *Gate) Confidence() scorecard.Confidence {
	if g == nil {
		return scorecard.ConfidenceMedium
	}
	if c, ok := scorecard.ParseConfidence(g.MinConfidence); ok && c != scorecard.ConfidenceNA {
		return c
	}
	return scorecard.ConfidenceMedium
}

// Passes reports whether the entry meets the gate thresholds.
func (g *Gate) Passes(e scorecard.Entry) bool {
	return e.Observed && e.Score >= g.Threshold() && e.Confidence >= g.Confidence()
}

// TotalWeight is the configured weight mass of the profile.
func (p *Profile) TotalWeight() int {
	sum := 0
	for _, w := range p.Weights {
		sum += w
	}
	return sum
}

// RulePoints is the sum of all fit rule points.
func (p *Profile) RulePoints() int {
	sum := 0
	for _, r := range p.FitRules {
		if r.Points > 0 {
			sum += r.Points
		}
	}
	return sum
}

// ComboPoints is the sum of all combo points.
func (p *Profile) ComboPoints() int {
	sum := 0
	for _, c := range p.FitCombos {
		if c.Points > 0 {
			sum += c.Points
		}
	}
	return sum
}

// MaxFit returns the point total that earns the full bonus.
func (p *Profile) MaxFit() int {
	if p.FitMax > 0 {
		return p.FitMax
	}
	if sum := p.RulePoints() + p.ComboPoints(); sum > 0 {
		return sum
	}
	return DefaultFitMax
}

// MaxBonus returns the bonus cap.
func (p *Profile) MaxBonus() int {
	if p.BonusMax > 0 {
		return p.BonusMax
	}
	return DefaultFitBonusMax
}
