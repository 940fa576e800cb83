// Package strategy projects survey policies over multi-year horizons.
//
// Detection is assumed to scale linearly with coverage: a policy surveying
// X% of the portfolio per year detects X × yieldPerPercent kg/h per year,
// where yieldPerPercent is measured from simulation at a reference coverage.
// Years add up independently; re-surveying a site that was already found is
// not modeled as lowering the yield, so the projection has no saturation.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/ldarsim/internal/models"
)

// ErrNoPolicies is returned when Compare is given an empty policy list.
var ErrNoPolicies = errors.New("policy list must not be empty")

// Reference values used when no simulation has been run.
const (
	DefaultYieldPerPercentKgph = 230.2
	DefaultPortfolioTotalKgph  = 55389.2
)

// Constants converts coverage into survey days and cost. A reference survey
// covers ReferenceCoveragePct of the portfolio.
type Constants struct {
	ReferenceCoveragePct   float64
	DaysPerReferenceSurvey float64
	CostPerReferenceSurvey float64
}

// DefaultConstants: one 20% survey takes 108 flight days and costs $500k.
func DefaultConstants() Constants {
	return Constants{
		ReferenceCoveragePct:   20,
		DaysPerReferenceSurvey: 108,
		CostPerReferenceSurvey: 500000,
	}
}

func (c Constants) Validate() error {
	if !(c.ReferenceCoveragePct > 0) || c.ReferenceCoveragePct > 100 {
		return errors.New("reference coverage must be in (0, 100]")
	}
	if c.DaysPerReferenceSurvey < 0 || math.IsNaN(c.DaysPerReferenceSurvey) {
		return errors.New("days per reference survey must not be negative")
	}
	if c.CostPerReferenceSurvey < 0 || math.IsNaN(c.CostPerReferenceSurvey) {
		return errors.New("cost per reference survey must not be negative")
	}
	return nil
}

// DefaultPolicies returns the standard comparison set.
func DefaultPolicies() []models.Policy {
	return []models.Policy{
		{Name: "Status Quo (No LDAR)", AnnualCoveragePct: 0, Years: 5},
		{Name: "Minimum (5% annual)", AnnualCoveragePct: 5, Years: 5},
		{Name: "Standard (20% annual)", AnnualCoveragePct: 20, Years: 5},
		{Name: "Intensive (40% annual)", AnnualCoveragePct: 40, Years: 5},
		{Name: "Full Portfolio (Rotating)", AnnualCoveragePct: 33.3, Years: 5},
	}
}

// Project computes one policy's projection. It is pure arithmetic.
func (c Constants) Project(policy models.Policy, yieldPerPercentKgph, portfolioTotalKgph float64) models.StrategyResult {
	annual := policy.AnnualCoveragePct * yieldPerPercentKgph
	cumulative := annual * float64(policy.Years)

	refUnits := policy.AnnualCoveragePct / c.ReferenceCoveragePct
	cost := refUnits * c.CostPerReferenceSurvey

	return models.StrategyResult{
		Strategy:                policy.Name,
		AnnualCoveragePct:       policy.AnnualCoveragePct,
		Years:                   policy.Years,
		DaysPerYear:             refUnits * c.DaysPerReferenceSurvey,
		AnnualDetectedKgph:      annual,
		AnnualMitigationPct:     percentOf(annual, portfolioTotalKgph),
		CumulativeDetectedKgph:  cumulative,
		CumulativeMitigationPct: percentOf(cumulative, portfolioTotalKgph),
		AnnualCostUSD:           cost,
		CostPerKgph:             ratio(cost, annual),
	}
}

// Compare validates the inputs and projects every policy, in order.
func (c Constants) Compare(policies []models.Policy, yieldPerPercentKgph, portfolioTotalKgph float64) ([]models.StrategyResult, error) {
	if len(policies) == 0 {
		return nil, ErrNoPolicies
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if yieldPerPercentKgph < 0 || math.IsNaN(yieldPerPercentKgph) || math.IsInf(yieldPerPercentKgph, 0) {
		return nil, fmt.Errorf("yield per percent must be a non-negative finite rate, got %v", yieldPerPercentKgph)
	}
	if portfolioTotalKgph < 0 || math.IsNaN(portfolioTotalKgph) || math.IsInf(portfolioTotalKgph, 0) {
		return nil, fmt.Errorf("portfolio total must be a non-negative finite rate, got %v", portfolioTotalKgph)
	}

	results := make([]models.StrategyResult, len(policies))
	for i := range policies {
		if err := policies[i].Validate(); err != nil {
			return nil, fmt.Errorf("policy %d (%q): %w", i, policies[i].Name, err)
		}
		results[i] = c.Project(policies[i], yieldPerPercentKgph, portfolioTotalKgph)
	}
	return results, nil
}

// Best returns the result with the highest cumulative detection. Ties keep
// the earlier policy. ok is false for an empty slice.
func Best(results []models.StrategyResult) (best models.StrategyResult, ok bool) {
	for i, r := range results {
		if i == 0 || r.CumulativeDetectedKgph > best.CumulativeDetectedKgph {
			best = r
			ok = true
		}
	}
	return best, ok
}

func percentOf(v, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return v / total * 100
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
