package models

import (
	"errors"
	"math"
)

// Policy is a named survey scheduling policy.
type Policy struct {
	Name              string  `json:"name" mapstructure:"name"`
	AnnualCoveragePct float64 `json:"annual_coverage_pct" mapstructure:"annual_coverage_pct"`
	Years             int     `json:"years" mapstructure:"years"`
}

// Validate checks that all policy fields are valid
func (p *Policy) Validate() error {
	if p.Name == "" {
		return errors.New("policy name must not be empty")
	}
	if math.IsNaN(p.AnnualCoveragePct) || p.AnnualCoveragePct < 0 || p.AnnualCoveragePct > 100 {
		return errors.New("annual coverage must be between 0 and 100 percent")
	}
	if p.Years < 1 {
		return errors.New("years must be at least 1")
	}
	return nil
}

// StrategyResult is the projection of one policy over its horizon.
type StrategyResult struct {
	Strategy                string  `json:"strategy"`
	AnnualCoveragePct       float64 `json:"annual_coverage_pct"`
	Years                   int     `json:"years"`
	DaysPerYear             float64 `json:"days_per_year"`
	AnnualDetectedKgph      float64 `json:"annual_detection_kgph"`
	AnnualMitigationPct     float64 `json:"annual_mitigation_pct"`
	CumulativeDetectedKgph  float64 `json:"cumulative_detection_kgph"`
	CumulativeMitigationPct float64 `json:"cumulative_mitigation_pct"`
	AnnualCostUSD           float64 `json:"annual_cost_usd"`
	CostPerKgph             float64 `json:"cost_per_kgph"` // 0 when nothing is detected
}
