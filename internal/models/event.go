package models

import (
	"errors"
	"math"
)

// WindSource identifies where a wind sample came from.
type WindSource string

const (
	// WindSourceEmpirical means the sample was drawn from the wind series.
	WindSourceEmpirical WindSource = "empirical"
	// WindSourceUniform means the series was unusable and the sample was
	// drawn uniformly from the flyable envelope instead.
	WindSourceUniform WindSource = "uniform"
)

// WindSample is the single wind speed used for one survey event.
type WindSample struct {
	SpeedMs  float64    `json:"speed_ms"`
	Source   WindSource `json:"source"`
	Degraded bool       `json:"degraded"`
}

// DetectionOutcome is the stochastic detection result for one site in one event.
type DetectionOutcome struct {
	SiteIndex   int     `json:"site_index"`
	Probability float64 `json:"probability"`
	Detected    bool    `json:"detected"`
}

// SurveyEventResult aggregates one simulated survey event.
type SurveyEventResult struct {
	Index                 int        `json:"index"`
	UnitsSurveyed         int        `json:"units_surveyed"`
	SitesSurveyed         int        `json:"sites_surveyed"`
	SitesDetected         int        `json:"sites_detected"`
	EmissionsSampledKgph  float64    `json:"emissions_sampled_kgph"`
	EmissionsDetectedKgph float64    `json:"emissions_detected_kgph"`
	MeanProbability       float64    `json:"mean_probability"`
	WindSpeedMs           float64    `json:"wind_speed_ms"`
	WindSource            WindSource `json:"wind_source"`
	WindDegraded          bool       `json:"wind_degraded"`
	MitigationPct         float64    `json:"mitigation_pct"` // detected / portfolio total x 100
}

// DetectionRate returns the fraction of surveyed sites that were detected.
func (r *SurveyEventResult) DetectionRate() float64 {
	if r.SitesSurveyed == 0 {
		return 0
	}
	return float64(r.SitesDetected) / float64(r.SitesSurveyed)
}

// Validate checks the internal consistency of an event result.
func (r *SurveyEventResult) Validate() error {
	if r.UnitsSurveyed < 0 || r.SitesSurveyed < 0 || r.SitesDetected < 0 {
		return errors.New("counts must not be negative")
	}
	if r.SitesDetected > r.SitesSurveyed {
		return errors.New("sites detected must be <= sites surveyed")
	}
	if r.EmissionsDetectedKgph > r.EmissionsSampledKgph+1e-9 {
		return errors.New("emissions detected must be <= emissions sampled")
	}
	if r.MeanProbability < 0.0 || r.MeanProbability > 1.0 || math.IsNaN(r.MeanProbability) {
		return errors.New("mean probability must be between 0.0 and 1.0")
	}
	if r.SitesSurveyed > 0 && r.UnitsSurveyed == 0 {
		return errors.New("sites surveyed without any unit surveyed")
	}
	return nil
}

// MonteCarloSummary aggregates repeated survey events at one coverage level.
type MonteCarloSummary struct {
	Events              int     `json:"events"`
	Coverage            float64 `json:"coverage"`
	MeanDetectedKgph    float64 `json:"mean_detected_kgph"`
	StdDetectedKgph     float64 `json:"std_detected_kgph"`
	MinDetectedKgph     float64 `json:"min_detected_kgph"`
	MaxDetectedKgph     float64 `json:"max_detected_kgph"`
	CILowerKgph         float64 `json:"ci_lower_kgph"`
	CIUpperKgph         float64 `json:"ci_upper_kgph"`
	MeanSampledKgph     float64 `json:"mean_sampled_kgph"`
	MeanProbability     float64 `json:"mean_probability"`
	MeanMitigationPct   float64 `json:"mean_mitigation_pct"`
	TotalDetectedKgph   float64 `json:"total_detected_kgph"` // summed over all events
	TotalMitigationPct  float64 `json:"total_mitigation_pct"`
	DegradedWindEvents  int     `json:"degraded_wind_events"`
	PortfolioTotalKgph  float64 `json:"portfolio_total_kgph"`
	YieldPerPercentKgph float64 `json:"yield_per_percent_kgph"`
}
