package models

import (
	"errors"
	"time"
)

// SurveyMode selects what a survey unit is.
type SurveyMode string

const (
	// SurveyModeClusters surveys DBSCAN clusters; noise sites are never visited.
	SurveyModeClusters SurveyMode = "clusters"
	// SurveyModeSites surveys the flat portfolio, one site per unit.
	SurveyModeSites SurveyMode = "sites"
)

// SurveyParams records how the Monte Carlo batch was run.
type SurveyParams struct {
	Mode       SurveyMode `json:"mode"`
	Coverage   float64    `json:"coverage"`
	Iterations int        `json:"iterations"`
	Seed       uint64     `json:"seed"`
}

// SchedulePlan is the analytical flight-time estimate for a survey schedule.
type SchedulePlan struct {
	Units                  int     `json:"units"`
	TotalSurveyMinutes     float64 `json:"total_survey_minutes"`
	MeanUnitMinutes        float64 `json:"mean_unit_minutes"`
	PeriodsPerYear         int     `json:"periods_per_year"`
	UnitsPerPeriod         int     `json:"units_per_period"`
	HoursPerPeriod         float64 `json:"hours_per_period"`
	FlightDaysPerPeriod    float64 `json:"flight_days_per_period"`
	DaysAvailablePerPeriod float64 `json:"days_available_per_period"`
	YearsToFullCoverage    float64 `json:"years_to_full_coverage"`
	FitsAvailableDays      bool    `json:"fits_available_days"`
	SweepTravelMinutes     float64 `json:"sweep_travel_minutes"` // one west-to-east pass over all unit centroids
}

// WindSummary describes the wind series and whether sampling was degraded.
type WindSummary struct {
	MinMs           float64 `json:"min_ms"`
	MaxMs           float64 `json:"max_ms"`
	SeriesSamples   int     `json:"series_samples"`
	MeanSpeedMs     float64 `json:"mean_speed_ms"`
	FlyableSamples  int     `json:"flyable_samples"`
	FlyableFraction float64 `json:"flyable_fraction"`
	Degraded        bool    `json:"degraded"`
	Reason          string  `json:"reason,omitempty"`
}

// RunReport is the complete output of one end-to-end run.
type RunReport struct {
	ID         string              `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	Portfolio  PortfolioSummary    `json:"portfolio"`
	Clustering ClusteringSummary   `json:"clustering"`
	Survey     SurveyParams        `json:"survey"`
	Schedule   SchedulePlan        `json:"schedule"`
	Wind       WindSummary         `json:"wind"`
	Events     []SurveyEventResult `json:"events"`
	Summary    MonteCarloSummary   `json:"summary"`
	Strategies []StrategyResult    `json:"strategies,omitempty"`
}

// Validate checks that the report is complete enough to be stored.
func (r *RunReport) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	if r.CreatedAt.After(time.Now()) {
		return errors.New("created at must not be in the future")
	}
	if r.Survey.Mode != SurveyModeClusters && r.Survey.Mode != SurveyModeSites {
		return errors.New("survey mode must be 'clusters' or 'sites'")
	}
	for i := range r.Events {
		if err := r.Events[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
