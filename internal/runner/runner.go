// Package runner executes the end-to-end simulation: cluster the portfolio,
// run the Monte Carlo survey batch, plan the schedule, compare policies and
// assemble a RunReport.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/rewired-gh/ldarsim/internal/cluster"
	"github.com/rewired-gh/ldarsim/internal/config"
	"github.com/rewired-gh/ldarsim/internal/detection"
	"github.com/rewired-gh/ldarsim/internal/logger"
	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/report"
	"github.com/rewired-gh/ldarsim/internal/survey"
	"github.com/rewired-gh/ldarsim/internal/wind"
)

// Runner holds a validated configuration and the components built from it.
type Runner struct {
	cfg       *config.Config
	clusterer *cluster.Clusterer
	model     *detection.Model
	now       func() time.Time
}

// New validates cfg and builds the stateless components.
func New(cfg *config.Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	clusterer, err := cluster.New(cfg.ClusterParams())
	if err != nil {
		return nil, err
	}
	model, err := detection.NewModel(cfg.DetectionParams())
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, clusterer: clusterer, model: model, now: time.Now}, nil
}

// Cluster runs the clusterer over the portfolio.
func (r *Runner) Cluster(portfolio *models.Portfolio) *models.Clustering {
	return r.clusterer.Cluster(portfolio)
}

// Run executes the full pipeline. A nil wind series is valid and makes
// sampling fall back to the uniform model; the report records that.
func (r *Runner) Run(ctx context.Context, portfolio *models.Portfolio, windSeries []float64) (*models.RunReport, error) {
	if portfolio == nil {
		portfolio = &models.Portfolio{}
	}
	started := r.now()

	clustering := r.clusterer.Cluster(portfolio)
	if err := clustering.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent clustering: %w", err)
	}
	logger.Info("Clustered %d sites into %d clusters (%d noise)",
		portfolio.Len(), len(clustering.Clusters), clustering.NoiseCount)

	mode := r.cfg.SurveyMode()
	units, err := survey.BuildUnits(mode, portfolio, clustering)
	if err != nil {
		return nil, err
	}

	sampler, err := wind.NewSampler(windSeries, r.cfg.WindBounds())
	if err != nil {
		return nil, err
	}
	if sampler.Degraded() {
		logger.Warn("Wind sampling degraded: %s", sampler.Summary().Reason)
	}

	sim, err := survey.NewSimulator(portfolio, units, r.model, sampler)
	if err != nil {
		return nil, err
	}

	seed := r.cfg.ResolveSeed(started)
	batch := r.cfg.BatchParams(seed)
	logger.Info("Simulating %d events at %.0f%% coverage (mode=%s, seed=%d)",
		batch.Iterations, batch.Coverage*100, mode, seed)

	events, err := sim.MonteCarlo(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("monte carlo failed: %w", err)
	}
	summary := survey.Summarize(events, batch.Coverage, sim.PortfolioTotal())

	sizes := make([]int, len(units))
	centroids := make([]orb.Point, len(units))
	for i, u := range units {
		sizes[i] = len(u.Members)
		centroids[i] = u.Centroid(portfolio)
	}
	sched := r.cfg.ScheduleParams()
	plan := sched.Plan(sizes, batch.Coverage)
	plan.SweepTravelMinutes = sched.SweepMinutes(centroids)
	if !plan.FitsAvailableDays {
		logger.Warn("Schedule needs %.1f flight days per period, only %.1f available",
			plan.FlightDaysPerPeriod, plan.DaysAvailablePerPeriod)
	}

	strategies, err := r.cfg.StrategyConstants().Compare(r.cfg.Policies(), summary.YieldPerPercentKgph, sim.PortfolioTotal())
	if err != nil {
		return nil, err
	}

	rep := &models.RunReport{
		ID:         uuid.NewString(),
		CreatedAt:  started,
		Portfolio:  portfolio.Summary(),
		Clustering: clustering.Summary(),
		Survey: models.SurveyParams{
			Mode:       mode,
			Coverage:   batch.Coverage,
			Iterations: batch.Iterations,
			Seed:       seed,
		},
		Schedule:   plan,
		Wind:       sampler.Summary(),
		Events:     events,
		Summary:    summary,
		Strategies: strategies,
	}
	if n := report.Finite(rep); n > 0 {
		logger.Warn("Replaced %d non-finite values in report %s", n, rep.ID)
	}

	logger.Info("Run %s: mean detected %.1f kg/h (%.2f%% of portfolio), yield %.2f kg/h per 1%%",
		rep.ID, summary.MeanDetectedKgph, summary.MeanMitigationPct, summary.YieldPerPercentKgph)
	return rep, nil
}
