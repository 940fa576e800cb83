package survey

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/sourcegraph/conc/iter"
	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/ldarsim/internal/logger"
	"github.com/rewired-gh/ldarsim/internal/models"
)

// BatchParams controls a Monte Carlo batch.
type BatchParams struct {
	Coverage   float64
	Iterations int
	Seed       uint64
	Workers    int // <= 0 means GOMAXPROCS
}

// EventRand returns the random source for event index of a batch seeded with
// seed. Events never share generator state, so results do not depend on how
// events are scheduled across goroutines.
func EventRand(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(index)))
}

// MonteCarlo runs params.Iterations independent events in parallel and
// returns them in index order. The result depends only on the seed.
func (s *Simulator) MonteCarlo(ctx context.Context, params BatchParams) ([]models.SurveyEventResult, error) {
	if err := ValidateCoverage(params.Coverage); err != nil {
		return nil, err
	}
	if params.Iterations < 1 {
		return nil, errors.New("iterations must be at least 1")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	indices := make([]int, params.Iterations)
	for i := range indices {
		indices[i] = i
	}

	mapper := iter.Mapper[int, models.SurveyEventResult]{MaxGoroutines: workers}
	results, err := mapper.MapErr(indices, func(i *int) (models.SurveyEventResult, error) {
		if err := ctx.Err(); err != nil {
			return models.SurveyEventResult{}, err
		}
		res, _, err := s.RunEvent(EventRand(params.Seed, *i), *i, params.Coverage)
		return res, err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("MonteCarlo: events=%d coverage=%.3f seed=%d workers=%d", len(results), params.Coverage, params.Seed, workers)
	return results, nil
}

// Summarize aggregates event results. The standard deviation is the
// population one and the interval bounds interpolate linearly between order
// statistics. Undefined statistics are reported as 0: quantiles of no events
// and mitigation percentages of a zero-emission portfolio.
func Summarize(events []models.SurveyEventResult, coverage, portfolioTotal float64) models.MonteCarloSummary {
	sum := models.MonteCarloSummary{
		Events:             len(events),
		Coverage:           coverage,
		PortfolioTotalKgph: portfolioTotal,
	}
	if len(events) == 0 {
		return sum
	}

	detected := make([]float64, len(events))
	sampled := make([]float64, len(events))
	probs := make([]float64, len(events))
	for i, e := range events {
		detected[i] = e.EmissionsDetectedKgph
		sampled[i] = e.EmissionsSampledKgph
		probs[i] = e.MeanProbability
		sum.TotalDetectedKgph += e.EmissionsDetectedKgph
		if e.WindDegraded {
			sum.DegradedWindEvents++
		}
	}

	if len(detected) > 1 {
		sum.MeanDetectedKgph, sum.StdDetectedKgph = stat.PopMeanStdDev(detected, nil)
	} else {
		sum.MeanDetectedKgph = detected[0]
	}
	sum.MeanSampledKgph = stat.Mean(sampled, nil)
	sum.MeanProbability = stat.Mean(probs, nil)

	sorted := append([]float64(nil), detected...)
	sort.Float64s(sorted)
	sum.MinDetectedKgph = sorted[0]
	sum.MaxDetectedKgph = sorted[len(sorted)-1]
	sum.CILowerKgph = rankQuantile(sorted, 0.025)
	sum.CIUpperKgph = rankQuantile(sorted, 0.975)

	if portfolioTotal > 0 {
		sum.MeanMitigationPct = sum.MeanDetectedKgph / portfolioTotal * 100
		sum.TotalMitigationPct = sum.TotalDetectedKgph / portfolioTotal * 100
	}
	sum.YieldPerPercentKgph = YieldPerPercent(sum.MeanDetectedKgph, coverage)
	return sum
}

// rankQuantile returns the p-quantile of sorted, interpolating between the
// order statistics at rank (n-1)p.
func rankQuantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// YieldPerPercent converts a mean detection at a coverage fraction into
// kg/h detected per 1% of the portfolio surveyed. Coverage 0 yields 0.
func YieldPerPercent(meanDetectedKgph, coverage float64) float64 {
	if !(coverage > 0) {
		return 0
	}
	return meanDetectedKgph / (coverage * 100)
}
