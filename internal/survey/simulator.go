package survey

import (
	"errors"
	"math/rand/v2"

	"github.com/rewired-gh/ldarsim/internal/detection"
	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/wind"
)

// Simulator runs survey events over a fixed portfolio and unit set.
// It holds no random state; every event gets the *rand.Rand it should use,
// so one Simulator can serve many goroutines.
type Simulator struct {
	portfolio *models.Portfolio
	units     []Unit
	model     *detection.Model
	sampler   *wind.Sampler
	total     float64
}

// NewSimulator checks that units are disjoint and reference the portfolio.
func NewSimulator(portfolio *models.Portfolio, units []Unit, model *detection.Model, sampler *wind.Sampler) (*Simulator, error) {
	if model == nil {
		return nil, errors.New("detection model is required")
	}
	if sampler == nil {
		return nil, errors.New("wind sampler is required")
	}
	if portfolio == nil {
		portfolio = &models.Portfolio{}
	}
	if err := checkDisjoint(units, portfolio.Len()); err != nil {
		return nil, err
	}
	return &Simulator{
		portfolio: portfolio,
		units:     units,
		model:     model,
		sampler:   sampler,
		total:     portfolio.TotalEmissions(),
	}, nil
}

// Units returns the number of survey units.
func (s *Simulator) Units() int {
	return len(s.units)
}

// PortfolioTotal returns the total portfolio emission rate in kg/h.
func (s *Simulator) PortfolioTotal() float64 {
	return s.total
}

// WindSummary reports the status of the wind sampler.
func (s *Simulator) WindSummary() models.WindSummary {
	return s.sampler.Summary()
}

// RunEvent simulates one survey event and returns its aggregate along with the
// per-site outcomes. An empty selection yields a zero-filled result.
func (s *Simulator) RunEvent(rng *rand.Rand, index int, coverage float64) (models.SurveyEventResult, []models.DetectionOutcome, error) {
	selected, err := SelectUnits(rng, len(s.units), coverage)
	if err != nil {
		return models.SurveyEventResult{}, nil, err
	}

	// one wind sample for the whole event
	w := s.sampler.Sample(rng)
	result := models.SurveyEventResult{
		Index:        index,
		WindSpeedMs:  w.SpeedMs,
		WindSource:   w.Source,
		WindDegraded: w.Degraded,
	}

	var outcomes []models.DetectionOutcome
	var probSum float64
	for _, u := range selected {
		unit := s.units[u]
		result.UnitsSurveyed++
		for _, m := range unit.Members {
			site := &s.portfolio.Sites[m]
			p := s.model.Probability(site.EmissionRateKgph, w.SpeedMs)
			detected := rng.Float64() < p

			result.SitesSurveyed++
			result.EmissionsSampledKgph += site.EmissionRateKgph
			probSum += p
			if detected {
				result.SitesDetected++
				result.EmissionsDetectedKgph += site.EmissionRateKgph
			}
			outcomes = append(outcomes, models.DetectionOutcome{SiteIndex: m, Probability: p, Detected: detected})
		}
	}

	if result.SitesSurveyed > 0 {
		result.MeanProbability = probSum / float64(result.SitesSurveyed)
	}
	if s.total > 0 {
		result.MitigationPct = result.EmissionsDetectedKgph / s.total * 100
	}
	return result, outcomes, nil
}
