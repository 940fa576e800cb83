// Package wind draws operational wind speeds for survey events.
//
// A Sampler is built from an observed wind-speed series. Only observations
// inside the flyable envelope [MinMs, MaxMs] are kept, and each draw picks one
// of them uniformly. When no series is available, or none of it is flyable,
// the sampler falls back to a uniform draw over the envelope and reports
// itself as degraded so callers can surface the fallback.
package wind

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/ldarsim/internal/models"
)

// Default flyable envelope in m/s.
const (
	DefaultMinMs = 1.0
	DefaultMaxMs = 6.0
)

// Bounds is the inclusive flyable wind envelope.
type Bounds struct {
	MinMs float64
	MaxMs float64
}

// DefaultBounds returns the default flyable envelope.
func DefaultBounds() Bounds {
	return Bounds{MinMs: DefaultMinMs, MaxMs: DefaultMaxMs}
}

// Validate checks that the envelope is finite, non-negative and ordered.
func (b Bounds) Validate() error {
	if math.IsNaN(b.MinMs) || math.IsNaN(b.MaxMs) || math.IsInf(b.MinMs, 0) || math.IsInf(b.MaxMs, 0) {
		return errors.New("wind bounds must be finite")
	}
	if b.MinMs < 0 {
		return errors.New("minimum wind speed must not be negative")
	}
	if b.MinMs > b.MaxMs {
		return fmt.Errorf("minimum wind speed %.2f exceeds maximum %.2f", b.MinMs, b.MaxMs)
	}
	return nil
}

func (b Bounds) contains(v float64) bool {
	return v >= b.MinMs && v <= b.MaxMs
}

// Sampler draws wind speeds. It is immutable after construction and safe for
// concurrent use as long as each goroutine brings its own *rand.Rand.
type Sampler struct {
	bounds  Bounds
	flyable []float64
	summary models.WindSummary
}

// NewSampler filters series to the flyable envelope. NaN values are dropped.
// A nil or fully filtered series is not an error; the sampler is degraded.
func NewSampler(series []float64, bounds Bounds) (*Sampler, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	s := &Sampler{bounds: bounds}
	s.summary = models.WindSummary{MinMs: bounds.MinMs, MaxMs: bounds.MaxMs}

	valid := make([]float64, 0, len(series))
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		valid = append(valid, v)
		if bounds.contains(v) {
			s.flyable = append(s.flyable, v)
		}
	}
	s.summary.SeriesSamples = len(valid)
	s.summary.FlyableSamples = len(s.flyable)
	if s.summary.SeriesSamples > 0 {
		s.summary.MeanSpeedMs = stat.Mean(valid, nil)
		s.summary.FlyableFraction = float64(len(s.flyable)) / float64(s.summary.SeriesSamples)
	}

	switch {
	case series == nil:
		s.degrade("no wind series provided")
	case s.summary.SeriesSamples == 0:
		s.degrade("wind series has no valid observations")
	case len(s.flyable) == 0:
		s.degrade(fmt.Sprintf("no observations within %.1f-%.1f m/s", bounds.MinMs, bounds.MaxMs))
	}
	return s, nil
}

func (s *Sampler) degrade(reason string) {
	s.summary.Degraded = true
	s.summary.Reason = reason + "; sampling uniformly over the flyable envelope"
}

// Degraded reports whether samples come from the uniform fallback.
func (s *Sampler) Degraded() bool {
	return s.summary.Degraded
}

// Summary describes the series and the sampler's status.
func (s *Sampler) Summary() models.WindSummary {
	return s.summary
}

// Bounds returns the flyable envelope.
func (s *Sampler) Bounds() Bounds {
	return s.bounds
}

// Sample draws one wind speed. The result always lies within the envelope.
func (s *Sampler) Sample(rng *rand.Rand) models.WindSample {
	if len(s.flyable) > 0 {
		return models.WindSample{
			SpeedMs: s.flyable[rng.IntN(len(s.flyable))],
			Source:  models.WindSourceEmpirical,
		}
	}
	speed := s.bounds.MinMs + rng.Float64()*(s.bounds.MaxMs-s.bounds.MinMs)
	return models.WindSample{
		SpeedMs:  speed,
		Source:   models.WindSourceUniform,
		Degraded: true,
	}
}
