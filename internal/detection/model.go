// Package detection implements the wind-dependent probability-of-detection
// (POD) curve of an aerial methane sensor.
//
// The curve is a logistic in log-emission space whose midpoint moves with wind:
//
//	threshold = PODThresholdKgph × exp(WindExponent × (wind − BaselineWindMs))
//	pod       = 1 / (1 + exp(−Steepness × (ln(e) − ln(threshold))))
//
// At baseline wind an emission equal to PODThresholdKgph sits exactly on the
// logistic midpoint (pod = 0.5). The threshold is often quoted as the "90%
// POD" rate in calibration notes; the formula does not reproduce that, and
// callers must not assume 90% at the threshold.
package detection

import (
	"errors"
	"math"
)

// Default calibration constants.
const (
	DefaultPODThresholdKgph = 1.27
	DefaultSteepness        = 2.0
	DefaultBaselineWindMs   = 3.5
	DefaultWindExponent     = -0.3
)

// Params is the calibration of the detection curve.
type Params struct {
	PODThresholdKgph float64 `json:"pod_threshold_kgph"`
	Steepness        float64 `json:"steepness"`
	BaselineWindMs   float64 `json:"baseline_wind_ms"`
	WindExponent     float64 `json:"wind_exponent"`
}

// DefaultParams returns the default sensor calibration.
func DefaultParams() Params {
	return Params{
		PODThresholdKgph: DefaultPODThresholdKgph,
		Steepness:        DefaultSteepness,
		BaselineWindMs:   DefaultBaselineWindMs,
		WindExponent:     DefaultWindExponent,
	}
}

// Validate checks that the calibration produces a well-defined curve.
// A non-negative wind exponent would make detection improve with wind, so it
// is rejected too.
func (p Params) Validate() error {
	if !(p.PODThresholdKgph > 0) || math.IsInf(p.PODThresholdKgph, 0) {
		return errors.New("pod threshold must be a positive finite rate")
	}
	if !(p.Steepness > 0) || math.IsInf(p.Steepness, 0) {
		return errors.New("steepness must be a positive finite value")
	}
	if math.IsNaN(p.BaselineWindMs) || math.IsInf(p.BaselineWindMs, 0) || p.BaselineWindMs < 0 {
		return errors.New("baseline wind must be a non-negative finite speed")
	}
	if !(p.WindExponent < 0) || math.IsInf(p.WindExponent, 0) {
		return errors.New("wind exponent must be a negative finite value")
	}
	return nil
}

// Model evaluates the detection curve for one calibration.
type Model struct {
	params       Params
	logThreshold float64
}

// NewModel validates params and returns a Model.
func NewModel(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: params, logThreshold: math.Log(params.PODThresholdKgph)}, nil
}

// Params returns the calibration the model was built with.
func (m *Model) Params() Params {
	return m.params
}

// Threshold returns the wind-adjusted logistic midpoint in kg/h.
func (m *Model) Threshold(windSpeedMs float64) float64 {
	return m.params.PODThresholdKgph * math.Exp(m.params.WindExponent*(windSpeedMs-m.params.BaselineWindMs))
}

// Probability returns the detection probability in [0, 1] for an emission
// rate in kg/h at the given wind speed in m/s. Rates <= 0 are undetectable
// and return exactly 0.
func (m *Model) Probability(emissionRateKgph, windSpeedMs float64) float64 {
	if !(emissionRateKgph > 0) {
		return 0
	}
	// ln(threshold) expanded so extreme winds do not overflow exp()
	logThreshold := m.logThreshold + m.params.WindExponent*(windSpeedMs-m.params.BaselineWindMs)
	exponent := m.params.Steepness * (math.Log(emissionRateKgph) - logThreshold)
	pod := 1.0 / (1.0 + math.Exp(-exponent))
	return math.Max(0, math.Min(1, pod))
}
