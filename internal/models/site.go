// Package models defines the core domain entities for ldarsim.
// These models represent the well-site portfolio, the survey units derived
// from it, per-event detection results and multi-year strategy projections.
// All models include built-in validation to ensure data integrity throughout the application.
//
// Terminology:
//   - Site: a single well pad location with a measured methane emission rate.
//   - Portfolio: the ordered set of sites an operator is responsible for.
//   - Unit: whatever one survey visit covers; a cluster of sites, or a single
//     site when the portfolio is surveyed flat.
package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidSite marks a site that cannot be loaded into a portfolio.
var ErrInvalidSite = errors.New("invalid site")

// Site is a single well site. Location follows the orb convention:
// X is longitude and Y is latitude, both in decimal degrees.
type Site struct {
	ID               string    `json:"id"`
	Location         orb.Point `json:"location"`
	EmissionRateKgph float64   `json:"emission_rate_kgph"`
}

// Lat returns the site latitude in degrees.
func (s *Site) Lat() float64 { return s.Location.Lat() }

// Lon returns the site longitude in degrees.
func (s *Site) Lon() float64 { return s.Location.Lon() }

// Validate checks that all site fields are valid.
func (s *Site) Validate() error {
	lat, lon := s.Location.Lat(), s.Location.Lon()
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return errors.New("latitude must be a finite value between -90 and 90")
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return errors.New("longitude must be a finite value between -180 and 180")
	}
	if math.IsNaN(s.EmissionRateKgph) || math.IsInf(s.EmissionRateKgph, 0) {
		return errors.New("emission rate must be finite")
	}
	if s.EmissionRateKgph < 0 {
		return errors.New("emission rate must not be negative")
	}
	return nil
}

// Portfolio is the ordered, immutable collection of sites for one run.
type Portfolio struct {
	Sites []Site `json:"sites"`
}

// NewPortfolio validates every site and returns a portfolio owning them.
// Sites without an ID get their position as ID.
func NewPortfolio(sites []Site) (*Portfolio, error) {
	owned := make([]Site, len(sites))
	copy(owned, sites)
	for i := range owned {
		if err := owned[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w at index %d: %v", ErrInvalidSite, i, err)
		}
		if owned[i].ID == "" {
			owned[i].ID = fmt.Sprintf("site-%d", i)
		}
	}
	return &Portfolio{Sites: owned}, nil
}

// Len returns the number of sites.
func (p *Portfolio) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Sites)
}

// TotalEmissions returns the summed emission rate of all sites in kg/h.
func (p *Portfolio) TotalEmissions() float64 {
	if p == nil {
		return 0
	}
	var total float64
	for i := range p.Sites {
		total += p.Sites[i].EmissionRateKgph
	}
	return total
}

// Summary returns the portfolio totals reported for a run.
func (p *Portfolio) Summary() PortfolioSummary {
	summary := PortfolioSummary{Sites: p.Len()}
	if summary.Sites == 0 {
		return summary
	}
	summary.MinEmissionKgph = math.Inf(1)
	for i := range p.Sites {
		e := p.Sites[i].EmissionRateKgph
		summary.TotalEmissionsKgph += e
		summary.MinEmissionKgph = math.Min(summary.MinEmissionKgph, e)
		summary.MaxEmissionKgph = math.Max(summary.MaxEmissionKgph, e)
	}
	summary.MeanEmissionKgph = summary.TotalEmissionsKgph / float64(summary.Sites)
	return summary
}

// PortfolioSummary holds aggregate portfolio figures.
type PortfolioSummary struct {
	Sites              int     `json:"sites"`
	TotalEmissionsKgph float64 `json:"total_emissions_kgph"`
	MeanEmissionKgph   float64 `json:"mean_emission_kgph"`
	MinEmissionKgph    float64 `json:"min_emission_kgph"`
	MaxEmissionKgph    float64 `json:"max_emission_kgph"`
}
