// Package survey simulates aerial survey events over a well-site portfolio.
//
// A survey unit is the thing a flight visits: a cluster of nearby sites, or a
// single site when the portfolio is surveyed flat. Each simulated event
// selects units without replacement, draws one wind speed for the whole event
// and runs an independent Bernoulli trial per surveyed site.
package survey

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/paulmach/orb"

	"github.com/rewired-gh/ldarsim/internal/models"
)

var (
	// ErrInvalidCoverage is returned for coverage fractions outside (0, 1].
	ErrInvalidCoverage = errors.New("coverage must be in (0, 1]")
	// ErrOverlappingUnits is returned when a site belongs to more than one unit.
	ErrOverlappingUnits = errors.New("site belongs to more than one survey unit")
)

// Unit is a group of sites surveyed together. Members index the portfolio.
type Unit struct {
	ID      int
	Members []int
}

// Centroid is the arithmetic mean location of the unit's sites in p.
// A unit with no members has the zero point.
func (u Unit) Centroid(p *models.Portfolio) orb.Point {
	if len(u.Members) == 0 {
		return orb.Point{}
	}
	var lon, lat float64
	for _, m := range u.Members {
		lon += p.Sites[m].Lon()
		lat += p.Sites[m].Lat()
	}
	n := float64(len(u.Members))
	return orb.Point{lon / n, lat / n}
}

// ClusterUnits turns clusters into survey units. Noise sites are not part of
// any unit and are never surveyed.
func ClusterUnits(c *models.Clustering) []Unit {
	if c == nil {
		return nil
	}
	units := make([]Unit, len(c.Clusters))
	for i, cl := range c.Clusters {
		units[i] = Unit{ID: cl.ID, Members: append([]int(nil), cl.Members...)}
	}
	return units
}

// SiteUnits makes every site of the portfolio its own unit.
func SiteUnits(p *models.Portfolio) []Unit {
	n := p.Len()
	units := make([]Unit, n)
	for i := 0; i < n; i++ {
		units[i] = Unit{ID: i, Members: []int{i}}
	}
	return units
}

// BuildUnits returns the survey units for mode. Cluster mode needs a
// clustering of the same portfolio.
func BuildUnits(mode models.SurveyMode, p *models.Portfolio, c *models.Clustering) ([]Unit, error) {
	switch mode {
	case models.SurveyModeClusters:
		if c == nil {
			return nil, errors.New("cluster mode requires a clustering")
		}
		if len(c.Labels) != p.Len() {
			return nil, fmt.Errorf("clustering covers %d sites, portfolio has %d", len(c.Labels), p.Len())
		}
		return ClusterUnits(c), nil
	case models.SurveyModeSites:
		return SiteUnits(p), nil
	default:
		return nil, fmt.Errorf("unknown survey mode %q", mode)
	}
}

// ValidateCoverage rejects coverage fractions outside (0, 1].
func ValidateCoverage(coverage float64) error {
	if !(coverage > 0) || coverage > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidCoverage, coverage)
	}
	return nil
}

// UnitsForCoverage is floor(n × coverage), tolerant of representation error
// such as 100 × 0.29 landing just below 29.
func UnitsForCoverage(n int, coverage float64) int {
	k := int(math.Floor(float64(n)*coverage + 1e-9))
	if k > n {
		k = n
	}
	if k < 0 {
		k = 0
	}
	return k
}

// SelectUnits picks floor(n × coverage) distinct unit indices uniformly at
// random, without weighting by unit size. Full coverage returns every index
// in order without consuming randomness. The result is sorted.
func SelectUnits(rng *rand.Rand, n int, coverage float64) ([]int, error) {
	if err := ValidateCoverage(coverage); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []int{}, nil
	}
	if coverage == 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	k := UnitsForCoverage(n, coverage)
	// partial Fisher-Yates over an index permutation
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	selected := perm[:k:k]
	sort.Ints(selected)
	return selected, nil
}

// checkDisjoint verifies no site appears in two units and every member is a
// valid portfolio index.
func checkDisjoint(units []Unit, sites int) error {
	owner := make(map[int]int, sites)
	for _, u := range units {
		for _, m := range u.Members {
			if m < 0 || m >= sites {
				return fmt.Errorf("unit %d references site %d outside portfolio of %d", u.ID, m, sites)
			}
			if prev, ok := owner[m]; ok {
				return fmt.Errorf("%w: site %d in units %d and %d", ErrOverlappingUnits, m, prev, u.ID)
			}
			owner[m] = u.ID
		}
	}
	return nil
}
