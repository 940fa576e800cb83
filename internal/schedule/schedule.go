// Package schedule estimates flight time for a periodic survey program.
// The estimates are analytical approximations, not a route optimizer.
package schedule

import (
	"errors"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/rewired-gh/ldarsim/internal/geodesy"
	"github.com/rewired-gh/ldarsim/internal/models"
)

// Params holds the flight-time constants.
type Params struct {
	BaselineMinutesPerUnit float64
	MinutesPerSite         float64
	FlightSpeedKmh         float64
	FlightHoursPerDay      float64
	DaysAvailablePerYear   float64
	PeriodsPerYear         int
}

// DefaultParams returns the default flight-time constants: quarterly surveys,
// 195 flyable days per year.
func DefaultParams() Params {
	return Params{
		BaselineMinutesPerUnit: 2,
		MinutesPerSite:         0.5,
		FlightSpeedKmh:         70,
		FlightHoursPerDay:      8,
		DaysAvailablePerYear:   195,
		PeriodsPerYear:         4,
	}
}

// Validate rejects constants that would produce undefined estimates.
func (p Params) Validate() error {
	if p.BaselineMinutesPerUnit < 0 || p.MinutesPerSite < 0 {
		return errors.New("survey minutes must not be negative")
	}
	if !(p.FlightSpeedKmh > 0) {
		return errors.New("flight speed must be positive")
	}
	if !(p.FlightHoursPerDay > 0) || p.FlightHoursPerDay > 24 {
		return errors.New("flight hours per day must be in (0, 24]")
	}
	if p.DaysAvailablePerYear < 0 || p.DaysAvailablePerYear > 366 {
		return errors.New("days available per year must be in [0, 366]")
	}
	if p.PeriodsPerYear < 1 {
		return errors.New("periods per year must be at least 1")
	}
	return nil
}

// UnitMinutes is the time spent surveying a unit of the given size.
func (p Params) UnitMinutes(members int) float64 {
	return p.BaselineMinutesPerUnit + p.MinutesPerSite*float64(members)
}

// TravelMinutes is the flight time along an ordered list of stops, summing
// great-circle legs between consecutive stops.
func (p Params) TravelMinutes(stops []orb.Point) float64 {
	var km float64
	for i := 1; i < len(stops); i++ {
		km += geodesy.PointDistanceKm(stops[i-1], stops[i])
	}
	return km / p.FlightSpeedKmh * 60
}

// SweepMinutes is the travel time for one pass over every stop, flown west
// to east (ties south to north). stops is not modified.
func (p Params) SweepMinutes(stops []orb.Point) float64 {
	ordered := append([]orb.Point(nil), stops...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Lon() != ordered[j].Lon() {
			return ordered[i].Lon() < ordered[j].Lon()
		}
		return ordered[i].Lat() < ordered[j].Lat()
	})
	return p.TravelMinutes(ordered)
}

// Plan estimates the program for units of the given sizes surveyed at
// coverage per period.
func (p Params) Plan(unitSizes []int, coverage float64) models.SchedulePlan {
	plan := models.SchedulePlan{
		Units:          len(unitSizes),
		PeriodsPerYear: p.PeriodsPerYear,
	}
	for _, n := range unitSizes {
		plan.TotalSurveyMinutes += p.UnitMinutes(n)
	}
	if plan.Units > 0 {
		plan.MeanUnitMinutes = plan.TotalSurveyMinutes / float64(plan.Units)
	}

	plan.UnitsPerPeriod = int(math.Floor(float64(plan.Units)*coverage + 1e-9))
	plan.HoursPerPeriod = float64(plan.UnitsPerPeriod) * plan.MeanUnitMinutes / 60
	if p.FlightHoursPerDay > 0 {
		plan.FlightDaysPerPeriod = plan.HoursPerPeriod / p.FlightHoursPerDay
	}
	if p.PeriodsPerYear > 0 {
		plan.DaysAvailablePerPeriod = p.DaysAvailablePerYear / float64(p.PeriodsPerYear)
	}
	if coverage > 0 && p.PeriodsPerYear > 0 {
		plan.YearsToFullCoverage = 1 / (coverage * float64(p.PeriodsPerYear))
	}
	plan.FitsAvailableDays = plan.FlightDaysPerPeriod <= plan.DaysAvailablePerPeriod
	return plan
}
