// Package geodesy provides the distance and unit conversions used for
// clustering well sites and estimating flight legs between clusters.
package geodesy

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean Earth radius used by all distance calculations.
const EarthRadiusKm = 6371.0

// DegreesPerKm converts a physical distance to an angular one. It is a
// flat-Earth approximation (1 degree ~ 111 km) that holds at the scale of a
// single cluster, from sub-kilometer up to a few kilometers. Do not use it
// for regional or continental distances.
const DegreesPerKm = 1.0 / 111.0

// ErrInvalidRadius is returned when a radius is zero, negative, or not finite.
var ErrInvalidRadius = errors.New("radius must be a positive finite number")

// DistanceKm returns the great-circle (haversine) distance between two
// latitude/longitude pairs given in decimal degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push a marginally past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// PointDistanceKm is DistanceKm for orb points (X is longitude, Y is latitude).
func PointDistanceKm(a, b orb.Point) float64 {
	return DistanceKm(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// KmToDegrees converts a clustering radius in kilometers to degrees.
// Zero, negative and non-finite radii are rejected rather than clamped.
func KmToDegrees(radiusKm float64) (float64, error) {
	if !(radiusKm > 0) || math.IsInf(radiusKm, 0) {
		return 0, fmt.Errorf("%w: got %v km", ErrInvalidRadius, radiusKm)
	}
	return radiusKm * DegreesPerKm, nil
}
