// Package geo contains pure geographic computation helpers shared by the
// fleet registry and the route generator.
package geo

import (
	"math"
	"sort"

	"ridesim/internal/types"
)

const (
	// EarthRadiusMeters is the mean Earth radius used for Haversine distances.
	EarthRadiusMeters = 6371000.0
	// MetersPerDegree approximates the length of one degree of latitude.
	MetersPerDegree = 111320.0
)

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b types.Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	rLat1 := toRadians(a.Lat)
	rLat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// BearingDegrees returns the initial bearing from a to b, clockwise from
// north, normalised to [0, 360).
func BearingDegrees(a, b types.Point) float64 {
	dLng := toRadians(b.Lng - a.Lng)
	rLat1 := toRadians(a.Lat)
	rLat2 := toRadians(b.Lat)

	y := math.Sin(dLng) * math.Cos(rLat2)
	x := math.Cos(rLat1)*math.Sin(rLat2) - math.Sin(rLat1)*math.Cos(rLat2)*math.Cos(dLng)

	return NormalizeHeading(toDegrees(math.Atan2(y, x)))
}

// Offset moves p by meters along heading using the flat degree
// approximation the simulator works with.
func Offset(p types.Point, headingDeg, meters float64) types.Point {
	step := meters / MetersPerDegree
	rad := toRadians(headingDeg)
	return types.Point{
		Lat: p.Lat + math.Cos(rad)*step,
		Lng: p.Lng + math.Sin(rad)*step,
	}
}

// NormalizeHeading wraps any angle into [0, 360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ValidPoint reports whether p is a finite coordinate inside the WGS84 range.
func ValidPoint(p types.Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// SortByDistance sorts items ascending by the accessor, keeping equal
// distances in their original order.
func SortByDistance[T any](items []T, dist func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return dist(items[i]) < dist(items[j])
	})
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func toDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
