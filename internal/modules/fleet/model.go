// README: Vehicle aggregate, movement patterns and query result types.
package fleet

import (
	"time"

	"ridesim/internal/types"
)

type Pattern string

const (
	PatternStationary Pattern = "stationary"
	PatternCircular   Pattern = "circular"
	PatternLinear     Pattern = "linear"
	PatternRandom     Pattern = "random"
)

var patterns = []Pattern{PatternStationary, PatternCircular, PatternLinear, PatternRandom}

func (p Pattern) Valid() bool {
	for _, known := range patterns {
		if p == known {
			return true
		}
	}
	return false
}

type Vehicle struct {
	ID         types.ID
	Position   types.Point
	Heading    float64 // degrees clockwise from north
	Speed      float64 // metres per second
	Available  bool
	Pattern    Pattern
	Area       string
	LastUpdate time.Time
	// TripID is set while the vehicle is reserved by an active trip.
	TripID types.ID
}

// Nearby is the public projection of a vehicle returned by spatial queries.
type Nearby struct {
	ID      types.ID `json:"id"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Heading float64  `json:"heading"`
}

type Status struct {
	Total       int       `json:"total"`
	Available   int       `json:"available"`
	Unavailable int       `json:"unavailable"`
	Reserved    int       `json:"reserved"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

type AddOptions struct {
	Heading   *float64
	Speed     *float64
	Available *bool
	Pattern   Pattern
}

// Bounds is the service area vehicles are clamped to.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b Bounds) Clamp(p types.Point) types.Point {
	return types.Point{
		Lat: clamp(p.Lat, b.MinLat, b.MaxLat),
		Lng: clamp(p.Lng, b.MinLng, b.MaxLng),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const (
	// nearbyFanOut caps the number of vehicles returned by NearbyVehicles.
	nearbyFanOut = 8
	// recoveryProbability is the per-tick chance an idle unavailable vehicle rejoins the pool.
	recoveryProbability = 0.1
	// circularTurnDeg is the heading increment per tick for circling vehicles.
	circularTurnDeg = 2.0
	// linearTurnProbability is the per-tick chance a linear vehicle changes course.
	linearTurnProbability = 0.05
	linearMaxTurnDeg      = 90.0
	randomMaxTurnDeg      = 30.0
	stationaryJitterDeg   = 0.0001
)
