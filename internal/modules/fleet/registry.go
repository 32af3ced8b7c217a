// README: Fleet registry keeps simulated vehicle positions and answers spatial queries.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"ridesim/internal/geo"
	"ridesim/internal/metrics"
	"ridesim/internal/types"
)

var (
	ErrNotFound     = errors.New("vehicle not found")
	ErrInvalidPoint = errors.New("invalid coordinate")
	ErrReserved     = errors.New("vehicle reserved by an active trip")
)

// Mirror receives a copy of the fleet after every tick.
type Mirror interface {
	Sync(ctx context.Context, vehicles []Vehicle) error
}

type Registry struct {
	mu       sync.Mutex
	vehicles []*Vehicle
	rng      *rand.Rand
	bounds   Bounds
	nextID   int
	lastTick time.Time
	now      func() time.Time
	mirror   Mirror
}

type Option func(*Registry)

// WithRand injects the random source used for movement and recovery.
func WithRand(r *rand.Rand) Option {
	return func(reg *Registry) { reg.rng = r }
}

func WithBounds(b Bounds) Option {
	return func(reg *Registry) { reg.bounds = b }
}

func WithClock(now func() time.Time) Option {
	return func(reg *Registry) { reg.now = now }
}

func WithMirror(m Mirror) Option {
	return func(reg *Registry) { reg.mirror = m }
}

// NewRegistry creates a registry holding the given vehicles.
func NewRegistry(seed []Vehicle, opts ...Option) *Registry {
	r := &Registry{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		bounds: DhakaBounds,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.vehicles = make([]*Vehicle, 0, len(seed))
	for i := range seed {
		v := seed[i]
		r.vehicles = append(r.vehicles, &v)
	}
	r.nextID = len(seed) + 1
	r.lastTick = r.now()
	return r
}

// NearbyVehicles returns up to eight available vehicles within radiusMeters
// of the query point, closest first.
func (r *Registry) NearbyVehicles(lat, lng, radiusMeters float64) []Nearby {
	origin := types.Point{Lat: lat, Lng: lng}

	type candidate struct {
		v    *Vehicle
		dist float64
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []candidate
	for _, v := range r.vehicles {
		if !v.Available {
			continue
		}
		d := geo.DistanceMeters(origin, v.Position)
		if d <= radiusMeters {
			candidates = append(candidates, candidate{v: v, dist: d})
		}
	}
	geo.SortByDistance(candidates, func(c candidate) float64 { return c.dist })
	if len(candidates) > nearbyFanOut {
		candidates = candidates[:nearbyFanOut]
	}

	out := make([]Nearby, len(candidates))
	for i, c := range candidates {
		out[i] = Nearby{ID: c.v.ID, Lat: c.v.Position.Lat, Lng: c.v.Position.Lng, Heading: c.v.Heading}
	}
	return out
}

// AssignNearest reserves the closest available vehicle for tripID. The
// second return value is false when the fleet has no available vehicle.
func (r *Registry) AssignNearest(lat, lng float64, tripID types.ID) (Vehicle, bool) {
	origin := types.Point{Lat: lat, Lng: lng}

	r.mu.Lock()
	defer r.mu.Unlock()

	var nearest *Vehicle
	best := 0.0
	for _, v := range r.vehicles {
		if !v.Available {
			continue
		}
		d := geo.DistanceMeters(origin, v.Position)
		if nearest == nil || d < best {
			nearest, best = v, d
		}
	}
	if nearest == nil {
		return Vehicle{}, false
	}

	nearest.Available = false
	nearest.TripID = tripID
	log.Printf("fleet: assigned %s at distance %.0fm", nearest.ID, best)
	return *nearest, true
}

// Release returns a reserved vehicle to the pool, optionally parking it at
// the trip's final position.
func (r *Registry) Release(id types.ID, at *types.Point) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.find(id)
	if v == nil {
		return false
	}
	if at != nil && geo.ValidPoint(*at) {
		v.Position = r.bounds.Clamp(*at)
	}
	v.Available = true
	v.TripID = ""
	v.LastUpdate = r.now()
	return true
}

// Tick advances every available vehicle by deltaSeconds according to its
// movement pattern. Unavailable vehicles stay put; those not reserved by an
// active trip may rejoin the pool.
func (r *Registry) Tick(deltaSeconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, v := range r.vehicles {
		if !v.Available {
			if v.TripID == "" && r.rng.Float64() < recoveryProbability {
				v.Available = true
			}
			continue
		}
		r.move(v, deltaSeconds)
		v.Position = r.bounds.Clamp(v.Position)
		v.LastUpdate = now
	}
	r.lastTick = now
}

func (r *Registry) move(v *Vehicle, deltaSeconds float64) {
	step := v.Speed * deltaSeconds

	switch v.Pattern {
	case PatternStationary:
		v.Position.Lat += (r.rng.Float64() - 0.5) * stationaryJitterDeg
		v.Position.Lng += (r.rng.Float64() - 0.5) * stationaryJitterDeg
	case PatternCircular:
		v.Heading = geo.NormalizeHeading(v.Heading + circularTurnDeg)
		v.Position = geo.Offset(v.Position, v.Heading, step)
	case PatternLinear:
		v.Position = geo.Offset(v.Position, v.Heading, step)
		if r.rng.Float64() < linearTurnProbability {
			v.Heading = geo.NormalizeHeading(v.Heading + (r.rng.Float64()-0.5)*linearMaxTurnDeg)
		}
	case PatternRandom:
		v.Heading = geo.NormalizeHeading(v.Heading + (r.rng.Float64()-0.5)*randomMaxTurnDeg)
		v.Position = geo.Offset(v.Position, v.Heading, step)
	}
}

// RunTicker drives Tick on a fixed interval until ctx is done.
func (r *Registry) RunTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			delta := r.now().Sub(r.lastTick).Seconds()
			r.mu.Unlock()

			r.Tick(delta)
			st := r.Status()
			metrics.FleetVehicles.WithLabelValues("available").Set(float64(st.Available))
			metrics.FleetVehicles.WithLabelValues("unavailable").Set(float64(st.Unavailable))
			if r.mirror != nil {
				if err := r.mirror.Sync(ctx, r.Vehicles()); err != nil {
					log.Printf("fleet: mirror sync: %v", err)
				}
			}
		}
	}
}

// Add places a new vehicle at p and returns its id.
func (r *Registry) Add(p types.Point, opts AddOptions) (types.ID, error) {
	if !geo.ValidPoint(p) {
		return "", ErrInvalidPoint
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v := &Vehicle{
		ID:         types.ID(fmt.Sprintf("cab_%d", r.nextID)),
		Position:   p,
		Heading:    r.rng.Float64() * 360,
		Speed:      0.5 + r.rng.Float64()*1.5,
		Available:  true,
		Pattern:    opts.Pattern,
		LastUpdate: r.now(),
	}
	r.nextID++
	if opts.Heading != nil {
		v.Heading = geo.NormalizeHeading(*opts.Heading)
	}
	if opts.Speed != nil {
		v.Speed = *opts.Speed
	}
	if opts.Available != nil {
		v.Available = *opts.Available
	}
	if !v.Pattern.Valid() {
		v.Pattern = patterns[r.rng.Intn(len(patterns))]
	}
	r.vehicles = append(r.vehicles, v)
	log.Printf("fleet: added %s at (%f, %f)", v.ID, p.Lat, p.Lng)
	return v.ID, nil
}

// Remove deletes a vehicle. Reserved vehicles cannot be removed.
func (r *Registry) Remove(id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, v := range r.vehicles {
		if v.ID != id {
			continue
		}
		if v.TripID != "" {
			return fmt.Errorf("remove %s: %w (%s)", id, ErrReserved, v.TripID)
		}
		r.vehicles = append(r.vehicles[:i], r.vehicles[i+1:]...)
		log.Printf("fleet: removed %s", id)
		return nil
	}
	return ErrNotFound
}

// Get returns a copy of the vehicle with the given id.
func (r *Registry) Get(id types.ID) (Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.find(id)
	if v == nil {
		return Vehicle{}, ErrNotFound
	}
	return *v, nil
}

func (r *Registry) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{Total: len(r.vehicles), LastUpdate: r.lastTick}
	for _, v := range r.vehicles {
		if v.Available {
			s.Available++
		} else {
			s.Unavailable++
		}
		if v.TripID != "" {
			s.Reserved++
		}
	}
	return s
}

// ResetAvailability frees every vehicle that is not reserved by a trip.
func (r *Registry) ResetAvailability() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.vehicles {
		if v.TripID == "" {
			v.Available = true
		}
	}
	log.Printf("fleet: reset all idle vehicles to available")
}

// Vehicles returns a snapshot copy of the whole fleet.
func (r *Registry) Vehicles() []Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Vehicle, len(r.vehicles))
	for i, v := range r.vehicles {
		out[i] = *v
	}
	return out
}

func (r *Registry) find(id types.ID) *Vehicle {
	for _, v := range r.vehicles {
		if v.ID == id {
			return v
		}
	}
	return nil
}
