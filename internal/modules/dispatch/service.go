// README: Dispatch service drives trips through booking, pickup and ride phases for connected sessions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"ridesim/internal/config"
	"ridesim/internal/geo"
	"ridesim/internal/metrics"
	"ridesim/internal/modules/fleet"
	"ridesim/internal/modules/trip"
	"ridesim/internal/types"
)

var (
	ErrActiveTrip     = errors.New("session already has an active trip")
	ErrInvalidCommand = errors.New("invalid command")
	ErrSessionClosed  = errors.New("session closed")
	ErrEmptyRoute     = errors.New("empty route")
)

type Fleet interface {
	NearbyVehicles(lat, lng, radiusMeters float64) []fleet.Nearby
	AssignNearest(lat, lng float64, tripID types.ID) (fleet.Vehicle, bool)
	Release(id types.ID, at *types.Point) bool
}

type RouteSource interface {
	Route(ctx context.Context, origin, destination types.Point) ([]types.Point, error)
}

type Journal interface {
	AppendEvent(ctx context.Context, e *trip.Event) error
}

const journalTimeout = 2 * time.Second

type activeTrip struct {
	trip    *trip.Trip
	session *Session
	cancel  context.CancelFunc

	// emitMu serializes emissions with removal: once gone is set no further
	// event for this trip reaches the session.
	emitMu sync.Mutex
	gone   bool
}

type Service struct {
	fleet        Fleet
	routes       RouteSource
	journal      Journal
	cfg          config.DispatchConfig
	nearbyRadius float64
	now          func() time.Time

	mu        sync.Mutex
	sessions  map[types.ID]*Session
	active    map[types.ID]*activeTrip
	bySession map[types.ID]types.ID
	history   []trip.Trip
	wg        sync.WaitGroup
}

// NewService wires the dispatcher. journal may be nil.
func NewService(f Fleet, routes RouteSource, journal Journal, cfg config.DispatchConfig, nearbyRadius float64) *Service {
	return &Service{
		fleet:        f,
		routes:       routes,
		journal:      journal,
		cfg:          cfg,
		nearbyRadius: nearbyRadius,
		now:          time.Now,
		sessions:     make(map[types.ID]*Session),
		active:       make(map[types.ID]*activeTrip),
		bySession:    make(map[types.ID]types.ID),
	}
}

func (s *Service) requestCab(sess *Session, c RequestCab) error {
	pickup, drop := c.Pickup(), c.Drop()
	if !geo.ValidPoint(pickup) || !geo.ValidPoint(drop) {
		return fmt.Errorf("%w: requestCab coordinates out of range", ErrInvalidCommand)
	}

	s.mu.Lock()
	if s.sessions[sess.id] != sess || sess.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if id, ok := s.bySession[sess.id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrActiveTrip, id)
	}
	metrics.TripsRequested.Inc()

	now := s.now()
	t := trip.New(sess.id, pickup, drop, now)
	t.Transition(trip.StatusBooking, now)

	v, ok := s.fleet.AssignNearest(pickup.Lat, pickup.Lng, t.ID)
	if !ok {
		s.mu.Unlock()
		log.Printf("dispatch: no cab available for session %s", sess.id)
		metrics.TripOutcomes.WithLabelValues("no_capacity").Inc()
		sess.send(RoutesNotAvailable{})
		return nil
	}
	t.AssignVehicle(v.ID, v.Position)

	ctx, cancel := context.WithCancel(sess.ctx)
	at := &activeTrip{trip: t, session: sess, cancel: cancel}
	s.active[t.ID] = at
	s.bySession[sess.id] = t.ID
	metrics.ActiveTrips.Set(float64(len(s.active)))
	s.wg.Add(1)
	s.mu.Unlock()

	log.Printf("dispatch: trip %s booked with %s for session %s", t.ID, v.ID, sess.id)
	vehicleID := v.ID
	s.record(&trip.Event{
		TripID: t.ID, SessionID: sess.id, VehicleID: &vehicleID,
		FromStatus: trip.StatusIdle, ToStatus: trip.StatusBooking, CreatedAt: now,
	})

	go s.run(ctx, at)
	return nil
}

// run is the per-trip task. Every emission and every wait re-checks that the
// trip is still in the active set and stops quietly once it is not. A task
// that stops while its trip is still active removes it.
func (s *Service) run(ctx context.Context, at *activeTrip) {
	defer s.wg.Done()
	defer s.abort(at, "cancelled")

	s.mu.Lock()
	id := at.trip.ID
	start := *at.trip.VehiclePosition
	pickup := *at.trip.Pickup
	drop := *at.trip.Drop
	s.mu.Unlock()

	if !s.emit(ctx, at, CabBooked{TripID: id}) {
		return
	}

	pickupPath, ok := s.route(ctx, at, start, pickup)
	if !ok || !s.emit(ctx, at, PickupPath{Path: pickupPath}) {
		return
	}
	if !s.advance(at, trip.StatusPickup) || !s.replay(ctx, at, pickupPath) {
		return
	}

	if !s.emit(ctx, at, CabIsArriving{}) || !s.sleep(ctx, at, s.cfg.ArrivingDwell) {
		return
	}
	if !s.emit(ctx, at, CabArrived{}) || !s.sleep(ctx, at, s.cfg.BoardingDwell) {
		return
	}
	if !s.advance(at, trip.StatusInProgress) || !s.emit(ctx, at, TripStart{}) {
		return
	}

	tripPath, ok := s.route(ctx, at, pickup, drop)
	if !ok || !s.emit(ctx, at, TripPath{Path: tripPath}) {
		return
	}
	if !s.replay(ctx, at, tripPath) {
		return
	}
	s.complete(at)
}

func (s *Service) route(ctx context.Context, at *activeTrip, from, to types.Point) ([]types.Point, bool) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RouteTimeout)
	defer cancel()

	path, err := s.routes.Route(rctx, from, to)
	if err == nil && len(path) == 0 {
		err = ErrEmptyRoute
	}
	if err != nil {
		if !s.isActive(ctx, at) {
			return nil, false
		}
		log.Printf("dispatch: trip %s route failed: %v", at.trip.ID, err)
		s.fail(at)
		return nil, false
	}
	return path, true
}

func (s *Service) replay(ctx context.Context, at *activeTrip, path []types.Point) bool {
	for i, p := range path {
		if !s.emit(ctx, at, Location{Lat: p.Lat, Lng: p.Lng}) {
			return false
		}
		s.mu.Lock()
		at.trip.MoveVehicle(p)
		s.mu.Unlock()
		if i == len(path)-1 {
			break
		}
		if !s.sleep(ctx, at, s.cfg.LocationInterval) {
			return false
		}
	}
	return true
}

func (s *Service) emit(ctx context.Context, at *activeTrip, ev Event) bool {
	at.emitMu.Lock()
	defer at.emitMu.Unlock()
	if at.gone || !s.isActive(ctx, at) {
		return false
	}
	return at.session.sendCtx(ctx, ev)
}

func (s *Service) sleep(ctx context.Context, at *activeTrip, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return s.isActive(ctx, at)
	}
}

func (s *Service) isActive(ctx context.Context, at *activeTrip) bool {
	if ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[at.trip.ID] == at
}

// advance moves an active trip forward and journals the change.
func (s *Service) advance(at *activeTrip, to trip.Status) bool {
	s.mu.Lock()
	if s.active[at.trip.ID] != at {
		s.mu.Unlock()
		return false
	}
	ev := s.transitionLocked(at, to)
	s.mu.Unlock()

	s.record(ev)
	return true
}

// complete finishes a trip that reached its drop point. The trip leaves the
// active set before tripEnd is sent so the session can book again at once.
func (s *Service) complete(at *activeTrip) {
	s.mu.Lock()
	if s.active[at.trip.ID] != at {
		s.mu.Unlock()
		return
	}
	done := s.transitionLocked(at, trip.StatusCompleted)
	s.detachLocked(at)
	reset := s.transitionLocked(at, trip.StatusIdle)
	snap := at.trip.Snapshot()
	s.history = append(s.history, snap)
	if over := len(s.history) - s.cfg.HistorySize; s.cfg.HistorySize > 0 && over > 0 {
		s.history = append([]trip.Trip(nil), s.history[over:]...)
	}
	s.mu.Unlock()
	at.seal()

	s.fleet.Release(snap.VehicleID, snap.VehiclePosition)
	s.record(done)
	s.record(reset)
	at.session.send(TripEnd{})
	metrics.TripOutcomes.WithLabelValues("completed").Inc()
	log.Printf("dispatch: trip %s completed", snap.ID)
}

func (s *Service) fail(at *activeTrip) {
	if s.abort(at, "route_failed") {
		at.session.send(DirectionAPIFailed{})
	}
}

// abort removes an active trip and returns its vehicle to the pool. A trip
// already on its ride cannot return to idle; that rejection is logged and the
// trip is dropped anyway.
func (s *Service) abort(at *activeTrip, outcome string) bool {
	s.mu.Lock()
	if s.active[at.trip.ID] != at {
		s.mu.Unlock()
		return false
	}
	vehicleID := at.trip.VehicleID
	var parked *types.Point
	if at.trip.VehiclePosition != nil {
		p := *at.trip.VehiclePosition
		parked = &p
	}
	ev := s.transitionLocked(at, trip.StatusIdle)
	s.detachLocked(at)
	s.mu.Unlock()
	at.seal()

	if vehicleID != "" {
		s.fleet.Release(vehicleID, parked)
	}
	s.record(ev)
	metrics.TripOutcomes.WithLabelValues(outcome).Inc()
	log.Printf("dispatch: trip %s removed (%s)", at.trip.ID, outcome)
	return true
}

func (s *Service) transitionLocked(at *activeTrip, to trip.Status) *trip.Event {
	t := at.trip
	from := t.Status
	var vehicleID *types.ID
	if t.VehicleID != "" {
		v := t.VehicleID
		vehicleID = &v
	}
	now := s.now()
	if !t.Transition(to, now) {
		log.Printf("dispatch: trip %s rejected transition %s -> %s", t.ID, from, to)
		return nil
	}
	return &trip.Event{
		TripID: t.ID, SessionID: t.SessionID, VehicleID: vehicleID,
		FromStatus: from, ToStatus: to, CreatedAt: now,
	}
}

func (s *Service) detachLocked(at *activeTrip) {
	delete(s.active, at.trip.ID)
	if s.bySession[at.session.id] == at.trip.ID {
		delete(s.bySession, at.session.id)
	}
	at.cancel()
	metrics.ActiveTrips.Set(float64(len(s.active)))
}

func (at *activeTrip) seal() {
	at.emitMu.Lock()
	at.gone = true
	at.emitMu.Unlock()
}

func (s *Service) record(ev *trip.Event) {
	if ev == nil || s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.journal.AppendEvent(ctx, ev); err != nil {
		log.Printf("dispatch: journal %s %s->%s: %v", ev.TripID, ev.FromStatus, ev.ToStatus, err)
	}
}

// ActiveTrips returns snapshots of the trips in flight ordered by id.
func (s *Service) ActiveTrips() []trip.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]trip.Trip, 0, len(s.active))
	for _, at := range s.active {
		out = append(out, at.trip.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// History returns up to limit completed trips, newest first.
func (s *Service) History(limit int) []trip.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]trip.Trip, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

func (s *Service) ConnectedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunIdleSweeper closes sessions that have been silent longer than the
// configured idle timeout.
func (s *Service) RunIdleSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdle()
		}
	}
}

func (s *Service) sweepIdle() {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	var stale []*Session
	for _, sess := range s.sessions {
		if sess.lastSeenAt().Before(cutoff) {
			stale = append(stale, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		log.Printf("dispatch: closing idle session %s", sess.id)
		sess.Close()
	}
}

// Wait blocks until every trip task has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown closes all sessions and waits for their trips to stop.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	s.Wait()
}
