package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ridesim/internal/config"
	"ridesim/internal/modules/fleet"
	"ridesim/internal/modules/route"
	"ridesim/internal/modules/trip"
	"ridesim/internal/types"
)

var (
	testPickup = types.Point{Lat: 23.8103, Lng: 90.4125}
	testDrop   = types.Point{Lat: 23.7909, Lng: 90.4043}
)

func testConfig() config.DispatchConfig {
	return config.DispatchConfig{
		LocationInterval: time.Millisecond,
		ArrivingDwell:    2 * time.Millisecond,
		BoardingDwell:    2 * time.Millisecond,
		RouteTimeout:     time.Second,
		IdleTimeout:      time.Minute,
		SweepInterval:    time.Minute,
		HistorySize:      10,
	}
}

func cab(id string, lat, lng float64) fleet.Vehicle {
	return fleet.Vehicle{
		ID:        types.ID(id),
		Position:  types.Point{Lat: lat, Lng: lng},
		Available: true,
		Pattern:   fleet.PatternStationary,
	}
}

func newFleet(vehicles ...fleet.Vehicle) *fleet.Registry {
	return fleet.NewRegistry(vehicles, fleet.WithRand(rand.New(rand.NewSource(1))))
}

func newRoutes() *route.Generator {
	return route.NewGenerator(config.RouteConfig{CacheSize: 10, CacheTTL: time.Minute},
		route.WithRand(rand.New(rand.NewSource(1))))
}

type routeFunc func(ctx context.Context, from, to types.Point) ([]types.Point, error)

func (f routeFunc) Route(ctx context.Context, from, to types.Point) ([]types.Point, error) {
	return f(ctx, from, to)
}

type memJournal struct {
	mu     sync.Mutex
	events []trip.Event
}

func (j *memJournal) AppendEvent(_ context.Context, e *trip.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, *e)
	return nil
}

func (j *memJournal) transitions() [][2]trip.Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([][2]trip.Status, len(j.events))
	for i, e := range j.events {
		out[i] = [2]trip.Status{e.FromStatus, e.ToStatus}
	}
	return out
}

func request() RequestCab {
	return RequestCab{PickUpLat: testPickup.Lat, PickUpLng: testPickup.Lng, DropLat: testDrop.Lat, DropLng: testDrop.Lng}
}

// collectUntil reads events until one with the given type arrives.
func collectUntil(t *testing.T, sess *Session, typ string) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sess.Events():
			out = append(out, ev)
			if ev.Type() == typ {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s; got %v", typ, eventTypes(out))
		}
	}
}

func eventTypes(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type()
	}
	return out
}

func drain(sess *Session) []Event {
	var out []Event
	for {
		select {
		case ev := <-sess.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRequestCab_EmitsPhasesInOrder(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	journal := &memJournal{}
	svc := NewService(reg, newRoutes(), journal, testConfig(), 2000)
	sess := svc.Open(context.Background(), "s1")
	t.Cleanup(svc.Shutdown)

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := collectUntil(t, sess, TypeTripEnd)

	var want []string
	want = append(want, TypeConnected, TypeCabBooked, TypePickupPath)
	var pickupPath, tripPath []types.Point
	for _, ev := range events {
		switch e := ev.(type) {
		case PickupPath:
			pickupPath = e.Path
		case TripPath:
			tripPath = e.Path
		}
	}
	if len(pickupPath) == 0 || len(tripPath) == 0 {
		t.Fatalf("missing paths in %v", eventTypes(events))
	}
	for range pickupPath {
		want = append(want, TypeLocation)
	}
	want = append(want, TypeCabIsArriving, TypeCabArrived, TypeTripStart, TypeTripPath)
	for range tripPath {
		want = append(want, TypeLocation)
	}
	want = append(want, TypeTripEnd)

	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event count = %d, want %d\n got: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s\n got: %v", i, got[i], want[i], got)
		}
	}

	booked := events[1].(CabBooked)
	if booked.TripID == "" {
		t.Fatalf("cabBooked without trip id")
	}
	if p := pickupPath[0]; p != (types.Point{Lat: 23.8100, Lng: 90.4120}) {
		t.Fatalf("pickup path starts at %+v, want vehicle position", p)
	}
	if last := tripPath[len(tripPath)-1]; last != testDrop {
		t.Fatalf("trip path ends at %+v, want drop", last)
	}
	if loc := events[len(events)-2].(Location); loc.Lat != testDrop.Lat || loc.Lng != testDrop.Lng {
		t.Fatalf("last location = %+v, want drop", loc)
	}

	if active := svc.ActiveTrips(); len(active) != 0 {
		t.Fatalf("trip still active after tripEnd: %+v", active)
	}
	v, err := reg.Get("cab_1")
	if err != nil {
		t.Fatalf("get cab: %v", err)
	}
	if !v.Available || v.TripID != "" || v.Position != testDrop {
		t.Fatalf("vehicle not released at drop point: %+v", v)
	}

	history := svc.History(0)
	if len(history) != 1 {
		t.Fatalf("history = %d entries, want 1", len(history))
	}
	h := history[0]
	if h.ID != booked.TripID || h.Status != trip.StatusIdle || h.Pickup == nil || h.VehicleID != "cab_1" || h.EndedAt == nil {
		t.Fatalf("history entry = %+v", h)
	}

	svc.Wait()
	wantJournal := [][2]trip.Status{
		{trip.StatusIdle, trip.StatusBooking},
		{trip.StatusBooking, trip.StatusPickup},
		{trip.StatusPickup, trip.StatusInProgress},
		{trip.StatusInProgress, trip.StatusCompleted},
		{trip.StatusCompleted, trip.StatusIdle},
	}
	gotJournal := journal.transitions()
	if len(gotJournal) != len(wantJournal) {
		t.Fatalf("journal = %v, want %v", gotJournal, wantJournal)
	}
	for i := range wantJournal {
		if gotJournal[i] != wantJournal[i] {
			t.Fatalf("journal = %v, want %v", gotJournal, wantJournal)
		}
	}
}

func TestRequestCab_NoCapacity(t *testing.T) {
	svc := NewService(newFleet(), newRoutes(), nil, testConfig(), 2000)
	sess := svc.Open(context.Background(), "s1")
	t.Cleanup(svc.Shutdown)

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := collectUntil(t, sess, TypeRoutesNotAvailable)
	if got := eventTypes(events); len(got) != 2 || got[0] != TypeConnected {
		t.Fatalf("events = %v", got)
	}
	if len(svc.ActiveTrips()) != 0 {
		t.Fatalf("no trip should be created without a vehicle")
	}
}

func TestRequestCab_PickupRouteFailure(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	failing := routeFunc(func(context.Context, types.Point, types.Point) ([]types.Point, error) {
		return nil, errors.New("provider down")
	})
	svc := NewService(reg, failing, nil, testConfig(), 2000)
	sess := svc.Open(context.Background(), "s1")
	t.Cleanup(svc.Shutdown)

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := collectUntil(t, sess, TypeDirectionAPIFailed)
	got := eventTypes(events)
	want := []string{TypeConnected, TypeCabBooked, TypeDirectionAPIFailed}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	svc.Wait()
	if len(svc.ActiveTrips()) != 0 {
		t.Fatalf("failed trip still active")
	}
	if v, _ := reg.Get("cab_1"); !v.Available {
		t.Fatalf("vehicle not released after failure: %+v", v)
	}
	if extra := drain(sess); len(extra) != 0 {
		t.Fatalf("events after failure: %v", eventTypes(extra))
	}
}

func TestRequestCab_TripRouteFailureDuringRide(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	var calls atomic.Int32
	gen := newRoutes()
	flaky := routeFunc(func(ctx context.Context, from, to types.Point) ([]types.Point, error) {
		if calls.Add(1) > 1 {
			return nil, errors.New("provider down")
		}
		return gen.Route(ctx, from, to)
	})
	journal := &memJournal{}
	svc := NewService(reg, flaky, journal, testConfig(), 2000)
	sess := svc.Open(context.Background(), "s1")
	t.Cleanup(svc.Shutdown)

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := collectUntil(t, sess, TypeDirectionAPIFailed)
	if prev := events[len(events)-2].Type(); prev != TypeTripStart {
		t.Fatalf("failure followed %s, want %s", prev, TypeTripStart)
	}

	svc.Wait()
	if len(svc.ActiveTrips()) != 0 {
		t.Fatalf("failed trip still active")
	}
	if v, _ := reg.Get("cab_1"); !v.Available {
		t.Fatalf("vehicle not released: %+v", v)
	}
	for _, tr := range journal.transitions() {
		if tr[0] == trip.StatusInProgress && tr[1] == trip.StatusIdle {
			t.Fatalf("in_progress -> idle must never be journaled")
		}
	}
}

func TestClose_StopsTripMidRoute(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	cfg := testConfig()
	cfg.LocationInterval = 20 * time.Millisecond
	svc := NewService(reg, newRoutes(), nil, cfg, 2000)
	sess := svc.Open(context.Background(), "s1")

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	collectUntil(t, sess, TypeLocation)
	collectUntil(t, sess, TypeLocation)

	sess.Close()
	drain(sess)
	svc.Wait()

	if extra := drain(sess); len(extra) != 0 {
		t.Fatalf("events after disconnect: %v", eventTypes(extra))
	}
	if len(svc.ActiveTrips()) != 0 {
		t.Fatalf("trip still active after disconnect")
	}
	if svc.ConnectedSessions() != 0 {
		t.Fatalf("session still registered")
	}
	v, _ := reg.Get("cab_1")
	if !v.Available || v.TripID != "" {
		t.Fatalf("vehicle not released after disconnect: %+v", v)
	}
	if len(svc.History(0)) != 0 {
		t.Fatalf("cancelled trip must not enter history")
	}
}

func TestRequestCab_AfterCloseReservesNothing(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	svc := NewService(reg, newRoutes(), nil, testConfig(), 2000)
	sess := svc.Open(context.Background(), "s1")

	sess.Close()
	if err := svc.requestCab(sess, request()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("requestCab after close err = %v, want ErrSessionClosed", err)
	}
	svc.Wait()

	if n := len(svc.ActiveTrips()); n != 0 {
		t.Fatalf("active trips after close = %d, want 0", n)
	}
	v, _ := reg.Get("cab_1")
	if !v.Available || v.TripID != "" {
		t.Fatalf("vehicle reserved for a closed session: %+v", v)
	}
}

func TestRequestCab_ParentContextCancelledRemovesTrip(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	cfg := testConfig()
	cfg.LocationInterval = time.Second
	svc := NewService(reg, newRoutes(), nil, cfg, 2000)
	ctx, cancel := context.WithCancel(context.Background())
	sess := svc.Open(ctx, "s1")

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	collectUntil(t, sess, TypeLocation)

	cancel()
	svc.Wait()

	if n := len(svc.ActiveTrips()); n != 0 {
		t.Fatalf("active trips after cancel = %d, want 0", n)
	}
	v, _ := reg.Get("cab_1")
	if !v.Available || v.TripID != "" {
		t.Fatalf("vehicle not released after cancel: %+v", v)
	}
}

func TestReplay_NoWaitAfterLastPoint(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	cfg := testConfig()
	cfg.LocationInterval = 300 * time.Millisecond
	routes := routeFunc(func(_ context.Context, from, to types.Point) ([]types.Point, error) {
		return []types.Point{from, to}, nil
	})
	svc := NewService(reg, routes, nil, cfg, 2000)
	sess := svc.Open(context.Background(), "s1")
	t.Cleanup(svc.Shutdown)

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	collectUntil(t, sess, TypeLocation)
	collectUntil(t, sess, TypeLocation)
	last := time.Now()
	collectUntil(t, sess, TypeCabIsArriving)

	if gap := time.Since(last); gap >= cfg.LocationInterval {
		t.Fatalf("cabIsArriving came %v after the final location, want under %v", gap, cfg.LocationInterval)
	}
}

func TestRequestCab_SecondRequestRejected(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120), cab("cab_2", 23.8110, 90.4130))
	cfg := testConfig()
	cfg.LocationInterval = time.Second
	svc := NewService(reg, newRoutes(), nil, cfg, 2000)
	sess := svc.Open(context.Background(), "s1")
	t.Cleanup(svc.Shutdown)

	if err := sess.Handle(request()); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := sess.Handle(request()); !errors.Is(err, ErrActiveTrip) {
		t.Fatalf("second request err = %v, want ErrActiveTrip", err)
	}
	if n := len(svc.ActiveTrips()); n != 1 {
		t.Fatalf("active trips = %d, want 1", n)
	}
	if st := reg.Status(); st.Reserved != 1 {
		t.Fatalf("reserved vehicles = %d, want 1", st.Reserved)
	}
}

func TestRequestCab_SessionsRunConcurrently(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120), cab("cab_2", 23.8000, 90.4000))
	svc := NewService(reg, newRoutes(), nil, testConfig(), 2000)
	t.Cleanup(svc.Shutdown)

	a := svc.Open(context.Background(), "a")
	b := svc.Open(context.Background(), "b")
	if err := a.Handle(request()); err != nil {
		t.Fatalf("a: %v", err)
	}
	if err := b.Handle(request()); err != nil {
		t.Fatalf("b: %v", err)
	}
	collectUntil(t, a, TypeTripEnd)
	collectUntil(t, b, TypeTripEnd)

	if n := len(svc.History(0)); n != 2 {
		t.Fatalf("history = %d, want 2", n)
	}
	if st := reg.Status(); st.Available != 2 {
		t.Fatalf("available = %d, want 2", st.Available)
	}
}

func TestHandle_NearbyPingAndInvalid(t *testing.T) {
	reg := newFleet(cab("cab_1", 23.8100, 90.4120))
	svc := NewService(reg, newRoutes(), nil, testConfig(), 2000)
	sess := svc.Open(context.Background(), "s1")
	t.Cleanup(svc.Shutdown)
	collectUntil(t, sess, TypeConnected)

	if err := sess.Handle(NearbyCabs{Lat: 23.8103, Lng: 90.4125}); err != nil {
		t.Fatalf("nearby: %v", err)
	}
	ev := collectUntil(t, sess, TypeNearbyCabs)
	res := ev[0].(NearbyCabsResult)
	if len(res.Locations) != 1 || res.Locations[0].ID != "cab_1" {
		t.Fatalf("nearby = %+v", res.Locations)
	}

	if err := sess.Handle(Ping{}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	collectUntil(t, sess, TypePong)

	invalid := []Command{
		NearbyCabs{Lat: 91, Lng: 90},
		RequestCab{PickUpLat: 23.8, PickUpLng: 200, DropLat: 23.7, DropLng: 90.4},
	}
	for _, cmd := range invalid {
		if err := sess.Handle(cmd); !errors.Is(err, ErrInvalidCommand) {
			t.Fatalf("%T err = %v, want ErrInvalidCommand", cmd, err)
		}
	}
	if extra := drain(sess); len(extra) != 0 {
		t.Fatalf("invalid commands produced events: %v", eventTypes(extra))
	}

	sess.Close()
	if err := sess.Handle(Ping{}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("handle after close err = %v", err)
	}
}

func TestSweepIdle_ClosesSilentSessions(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 10 * time.Millisecond
	svc := NewService(newFleet(), newRoutes(), nil, cfg, 2000)
	quiet := svc.Open(context.Background(), "quiet")
	busy := svc.Open(context.Background(), "busy")
	t.Cleanup(svc.Shutdown)

	time.Sleep(30 * time.Millisecond)
	busy.Touch()
	svc.sweepIdle()

	select {
	case <-quiet.Done():
	default:
		t.Fatalf("idle session not closed")
	}
	select {
	case <-busy.Done():
		t.Fatalf("active session closed")
	default:
	}
	if n := svc.ConnectedSessions(); n != 1 {
		t.Fatalf("connected = %d, want 1", n)
	}
}
