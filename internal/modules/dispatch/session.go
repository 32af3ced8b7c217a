// README: Session is one client's command/event channel pair on the dispatch service.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ridesim/internal/geo"
	"ridesim/internal/metrics"
	"ridesim/internal/types"
)

const eventBuffer = 64

type Session struct {
	id     types.ID
	svc    *Service
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	lastSeen  time.Time
	closeOnce sync.Once
}

// Open registers a session and queues its connected greeting. The session
// ends when ctx is done or Close is called.
func (s *Service) Open(ctx context.Context, id types.ID) *Session {
	sctx, cancel := context.WithCancel(ctx)
	now := s.now()
	sess := &Session{
		id:       id,
		svc:      s,
		events:   make(chan Event, eventBuffer),
		ctx:      sctx,
		cancel:   cancel,
		lastSeen: now,
	}
	sess.events <- Connected{
		Message:   "Connected to ridesharing server",
		SessionID: id,
		Timestamp: now.UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ConnectedSessions.Set(float64(n))
	log.Printf("dispatch: session %s connected (%d open)", id, n)
	return sess
}

func (sess *Session) ID() types.ID { return sess.id }

// Events delivers outbound events. The channel is never closed; watch Done.
func (sess *Session) Events() <-chan Event { return sess.events }

func (sess *Session) Done() <-chan struct{} { return sess.ctx.Done() }

// Handle applies one inbound command. Invalid commands and a second booking
// while a trip is active return an error and produce no event.
func (sess *Session) Handle(cmd Command) error {
	if sess.ctx.Err() != nil {
		return ErrSessionClosed
	}
	sess.Touch()

	switch c := cmd.(type) {
	case NearbyCabs:
		if !geo.ValidPoint(c.Point()) {
			return fmt.Errorf("%w: nearByCabs coordinates out of range", ErrInvalidCommand)
		}
		cabs := sess.svc.fleet.NearbyVehicles(c.Lat, c.Lng, sess.svc.nearbyRadius)
		sess.send(NearbyCabsResult{Locations: cabs})
	case RequestCab:
		return sess.svc.requestCab(sess, c)
	case Ping:
		sess.send(Pong{Timestamp: sess.svc.now().UnixMilli()})
	default:
		return fmt.Errorf("%w: %T", ErrInvalidCommand, cmd)
	}
	return nil
}

// Touch marks the session as active for the idle sweeper.
func (sess *Session) Touch() {
	now := sess.svc.now()
	sess.mu.Lock()
	sess.lastSeen = now
	sess.mu.Unlock()
}

func (sess *Session) lastSeenAt() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastSeen
}

// Close disconnects the session. Its active trip, if any, is cancelled and
// the reserved vehicle released.
func (sess *Session) Close() {
	sess.closeOnce.Do(func() {
		s := sess.svc

		s.mu.Lock()
		if s.sessions[sess.id] == sess {
			delete(s.sessions, sess.id)
		}
		at := s.active[s.bySession[sess.id]]
		n := len(s.sessions)
		s.mu.Unlock()

		if at != nil && at.session == sess {
			s.abort(at, "cancelled")
		}
		sess.cancel()
		metrics.ConnectedSessions.Set(float64(n))
		log.Printf("dispatch: session %s disconnected (%d open)", sess.id, n)
	})
}

func (sess *Session) send(ev Event) bool {
	return sess.sendCtx(sess.ctx, ev)
}

func (sess *Session) sendCtx(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case sess.events <- ev:
		metrics.EventsSent.WithLabelValues(ev.Type()).Inc()
		return true
	case <-ctx.Done():
		return false
	}
}
