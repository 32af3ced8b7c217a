// README: Trip aggregate and lifecycle state machine.
package trip

import (
	"fmt"
	"time"

	"ridesim/internal/types"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusBooking    Status = "booking"
	StatusPickup     Status = "pickup"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// AllowedTransitions represents the trip state flow as code. The only
// backward edges are the cancellation escapes to idle and the completed reset.
var AllowedTransitions = map[Status][]Status{
	StatusIdle:       {StatusBooking},
	StatusBooking:    {StatusPickup, StatusIdle},
	StatusPickup:     {StatusInProgress, StatusIdle},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {StatusIdle},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

type Trip struct {
	ID              types.ID     `json:"tripId"`
	SessionID       types.ID     `json:"sessionId"`
	Status          Status       `json:"status"`
	Pickup          *types.Point `json:"pickup,omitempty"`
	Drop            *types.Point `json:"drop,omitempty"`
	VehicleID       types.ID     `json:"cabId,omitempty"`
	VehiclePosition *types.Point `json:"cabLocation,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	StartedAt       *time.Time   `json:"startTime,omitempty"`
	EndedAt         *time.Time   `json:"endTime,omitempty"`
}

// New returns an idle trip for the session holding the requested endpoints.
func New(sessionID types.ID, pickup, drop types.Point, now time.Time) *Trip {
	return &Trip{
		SessionID: sessionID,
		Status:    StatusIdle,
		Pickup:    &pickup,
		Drop:      &drop,
		CreatedAt: now,
	}
}

// Transition moves the trip to the requested status. A rejected transition
// leaves the trip untouched and returns false; callers log it.
func (t *Trip) Transition(to Status, now time.Time) bool {
	if !CanTransition(t.Status, to) {
		return false
	}
	from := t.Status
	t.Status = to

	switch to {
	case StatusBooking:
		started := now
		t.StartedAt = &started
		t.EndedAt = nil
		t.ID = types.ID(fmt.Sprintf("trip_%d_%s", now.UnixMilli(), t.SessionID))
	case StatusCompleted:
		ended := now
		t.EndedAt = &ended
	case StatusIdle:
		// Completed trips keep their data for history.
		if from != StatusCompleted {
			t.Pickup = nil
			t.Drop = nil
			t.VehicleID = ""
			t.VehiclePosition = nil
		}
	}
	return true
}

// AssignVehicle records the reserved vehicle and its starting position.
func (t *Trip) AssignVehicle(id types.ID, at types.Point) {
	t.VehicleID = id
	t.VehiclePosition = &at
}

func (t *Trip) MoveVehicle(at types.Point) {
	t.VehiclePosition = &at
}

// Snapshot returns a deep copy safe to hand out of the owning goroutine.
func (t *Trip) Snapshot() Trip {
	out := *t
	out.Pickup = copyPoint(t.Pickup)
	out.Drop = copyPoint(t.Drop)
	out.VehiclePosition = copyPoint(t.VehiclePosition)
	if t.StartedAt != nil {
		v := *t.StartedAt
		out.StartedAt = &v
	}
	if t.EndedAt != nil {
		v := *t.EndedAt
		out.EndedAt = &v
	}
	return out
}

func copyPoint(p *types.Point) *types.Point {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Event is one journaled state change.
type Event struct {
	ID         int64
	TripID     types.ID
	SessionID  types.ID
	VehicleID  *types.ID
	FromStatus Status
	ToStatus   Status
	CreatedAt  time.Time
}
