// README: Outbound events delivered to a session, tagged with their wire names.
package dispatch

import (
	"ridesim/internal/modules/fleet"
	"ridesim/internal/types"
)

const (
	TypeConnected          = "connected"
	TypeNearbyCabs         = "nearByCabs"
	TypeCabBooked          = "cabBooked"
	TypePickupPath         = "pickUpPath"
	TypeTripPath           = "tripPath"
	TypeLocation           = "location"
	TypeCabIsArriving      = "cabIsArriving"
	TypeCabArrived         = "cabArrived"
	TypeTripStart          = "tripStart"
	TypeTripEnd            = "tripEnd"
	TypeDirectionAPIFailed = "directionApiFailed"
	TypeRoutesNotAvailable = "routesNotAvailable"
	TypePong               = "pong"
)

// Event is a message for the client. Its exported fields form the payload.
type Event interface {
	Type() string
}

type Connected struct {
	Message   string   `json:"message"`
	SessionID types.ID `json:"sessionId"`
	Timestamp string   `json:"timestamp"`
}

type NearbyCabsResult struct {
	Locations []fleet.Nearby `json:"locations"`
}

type CabBooked struct {
	TripID types.ID `json:"tripId"`
}

type PickupPath struct {
	Path []types.Point `json:"path"`
}

type TripPath struct {
	Path []types.Point `json:"path"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type CabIsArriving struct{}
type CabArrived struct{}
type TripStart struct{}
type TripEnd struct{}
type DirectionAPIFailed struct{}
type RoutesNotAvailable struct{}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (Connected) Type() string          { return TypeConnected }
func (NearbyCabsResult) Type() string   { return TypeNearbyCabs }
func (CabBooked) Type() string          { return TypeCabBooked }
func (PickupPath) Type() string         { return TypePickupPath }
func (TripPath) Type() string           { return TypeTripPath }
func (Location) Type() string           { return TypeLocation }
func (CabIsArriving) Type() string      { return TypeCabIsArriving }
func (CabArrived) Type() string         { return TypeCabArrived }
func (TripStart) Type() string          { return TypeTripStart }
func (TripEnd) Type() string            { return TypeTripEnd }
func (DirectionAPIFailed) Type() string { return TypeDirectionAPIFailed }
func (RoutesNotAvailable) Type() string { return TypeRoutesNotAvailable }
func (Pong) Type() string               { return TypePong }
