// README: Inbound client commands accepted by a dispatch session.
package dispatch

import "ridesim/internal/types"

// Inbound wire tags. nearByCabs shares TypeNearbyCabs with its reply.
const (
	TypeRequestCab = "requestCab"
	TypePing       = "ping"
)

// Command is one of NearbyCabs, RequestCab or Ping.
type Command interface {
	isCommand()
}

type NearbyCabs struct {
	Lat float64
	Lng float64
}

type RequestCab struct {
	PickUpLat float64
	PickUpLng float64
	DropLat   float64
	DropLng   float64
}

type Ping struct{}

func (NearbyCabs) isCommand() {}
func (RequestCab) isCommand() {}
func (Ping) isCommand()       {}

func (c NearbyCabs) Point() types.Point {
	return types.Point{Lat: c.Lat, Lng: c.Lng}
}

func (c RequestCab) Pickup() types.Point {
	return types.Point{Lat: c.PickUpLat, Lng: c.PickUpLng}
}

func (c RequestCab) Drop() types.Point {
	return types.Point{Lat: c.DropLat, Lng: c.DropLng}
}
