// README: JSON wire codec between WebSocket frames and dispatch commands/events.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"ridesim/internal/modules/dispatch"
)

var errMalformedFrame = errors.New("malformed frame")

// decodeCommand parses a flat frame such as {"type":"nearByCabs","lat":..,"lng":..}.
func decodeCommand(data []byte) (dispatch.Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil || typ == "" {
		return nil, fmt.Errorf("%w: missing type", errMalformedFrame)
	}

	switch typ {
	case dispatch.TypeNearbyCabs:
		var cmd dispatch.NearbyCabs
		if err := numbers(fields, map[string]*float64{"lat": &cmd.Lat, "lng": &cmd.Lng}); err != nil {
			return nil, err
		}
		return cmd, nil
	case dispatch.TypeRequestCab:
		var cmd dispatch.RequestCab
		err := numbers(fields, map[string]*float64{
			"pickUpLat": &cmd.PickUpLat,
			"pickUpLng": &cmd.PickUpLng,
			"dropLat":   &cmd.DropLat,
			"dropLng":   &cmd.DropLng,
		})
		if err != nil {
			return nil, err
		}
		return cmd, nil
	case dispatch.TypePing:
		return dispatch.Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errMalformedFrame, typ)
	}
}

func numbers(fields map[string]json.RawMessage, dst map[string]*float64) error {
	for key, ptr := range dst {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return fmt.Errorf("%w: missing %s", errMalformedFrame, key)
		}
		if err := json.Unmarshal(raw, ptr); err != nil {
			return fmt.Errorf("%w: %s is not a number", errMalformedFrame, key)
		}
	}
	return nil
}

// encodeEvent flattens the event payload next to its type tag.
func encodeEvent(ev dispatch.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(ev.Type())
	fields["type"] = typ
	return json.Marshal(fields)
}
