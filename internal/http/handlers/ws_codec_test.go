package handlers

import (
	"encoding/json"
	"errors"
	"testing"

	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/fleet"
	"ridesim/internal/types"
)

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"type":"nearByCabs","lat":23.81,"lng":90.41}`))
	if err != nil {
		t.Fatalf("nearByCabs: %v", err)
	}
	if got, ok := cmd.(dispatch.NearbyCabs); !ok || got.Lat != 23.81 || got.Lng != 90.41 {
		t.Fatalf("nearByCabs = %#v", cmd)
	}

	cmd, err = decodeCommand([]byte(`{"type":"requestCab","pickUpLat":1,"pickUpLng":2,"dropLat":3,"dropLng":4}`))
	if err != nil {
		t.Fatalf("requestCab: %v", err)
	}
	want := dispatch.RequestCab{PickUpLat: 1, PickUpLng: 2, DropLat: 3, DropLng: 4}
	if cmd != want {
		t.Fatalf("requestCab = %#v", cmd)
	}

	if cmd, err := decodeCommand([]byte(`{"type":"ping"}`)); err != nil || cmd != (dispatch.Ping{}) {
		t.Fatalf("ping = %#v, %v", cmd, err)
	}
}

func TestDecodeCommand_Malformed(t *testing.T) {
	frames := []string{
		`not json`,
		`[]`,
		`{}`,
		`{"type":5}`,
		`{"type":"teleport"}`,
		`{"type":"nearByCabs","lat":23.8}`,
		`{"type":"nearByCabs","lat":"23.8","lng":90.4}`,
		`{"type":"nearByCabs","lat":null,"lng":90.4}`,
		`{"type":"requestCab","pickUpLat":1,"pickUpLng":2,"dropLat":3}`,
		`{"type":"requestCab","pickUpLat":1,"pickUpLng":2,"dropLat":3,"dropLng":true}`,
	}
	for _, f := range frames {
		if _, err := decodeCommand([]byte(f)); !errors.Is(err, errMalformedFrame) {
			t.Errorf("%s: err = %v, want malformed", f, err)
		}
	}
}

func TestEncodeEvent(t *testing.T) {
	cases := []struct {
		ev   dispatch.Event
		want map[string]any
	}{
		{dispatch.CabArrived{}, map[string]any{"type": "cabArrived"}},
		{dispatch.CabBooked{TripID: "trip_1_s"}, map[string]any{"type": "cabBooked", "tripId": "trip_1_s"}},
		{dispatch.Location{Lat: 1.5, Lng: 2.5}, map[string]any{"type": "location", "lat": 1.5, "lng": 2.5}},
	}
	for _, tc := range cases {
		data, err := encodeEvent(tc.ev)
		if err != nil {
			t.Fatalf("%s: %v", tc.ev.Type(), err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("%s: %v", tc.ev.Type(), err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s = %v, want %v", tc.ev.Type(), got, tc.want)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Fatalf("%s[%s] = %v, want %v", tc.ev.Type(), k, got[k], v)
			}
		}
	}

	data, _ := encodeEvent(dispatch.NearbyCabsResult{Locations: []fleet.Nearby{{ID: "cab_1", Lat: 1, Lng: 2, Heading: 90}}})
	var got struct {
		Type      string         `json:"type"`
		Locations []fleet.Nearby `json:"locations"`
	}
	_ = json.Unmarshal(data, &got)
	if got.Type != "nearByCabs" || len(got.Locations) != 1 || got.Locations[0].ID != "cab_1" {
		t.Fatalf("nearByCabs = %s", data)
	}

	data, _ = encodeEvent(dispatch.PickupPath{Path: []types.Point{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}})
	var path struct {
		Path []types.Point `json:"path"`
	}
	_ = json.Unmarshal(data, &path)
	if len(path.Path) != 2 || path.Path[1].Lng != 4 {
		t.Fatalf("pickUpPath = %s", data)
	}
}
