// README: Trip phases checked in order over one WebSocket connection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ridesim/internal/infra"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	conn  *websocket.Conn
	// tripID is filled by the booking phase.
	tripID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type frame map[string]any

func (f frame) typ() string {
	s, _ := f["type"].(string)
	return s
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

// RunAll executes every case in order. Once a case fails the remaining
// phases cannot be observed and are skipped.
func (r *Runner) RunAll(ctx context.Context) []Result {
	tests := r.cases()
	results := make([]Result, 0, len(tests))

	failed := false
	for _, tc := range tests {
		var res Result
		if failed {
			res = Result{Status: statusSkip}
		} else {
			start := time.Now()
			res = tc.Run(ctx, r)
			res.Latency = time.Since(start).Round(time.Millisecond)
		}
		res.Name = tc.Name
		failed = failed || res.Status == statusFail
		results = append(results, res)

		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.conn != nil {
		_ = r.conn.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "HTTP: health",
			Run: func(ctx context.Context, r *Runner) Result {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/health", nil)
				resp, err := r.httpc.Do(req)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				if resp.StatusCode != http.StatusOK {
					return Result{Status: statusFail, Note: fmt.Sprintf("status %d", resp.StatusCode)}
				}
				return Result{Status: statusPass, Note: strings.TrimSpace(string(body))}
			},
		},
		{
			Name: "WS: connect",
			Run: func(ctx context.Context, r *Runner) Result {
				target, err := r.socketURL()
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				r.conn = conn
				f, err := r.await(ctx, "connected")
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass, Note: fmt.Sprintf("session %v", f["sessionId"])}
			},
		},
		{
			Name: "WS: nearByCabs",
			Run: func(ctx context.Context, r *Runner) Result {
				if err := r.send(frame{"type": "nearByCabs", "lat": r.cfg.PickupLat, "lng": r.cfg.PickupLng}); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				f, err := r.await(ctx, "nearByCabs")
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				locs, _ := f["locations"].([]any)
				return Result{Status: statusPass, Note: fmt.Sprintf("%d cabs", len(locs))}
			},
		},
		{
			Name: "WS: requestCab -> cabBooked",
			Run: func(ctx context.Context, r *Runner) Result {
				err := r.send(frame{
					"type":      "requestCab",
					"pickUpLat": r.cfg.PickupLat,
					"pickUpLng": r.cfg.PickupLng,
					"dropLat":   r.cfg.DropLat,
					"dropLng":   r.cfg.DropLng,
				})
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				f, err := r.await(ctx, "cabBooked")
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				r.tripID, _ = f["tripId"].(string)
				return Result{Status: statusPass, Note: r.tripID}
			},
		},
		phase("WS: pickUpPath", "pickUpPath"),
		phase("WS: cabIsArriving", "cabIsArriving"),
		phase("WS: cabArrived", "cabArrived"),
		phase("WS: tripStart", "tripStart"),
		phase("WS: tripPath", "tripPath"),
		phase("WS: tripEnd", "tripEnd"),
	}
}

// phase waits for the next event of the given type, counting location
// updates on the way.
func phase(name, typ string) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			f, err := r.await(ctx, typ)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			if path, ok := f["path"].([]any); ok {
				return Result{Status: statusPass, Note: fmt.Sprintf("%d points", len(path))}
			}
			return Result{Status: statusPass}
		},
	}
}

func (r *Runner) socketURL() (string, error) {
	u, err := url.Parse(r.cfg.BaseURL + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if r.cfg.JWTSecret != "" {
		token, err := infra.SignToken(r.cfg.JWTSecret, "tripcheck", "tripcheck@localhost", time.Hour)
		if err != nil {
			return "", err
		}
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String(), nil
}

func (r *Runner) send(f frame) error {
	return r.conn.WriteJSON(f)
}

// await reads frames until one of type typ arrives. Failure events end the
// wait early.
func (r *Runner) await(ctx context.Context, typ string) (frame, error) {
	locations := 0
	for {
		deadline := time.Now().Add(time.Minute)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = r.conn.SetReadDeadline(deadline)

		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", typ, err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("bad frame %q: %w", data, err)
		}
		switch f.typ() {
		case typ:
			if locations > 0 {
				fmt.Printf("      %d location updates before %s\n", locations, typ)
			}
			return f, nil
		case "location":
			locations++
		case "routesNotAvailable", "directionApiFailed":
			return nil, fmt.Errorf("server sent %s while waiting for %s", f.typ(), typ)
		}
	}
}
