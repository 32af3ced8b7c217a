// README: Trip event journal backed by PostgreSQL.
package trip

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridesim/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_state_events (
			trip_id, session_id, vehicle_id, from_status, to_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.TripID),
		string(e.SessionID),
		toStringPtr(e.VehicleID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.CreatedAt,
	)
	return err
}

// RecentEvents returns the journal of a trip, oldest first.
func (s *Store) RecentEvents(ctx context.Context, tripID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, session_id, vehicle_id, from_status, to_status, created_at
		FROM trip_state_events
		WHERE trip_id = $1
		ORDER BY id ASC`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var vehicleID *string
		if err := rows.Scan(&e.ID, &e.TripID, &e.SessionID, &vehicleID, &e.FromStatus, &e.ToStatus, &e.CreatedAt); err != nil {
			return nil, err
		}
		if vehicleID != nil {
			v := types.ID(*vehicleID)
			e.VehicleID = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
