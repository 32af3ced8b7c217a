// README: Fleet mirror backed by Redis GEO so other processes can query available vehicles.
package fleet

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridesim/internal/types"
)

const availableGeoKey = "fleet:available"

type Store struct {
	redis *redis.Client
	key   string
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis, key: availableGeoKey}
}

// Sync replaces the GEO set with the currently available vehicles.
func (s *Store) Sync(ctx context.Context, vehicles []Vehicle) error {
	locations := make([]*redis.GeoLocation, 0, len(vehicles))
	for _, v := range vehicles {
		if !v.Available {
			continue
		}
		locations = append(locations, &redis.GeoLocation{
			Name:      string(v.ID),
			Longitude: v.Position.Lng,
			Latitude:  v.Position.Lat,
		})
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(locations) > 0 {
		pipe.GeoAdd(ctx, s.key, locations...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// NearbyFromMirror answers a radius query against the mirrored fleet,
// closest first.
func (s *Store) NearbyFromMirror(ctx context.Context, p types.Point, radiusMeters float64, limit int) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, s.key, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusMeters,
		RadiusUnit: "m",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
