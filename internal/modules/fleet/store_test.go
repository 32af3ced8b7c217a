package fleet

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"ridesim/internal/types"
)

func TestStoreSyncAndNearby(t *testing.T) {
	redisAddr := os.Getenv("RIDESIM_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("RIDESIM_REDIS_ADDR not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	store := NewStore(rdb)
	store.key = "fleet:available:test"
	ctx := context.Background()
	defer rdb.Del(ctx, store.key)

	vehicles := []Vehicle{
		vehicleAt("near", 23.8101, 90.4121, true),
		vehicleAt("far", 23.8500, 90.4500, true),
		vehicleAt("busy", 23.8102, 90.4122, false),
	}
	if err := store.Sync(ctx, vehicles); err != nil {
		t.Fatalf("sync: %v", err)
	}

	ids, err := store.NearbyFromMirror(ctx, types.Point{Lat: 23.8103, Lng: 90.4125}, 2000, 8)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(ids) != 1 || ids[0] != "near" {
		t.Fatalf("unexpected mirror result %v", ids)
	}

	// A second sync replaces the set instead of accumulating stale members.
	if err := store.Sync(ctx, []Vehicle{vehicleAt("far", 23.85, 90.45, true)}); err != nil {
		t.Fatalf("resync: %v", err)
	}
	ids, err = store.NearbyFromMirror(ctx, types.Point{Lat: 23.8103, Lng: 90.4125}, 2000, 8)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected stale vehicles removed, got %v", ids)
	}
}
