// README: Route generator synthesizes plausible polylines and caches them by rounded endpoints.
package route

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"ridesim/internal/config"
	"ridesim/internal/geo"
	"ridesim/internal/metrics"
	"ridesim/internal/types"
)

var ErrInvalidPoint = errors.New("invalid route endpoint")

const (
	minPoints        = 10
	maxPoints        = 50
	metersPerPoint   = 100.0
	noiseDeg         = 0.0005
	curveDeg         = 0.0002
	curveMinMeters   = 1000.0
	averageSpeedKmph = 30.0
)

type Generator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	cache      *expirable.LRU[string, []types.Point]
	cacheSize  int
	cacheTTL   time.Duration
	minLatency time.Duration
	maxLatency time.Duration
}

type Option func(*Generator)

// WithRand injects the random source used for path noise and latency.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

func NewGenerator(cfg config.RouteConfig, opts ...Option) *Generator {
	g := &Generator{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		cacheSize:  cfg.CacheSize,
		cacheTTL:   cfg.CacheTTL,
		minLatency: cfg.MinLatency,
		maxLatency: cfg.MaxLatency,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache = expirable.NewLRU[string, []types.Point](g.cacheSize, nil, g.cacheTTL)
	return g
}

// Route returns a polyline from origin to destination. The first and last
// points are exactly the endpoints. Paths are shared with the cache and must
// not be modified by callers.
func (g *Generator) Route(ctx context.Context, origin, destination types.Point) ([]types.Point, error) {
	if !geo.ValidPoint(origin) || !geo.ValidPoint(destination) {
		return nil, ErrInvalidPoint
	}

	key := cacheKey(origin, destination)
	// Peek keeps eviction in insertion order.
	if path, ok := g.cache.Peek(key); ok {
		metrics.RouteCache.WithLabelValues("hit").Inc()
		return path, nil
	}
	metrics.RouteCache.WithLabelValues("miss").Inc()

	if err := g.simulateLatency(ctx); err != nil {
		return nil, fmt.Errorf("route %s: %w", key, err)
	}

	path := g.generate(origin, destination)
	g.cache.Add(key, path)
	return path, nil
}

func (g *Generator) generate(origin, destination types.Point) []types.Point {
	distance := geo.DistanceMeters(origin, destination)
	bearing := geo.BearingDegrees(origin, destination)
	count := PointCount(distance)

	perp := (bearing + 90) * math.Pi / 180
	perpLat, perpLng := math.Cos(perp), math.Sin(perp)

	g.mu.Lock()
	defer g.mu.Unlock()

	points := make([]types.Point, count)
	last := count - 1
	for i := 0; i <= last; i++ {
		progress := float64(i) / float64(last)
		p := types.Point{
			Lat: origin.Lat + (destination.Lat-origin.Lat)*progress,
			Lng: origin.Lng + (destination.Lng-origin.Lng)*progress,
		}
		if i > 0 && i < last {
			offset := (g.rng.Float64() - 0.5) * noiseDeg
			if distance > curveMinMeters {
				offset += math.Sin(progress*math.Pi*2) * curveDeg
			}
			p.Lat += offset * perpLat
			p.Lng += offset * perpLng
		}
		points[i] = p
	}
	points[0], points[last] = origin, destination

	log.Printf("route: generated %d points over %.0fm", count, distance)
	return points
}

func (g *Generator) simulateLatency(ctx context.Context) error {
	if g.maxLatency <= 0 {
		return ctx.Err()
	}
	d := g.minLatency
	if spread := g.maxLatency - g.minLatency; spread > 0 {
		g.mu.Lock()
		d += time.Duration(g.rng.Int63n(int64(spread)))
		g.mu.Unlock()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PointCount scales the number of polyline points with distance, roughly one
// per 100m, bounded to [10, 50].
func PointCount(distanceMeters float64) int {
	n := int(math.Floor(distanceMeters / metersPerPoint))
	if n < minPoints {
		return minPoints
	}
	if n > maxPoints {
		return maxPoints
	}
	return n
}

// EstimateTravelMinutes assumes an average city speed of 30 km/h.
func EstimateTravelMinutes(distanceMeters float64) int {
	metersPerMinute := averageSpeedKmph * 1000 / 60
	return int(math.Ceil(distanceMeters / metersPerMinute))
}

type CacheStats struct {
	Size     int   `json:"size"`
	MaxSize  int   `json:"maxSize"`
	ExpiryMs int64 `json:"expiryMs"`
}

func (g *Generator) CacheStats() CacheStats {
	return CacheStats{Size: g.cache.Len(), MaxSize: g.cacheSize, ExpiryMs: g.cacheTTL.Milliseconds()}
}

func (g *Generator) ClearCache() {
	g.cache.Purge()
	log.Printf("route: cache cleared")
}

func cacheKey(origin, destination types.Point) string {
	return fmt.Sprintf("%.5f,%.5f_%.5f,%.5f", origin.Lat, origin.Lng, destination.Lat, destination.Lng)
}
