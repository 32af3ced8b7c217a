// README: Config loader with env defaults for HTTP, auth, storage, fleet, route and dispatch settings.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	// RateLimit is the number of requests a single client may issue per RateWindow.
	RateLimit     int
	RateWindow    time.Duration
	MaxConcurrent int
}

type FleetConfig struct {
	TickInterval       time.Duration
	NearbyRadiusMeters float64
	Seed               int64
}

type RouteConfig struct {
	CacheSize  int
	CacheTTL   time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration
}

type DispatchConfig struct {
	LocationInterval time.Duration
	ArrivingDwell    time.Duration
	BoardingDwell    time.Duration
	RouteTimeout     time.Duration
	IdleTimeout      time.Duration
	SweepInterval    time.Duration
	HistorySize      int
}

type Config struct {
	HTTP HTTPConfig
	Auth struct {
		JWTSecret string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Log struct {
		File string
	}
	Fleet    FleetConfig
	Route    RouteConfig
	Dispatch DispatchConfig
}

// Load reads the process environment, after merging an optional .env file.
// Storage and auth settings default to empty, which disables them.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("RIDESIM_HTTP_ADDR", ":3003")
	cfg.HTTP.AllowedOrigins = envOrDefaultList("RIDESIM_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"})
	cfg.HTTP.RateLimit = envOrDefaultInt("RIDESIM_RATE_LIMIT", 100)
	cfg.HTTP.RateWindow = envOrDefaultDuration("RIDESIM_RATE_WINDOW", 15*time.Minute)
	cfg.HTTP.MaxConcurrent = envOrDefaultInt("RIDESIM_MAX_CONCURRENT", 200)

	cfg.Auth.JWTSecret = os.Getenv("RIDESIM_JWT_SECRET")
	cfg.DB.DSN = os.Getenv("RIDESIM_DB_DSN")
	cfg.Redis.Addr = os.Getenv("RIDESIM_REDIS_ADDR")
	cfg.Log.File = os.Getenv("RIDESIM_LOG_FILE")

	cfg.Fleet = DefaultFleet()
	cfg.Fleet.TickInterval = envOrDefaultDuration("RIDESIM_FLEET_TICK", cfg.Fleet.TickInterval)
	cfg.Fleet.NearbyRadiusMeters = envOrDefaultFloat("RIDESIM_NEARBY_RADIUS_M", cfg.Fleet.NearbyRadiusMeters)
	cfg.Fleet.Seed = int64(envOrDefaultInt("RIDESIM_SEED", 0))

	cfg.Route = DefaultRoute()
	cfg.Route.CacheSize = envOrDefaultInt("RIDESIM_ROUTE_CACHE_SIZE", cfg.Route.CacheSize)
	cfg.Route.CacheTTL = envOrDefaultDuration("RIDESIM_ROUTE_CACHE_TTL", cfg.Route.CacheTTL)
	cfg.Route.MinLatency = envOrDefaultDelay("RIDESIM_ROUTE_MIN_LATENCY", cfg.Route.MinLatency)
	cfg.Route.MaxLatency = envOrDefaultDelay("RIDESIM_ROUTE_MAX_LATENCY", cfg.Route.MaxLatency)

	cfg.Dispatch = DefaultDispatch()
	cfg.Dispatch.LocationInterval = envOrDefaultDuration("RIDESIM_LOCATION_INTERVAL", cfg.Dispatch.LocationInterval)
	cfg.Dispatch.ArrivingDwell = envOrDefaultDuration("RIDESIM_ARRIVING_DWELL", cfg.Dispatch.ArrivingDwell)
	cfg.Dispatch.BoardingDwell = envOrDefaultDuration("RIDESIM_BOARDING_DWELL", cfg.Dispatch.BoardingDwell)
	cfg.Dispatch.RouteTimeout = envOrDefaultDuration("RIDESIM_ROUTE_TIMEOUT", cfg.Dispatch.RouteTimeout)
	cfg.Dispatch.IdleTimeout = envOrDefaultDuration("RIDESIM_IDLE_TIMEOUT", cfg.Dispatch.IdleTimeout)
	return cfg, nil
}

func DefaultFleet() FleetConfig {
	return FleetConfig{
		TickInterval:       3 * time.Second,
		NearbyRadiusMeters: 2000,
	}
}

func DefaultRoute() RouteConfig {
	return RouteConfig{
		CacheSize:  100,
		CacheTTL:   30 * time.Minute,
		MinLatency: 100 * time.Millisecond,
		MaxLatency: 300 * time.Millisecond,
	}
}

func DefaultDispatch() DispatchConfig {
	return DispatchConfig{
		LocationInterval: 2500 * time.Millisecond,
		ArrivingDwell:    3 * time.Second,
		BoardingDwell:    5 * time.Second,
		RouteTimeout:     10 * time.Second,
		IdleTimeout:      10 * time.Minute,
		SweepInterval:    time.Minute,
		HistorySize:      50,
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

// envOrDefaultDuration ignores values that are not positive; tickers and
// timers built from them would panic or spin.
func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// envOrDefaultDelay accepts zero, which disables a simulated delay.
func envOrDefaultDelay(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
