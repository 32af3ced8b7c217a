// README: End-to-end trip checker; drives one booking over the WebSocket API and prints per-phase results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	runner := NewRunner(cfg)
	results := runner.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusPass:
			pass++
		case statusFail:
			fail++
		case statusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL   string
	JWTSecret string
	PickupLat float64
	PickupLng float64
	DropLat   float64
	DropLng   float64
	Timeout   time.Duration
}

func loadConfig() Config {
	_ = godotenv.Load()

	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("RIDESIM_CHECK_BASE_URL", "http://localhost:3003"), "server base URL")
	flag.StringVar(&cfg.JWTSecret, "secret", os.Getenv("RIDESIM_JWT_SECRET"), "shared JWT secret; empty when auth is disabled")
	flag.Float64Var(&cfg.PickupLat, "pickup-lat", 23.8103, "pickup latitude")
	flag.Float64Var(&cfg.PickupLng, "pickup-lng", 90.4125, "pickup longitude")
	flag.Float64Var(&cfg.DropLat, "drop-lat", 23.7909, "drop latitude")
	flag.Float64Var(&cfg.DropLng, "drop-lng", 90.4043, "drop longitude")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("RIDESIM_CHECK_TIMEOUT", 5*time.Minute), "total timeout")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
