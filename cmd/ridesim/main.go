// README: Entry point; loads config, wires the fleet, route and dispatch services, starts HTTP and background loops.
package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridesim/internal/config"
	httptransport "ridesim/internal/http"
	"ridesim/internal/infra"
	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/fleet"
	"ridesim/internal/modules/route"
	"ridesim/internal/modules/trip"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Log.File != "" {
		logFile, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := cfg.Fleet.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	fleetOpts := []fleet.Option{fleet.WithRand(rand.New(rand.NewSource(seed)))}
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		fleetOpts = append(fleetOpts, fleet.WithMirror(fleet.NewStore(redisClient)))
	}
	registry := fleet.NewRegistry(fleet.SeedDhaka(rand.New(rand.NewSource(seed+1)), time.Now()), fleetOpts...)

	routes := route.NewGenerator(cfg.Route, route.WithRand(rand.New(rand.NewSource(seed+2))))

	var journal dispatch.Journal
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		journal = trip.NewStore(dbPool)
	} else {
		log.Printf("RIDESIM_DB_DSN not set; trip journal disabled")
	}

	var verifier infra.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier, err = infra.NewJWTVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		log.Printf("RIDESIM_JWT_SECRET not set; authentication disabled")
	}

	dispatchSvc := dispatch.NewService(registry, routes, journal, cfg.Dispatch, cfg.Fleet.NearbyRadiusMeters)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Fleet:        registry,
		Routes:       routes,
		Dispatch:     dispatchSvc,
		Verifier:     verifier,
		HTTP:         cfg.HTTP,
		NearbyRadius: cfg.Fleet.NearbyRadiusMeters,
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go registry.RunTicker(ctx, cfg.Fleet.TickInterval)
	go dispatchSvc.RunIdleSweeper(ctx)

	go func() {
		log.Printf("ridesim listening on %s with %d cabs", cfg.HTTP.Addr, registry.Status().Total)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	dispatchSvc.Shutdown()
}
