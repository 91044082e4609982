// cmd/marketd — market data, analytics, and coaching daemon.
//
// Serves the REST API and the browser WebSocket gateway, evaluates trade
// intents against the coaching rules, and records every decision in the
// SQLite journal. Quote fan-out arrives over Redis pub/sub from the
// streamwatch ingester; a missing Redis degrades the cache to local-only
// and disables the gateway and breadth context, never the daemon.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tradecoach/config"
	"tradecoach/internal/api"
	"tradecoach/internal/breadth"
	"tradecoach/internal/cache"
	"tradecoach/internal/coach"
	"tradecoach/internal/gateway"
	"tradecoach/internal/journal"
	"tradecoach/internal/logger"
	"tradecoach/internal/metrics"
	"tradecoach/internal/sched"
	"tradecoach/internal/service"
	"tradecoach/internal/vendorapi"
)

func main() {
	cfg := config.Load()
	log := logger.Init("marketd", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			log.Warn("metrics server stopped", "err", err)
		}
	}()

	// Cache tiers. The hot tier is the streamwatch worker's namespace on
	// the same Redis; both tiers disappear together when Redis is down.
	rb, err := cache.NewRedisBackend(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Warn("redis unavailable, running local-only", "err", err)
	}
	local := cache.NewMemoryBackend()

	var tiered *cache.Tiered
	if rb != nil {
		tiered = cache.NewTiered(rb, rb, local, m)
	} else {
		tiered = cache.NewTiered(nil, nil, local, m)
	}
	defer tiered.Close()

	vendor := vendorapi.New(cfg.VendorAPIKey, cfg.VendorBaseURL, log, m)
	if !vendor.IsConfigured() {
		log.Warn("no vendor API key set, data endpoints will return 503")
	}
	svc := service.New(tiered, vendor, log)

	rules, err := coach.LoadRulesConfig(cfg.CoachRulesPath)
	if err != nil {
		log.Warn("coach rules load failed, using defaults", "path", cfg.CoachRulesPath, "err", err)
		rules = coach.DefaultRulesConfig()
	}
	engine := coach.NewEngine(rules, m)

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		log.Error("journal dir", "err", err)
		os.Exit(1)
	}
	jr, err := journal.New(cfg.SQLitePath, m)
	if err != nil {
		log.Error("journal init failed", "err", err)
		os.Exit(1)
	}
	defer jr.Close()

	deps := api.Deps{
		Service: svc,
		Coach:   engine,
		Journal: jr,
		Stats:   jr,
		History: jr,
	}

	var hub *gateway.Hub
	if rb != nil {
		reader := breadth.NewReader(rb.Client())
		go reader.Run(ctx)
		deps.Breadth = reader

		hub = gateway.NewHub(rb.Client(), m)
		go hub.Run(ctx)
	}

	mux := api.NewRouter(deps)
	if hub != nil {
		mux.HandleFunc("/ws", hub.HandleWS)
	}

	scheduler := sched.New(ctx, svc, jr, cfg.ParseWatchlist(), log)
	if err := scheduler.RegisterAll(); err != nil {
		log.Error("scheduler init failed", "err", err)
		os.Exit(1)
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	cancel()
	log.Info("stopped")
}
