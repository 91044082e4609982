// cmd/streamwatch — live quote ingester.
//
// Maintains the vendor push feed for the configured watchlist and fans the
// latest prices out through Redis: the hot cache namespace for marketd's
// read path, and the pub:quote:<SYMBOL> channels for the WebSocket gateway.
// When the push feed stays down it degrades to REST polling on the same
// symbols, so the hot tier keeps moving at a reduced rate.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradecoach/config"
	"tradecoach/internal/cache"
	"tradecoach/internal/gateway"
	"tradecoach/internal/logger"
	"tradecoach/internal/metrics"
	"tradecoach/internal/model"
	"tradecoach/internal/stream"
	"tradecoach/internal/vendorapi"
)

func main() {
	cfg := config.Load()
	log := logger.Init("streamwatch", logger.ParseLevel(cfg.LogLevel))

	watchlist := cfg.ParseWatchlist()
	if len(watchlist) == 0 {
		log.Error("empty watchlist, nothing to ingest")
		os.Exit(1)
	}
	log.Info("starting", "symbols", watchlist)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			log.Warn("metrics server stopped", "err", err)
		}
	}()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err := rdb.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		log.Error("redis unavailable, ingester has nowhere to publish", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	vendor := vendorapi.New(cfg.VendorAPIKey, cfg.VendorBaseURL, log, m)

	client := stream.New(stream.Options{
		URL:        cfg.VendorWSURL,
		APIKey:     cfg.VendorAPIKey,
		MaxRetries: cfg.StreamMaxRetries,
		Fallback:   vendor,
		OnTicks: func(ticks []stream.Tick) {
			publish(ctx, rdb, ticks, log)
		},
		Logger:  log,
		Metrics: m,
	})
	client.Start(ctx)
	client.Subscribe(watchlist)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	client.Close()
	log.Info("stopped")
}

// publish writes each tick to the hot cache namespace and the per-symbol
// pub/sub channel. Redis errors are logged and skipped; the next flush
// carries fresher data anyway.
func publish(ctx context.Context, rdb *goredis.Client, ticks []stream.Tick, log *slog.Logger) {
	now := time.Now()
	for _, t := range ticks {
		q := model.Quote{
			Symbol:    t.Symbol,
			Price:     t.Price,
			Timestamp: t.TS,
		}
		payload, err := json.Marshal(q)
		if err != nil {
			continue
		}

		env, err := cache.EncodeHot(now, payload)
		if err != nil {
			continue
		}
		key := cache.HotKey(cache.QuoteKey(t.Symbol))
		if err := rdb.Set(ctx, key, env, cache.HotFreshness).Err(); err != nil {
			log.Warn("hot write failed", "symbol", t.Symbol, "err", err)
			continue
		}
		if err := rdb.Publish(ctx, gateway.QuoteChannelPrefix+t.Symbol, payload).Err(); err != nil {
			log.Warn("publish failed", "symbol", t.Symbol, "err", err)
		}
	}
}
