// Package metrics defines Prometheus instrumentation for the market-data
// and coaching core, plus a small HTTP server exposing /metrics.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
// The Inc/Observe helpers are nil-receiver safe so components can run
// without instrumentation in tests.
type Metrics struct {
	CacheHits        *prometheus.CounterVec // labels: tier=hot|shared|local
	CacheMisses      prometheus.Counter
	HotStaleRejected prometheus.Counter

	VendorRequests *prometheus.CounterVec // labels: endpoint, outcome=ok|error|rate_limited
	VendorLatency  prometheus.Histogram

	StreamReconnects    prometheus.Counter
	StreamFallbackPolls prometheus.Counter
	StreamTicksTotal    prometheus.Counter
	StreamTicksDropped  prometheus.Counter

	Interventions *prometheus.CounterVec // labels: severity
	JournalWrites prometheus.Counter

	HubClients prometheus.Gauge
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_cache_hits_total",
			Help: "Cache hits by tier",
		}, []string{"tier"}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_cache_misses_total",
			Help: "Reads that missed every cache tier",
		}),
		HotStaleRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_hot_stale_rejected_total",
			Help: "Hot-cache entries rejected as stale (age > 5000ms)",
		}),
		VendorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_vendor_requests_total",
			Help: "Upstream vendor requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		VendorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketd_vendor_request_duration_seconds",
			Help:    "Upstream vendor request latency",
			Buckets: prometheus.DefBuckets,
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_stream_reconnects_total",
			Help: "Streaming client reconnection attempts",
		}),
		StreamFallbackPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_stream_fallback_polls_total",
			Help: "REST quote polls issued while in fallback mode",
		}),
		StreamTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_stream_ticks_total",
			Help: "Inbound ticks received on the push channel",
		}),
		StreamTicksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_stream_ticks_dropped_total",
			Help: "Ticks dropped (malformed or buffer full)",
		}),
		Interventions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_interventions_total",
			Help: "Coaching interventions by severity",
		}, []string{"severity"}),
		JournalWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_journal_writes_total",
			Help: "Decision journal rows written",
		}),
		HubClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketd_hub_clients",
			Help: "Connected websocket consumers",
		}),
	}

	prometheus.MustRegister(
		m.CacheHits, m.CacheMisses, m.HotStaleRejected,
		m.VendorRequests, m.VendorLatency,
		m.StreamReconnects, m.StreamFallbackPolls,
		m.StreamTicksTotal, m.StreamTicksDropped,
		m.Interventions, m.JournalWrites, m.HubClients,
	)
	return m
}

// IncCacheHit records a hit on the named tier.
func (m *Metrics) IncCacheHit(tier string) {
	if m != nil {
		m.CacheHits.WithLabelValues(tier).Inc()
	}
}

// IncCacheMiss records a full-tier miss.
func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// IncHotStale records a hot entry rejected for staleness.
func (m *Metrics) IncHotStale() {
	if m != nil {
		m.HotStaleRejected.Inc()
	}
}

// ObserveVendor records one vendor request.
func (m *Metrics) ObserveVendor(endpoint, outcome string, dur time.Duration) {
	if m != nil {
		m.VendorRequests.WithLabelValues(endpoint, outcome).Inc()
		m.VendorLatency.Observe(dur.Seconds())
	}
}

// IncReconnect records a streaming reconnect attempt.
func (m *Metrics) IncReconnect() {
	if m != nil {
		m.StreamReconnects.Inc()
	}
}

// IncFallbackPoll records one REST poll issued in fallback mode.
func (m *Metrics) IncFallbackPoll() {
	if m != nil {
		m.StreamFallbackPolls.Inc()
	}
}

// IncTick records an inbound streaming tick.
func (m *Metrics) IncTick() {
	if m != nil {
		m.StreamTicksTotal.Inc()
	}
}

// IncTickDropped records a dropped streaming tick.
func (m *Metrics) IncTickDropped() {
	if m != nil {
		m.StreamTicksDropped.Inc()
	}
}

// IncIntervention records a coaching decision by severity.
func (m *Metrics) IncIntervention(severity string) {
	if m != nil {
		m.Interventions.WithLabelValues(severity).Inc()
	}
}

// IncJournalWrite records a journal row written.
func (m *Metrics) IncJournalWrite() {
	if m != nil {
		m.JournalWrites.Inc()
	}
}

// SetHubClients records the current websocket consumer count.
func (m *Metrics) SetHubClients(n int) {
	if m != nil {
		m.HubClients.Set(float64(n))
	}
}

// Serve starts the /metrics HTTP endpoint. Blocks until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[metrics] serving on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
