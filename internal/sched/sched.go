// Package sched runs the recurring maintenance jobs: cache warm-up for
// the watchlist around the session open, periodic market-status refresh,
// and an end-of-day journal summary. All schedules are evaluated in
// US Eastern time.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tradecoach/internal/journal"
	"tradecoach/internal/markethours"
	"tradecoach/internal/service"
)

// Scheduler owns the cron runner and its collaborators.
type Scheduler struct {
	cron      *cron.Cron
	svc       *service.Service
	journal   *journal.Journal
	watchlist []string
	log       *slog.Logger
	ctx       context.Context
}

// New builds a scheduler. The journal may be nil; the end-of-day summary
// is skipped in that case.
func New(ctx context.Context, svc *service.Service, j *journal.Journal, watchlist []string, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(markethours.Eastern)),
		svc:       svc,
		journal:   j,
		watchlist: watchlist,
		log:       log,
		ctx:       ctx,
	}
}

// RegisterAll installs the standard jobs.
func (s *Scheduler) RegisterAll() error {
	// Warm levels and MTF shortly after the open, once the opening range
	// has its first bars.
	if _, err := s.cron.AddFunc("31 9 * * 1-5", s.warmWatchlist); err != nil {
		return fmt.Errorf("register open warm-up: %w", err)
	}
	// Pre-market warm-up keeps daily bars and SMA200 ready before the bell.
	if _, err := s.cron.AddFunc("0 9 * * 1-5", s.warmWatchlist); err != nil {
		return fmt.Errorf("register pre-market warm-up: %w", err)
	}
	if _, err := s.cron.AddFunc("*/5 * * * *", s.refreshStatus); err != nil {
		return fmt.Errorf("register status refresh: %w", err)
	}
	if _, err := s.cron.AddFunc("5 16 * * 1-5", s.dailySummary); err != nil {
		return fmt.Errorf("register daily summary: %w", err)
	}
	return nil
}

// Start begins the cron loop and stops it when the context is done.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
	go func() {
		<-s.ctx.Done()
		s.cron.Stop()
		s.log.Info("scheduler stopped")
	}()
}

// warmWatchlist populates the level and MTF caches so the first request
// of the session does not pay the full vendor fan-out.
func (s *Scheduler) warmWatchlist() {
	if !s.svc.IsConfigured() {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 60*time.Second)
	defer cancel()
	for _, sym := range s.watchlist {
		if levels := s.svc.GetKeyLevels(ctx, sym); levels == nil {
			s.log.Warn("warm-up: no key levels", "symbol", sym)
		}
		if mtf := s.svc.GetMTFAnalysis(ctx, sym); mtf == nil {
			s.log.Warn("warm-up: no mtf analysis", "symbol", sym)
		}
	}
	s.log.Info("watchlist warmed", "symbols", len(s.watchlist))
}

func (s *Scheduler) refreshStatus() {
	if !s.svc.IsConfigured() {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	status := s.svc.GetMarketStatus(ctx)
	s.log.Debug("market status refreshed", "status", status)
}

func (s *Scheduler) dailySummary() {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	stats, err := s.journal.StatsFor(ctx, time.Now())
	if err != nil {
		s.log.Warn("daily summary failed", "err", err)
		return
	}
	s.log.Info("session summary",
		"trades", stats.TradeCount,
		"consecutiveLosses", stats.ConsecutiveLosses,
		"lossPct", stats.LossPct,
	)
}
