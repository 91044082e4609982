// Package breadth consumes the market-internals feed produced by the
// out-of-process breadth worker. This side is strictly read-only: it never
// writes the breadth or calendar namespaces.
package breadth

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradecoach/internal/model"
)

// Keys and channels owned by the external worker.
const (
	KeyLatest     = "breadth:latest"
	KeyCalendar   = "calendar:today"
	KeyWarnings   = "breadth:warnings"
	ChannelUpdate = "pub:breadth"

	// Readings older than this are considered gone, not stale-but-usable.
	maxAge = 5 * time.Minute
)

// Reader serves breadth and calendar context from Redis, with a small
// in-process cache refreshed by the pubsub channel.
type Reader struct {
	rdb *goredis.Client

	mu     sync.RWMutex
	latest *model.MarketBreadth
}

// NewReader builds a Reader over an existing Redis client.
func NewReader(rdb *goredis.Client) *Reader {
	return &Reader{rdb: rdb}
}

// Run subscribes to the update channel and keeps the in-process copy warm.
// Blocks until ctx is cancelled. Optional: Latest falls back to the keyed
// read when Run isn't running.
func (r *Reader) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		sub := r.rdb.Subscribe(ctx, ChannelUpdate)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					log.Println("[breadth] pubsub closed, resubscribing")
					break recv
				}
				var mb model.MarketBreadth
				if err := json.Unmarshal([]byte(msg.Payload), &mb); err != nil {
					log.Printf("[breadth] bad payload: %v", err)
					continue
				}
				r.mu.Lock()
				r.latest = &mb
				r.mu.Unlock()
			}
		}
		sub.Close()
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Latest returns the current breadth reading, preferring the pubsub-warmed
// copy and falling back to the keyed value. A missing or expired reading
// returns (nil, false); the coach treats that as "no breadth context".
func (r *Reader) Latest(ctx context.Context) (*model.MarketBreadth, bool) {
	r.mu.RLock()
	cached := r.latest
	r.mu.RUnlock()
	if cached != nil && time.Since(cached.UpdatedAt) < maxAge {
		cp := *cached
		return &cp, true
	}

	raw, err := r.rdb.Get(ctx, KeyLatest).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[breadth] read failed: %v", err)
		}
		return nil, false
	}
	var mb model.MarketBreadth
	if err := json.Unmarshal(raw, &mb); err != nil {
		log.Printf("[breadth] bad stored payload: %v", err)
		return nil, false
	}
	if time.Since(mb.UpdatedAt) >= maxAge {
		return nil, false
	}
	r.mu.Lock()
	r.latest = &mb
	r.mu.Unlock()
	return &mb, true
}

// TodayEvents returns today's economic calendar. Missing or malformed data
// yields an empty slice; the calendar is advisory context only.
func (r *Reader) TodayEvents(ctx context.Context) []model.EconomicEvent {
	raw, err := r.rdb.Get(ctx, KeyCalendar).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[breadth] calendar read failed: %v", err)
		}
		return nil
	}
	var events []model.EconomicEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		log.Printf("[breadth] bad calendar payload: %v", err)
		return nil
	}
	// Recompute minutes-until from the schedule so consumers never see a
	// value frozen at publish time.
	for i := range events {
		if !events[i].ScheduledAt.IsZero() {
			events[i].MinutesUntilEvent = int(time.Until(events[i].ScheduledAt).Minutes())
		}
	}
	return events
}

// Warnings returns the worker's current proactive warnings, expired ones
// filtered out. Missing key means no warnings.
func (r *Reader) Warnings(ctx context.Context) []model.ProactiveWarning {
	raw, err := r.rdb.Get(ctx, KeyWarnings).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[breadth] warnings read failed: %v", err)
		}
		return nil
	}
	var ws []model.ProactiveWarning
	if err := json.Unmarshal(raw, &ws); err != nil {
		log.Printf("[breadth] bad warnings payload: %v", err)
		return nil
	}
	cutoff := time.Now().Add(-maxAge)
	live := make([]model.ProactiveWarning, 0, len(ws))
	for _, w := range ws {
		if w.CreatedAt.After(cutoff) {
			live = append(live, w)
		}
	}
	return live
}
