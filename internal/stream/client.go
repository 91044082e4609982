// Package stream maintains a live price map over the vendor's push feed.
// It reconnects with jittered exponential backoff, degrades to REST polling
// when the push transport stays down, and throttles delivery to subscribers
// so bursty feeds don't overwhelm consumers.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradecoach/internal/metrics"
	"tradecoach/internal/model"
	"tradecoach/internal/vendorapi"
)

// State is the client's connection phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFallback     State = "fallback"
)

// Retry budget bounds. Outside this range the configured value is clamped.
const (
	minRetries     = 3
	maxRetries     = 10
	defaultRetries = 5

	defaultFlushInterval = 200 * time.Millisecond
	defaultPollInterval  = 2 * time.Second
	redialInterval       = 15 * time.Second

	// Concurrent symbol fetches while polling. Vendor rate limits are tight
	// on free tiers; never exceed this.
	maxConcurrentPolls = 3

	ringCapacity = 1024
)

// Quoter is the REST quote source used while the push feed is down.
type Quoter interface {
	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)
}

// Options configures a Client. Zero durations select defaults.
type Options struct {
	URL    string
	APIKey string

	MaxRetries    int // dial attempts before degrading to fallback
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	FlushInterval time.Duration
	PollInterval  time.Duration

	Fallback Quoter       // nil disables fallback polling
	OnTicks  func([]Tick) // invoked at most once per flush interval

	Dialer  *websocket.Dialer
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Client is the streaming market-data client. It owns its live price map
// exclusively; consumers get copies via Snapshot and the OnTicks callback.
type Client struct {
	opts    Options
	backoff *Backoff
	ring    *tickRing

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	subs    map[string]struct{}
	prices  map[string]Tick
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger
}

// New builds a Client. Start must be called before it does anything.
func New(opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.MaxRetries < minRetries {
		opts.MaxRetries = minRetries
	}
	if opts.MaxRetries > maxRetries {
		opts.MaxRetries = maxRetries
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		opts:    opts,
		backoff: NewBackoff(opts.BackoffBase, opts.BackoffMax),
		ring:    newTickRing(ringCapacity),
		state:   StateDisconnected,
		subs:    make(map[string]struct{}),
		prices:  make(map[string]Tick),
		log:     log.With("component", "stream"),
	}
}

// Start launches the connection and flush loops. The client runs until
// Close or ctx cancellation.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.stopped || c.cancel != nil {
		c.mu.Unlock()
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	go func() {
		defer c.wg.Done()
		c.flushLoop()
	}()
}

// Close tears down the transport, all timers, and both loops. No callback
// fires after Close returns. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// State returns the current connection phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the live price map.
func (c *Client) Snapshot() map[string]Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Tick, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// Subscribe adds symbols to the live set. Already-subscribed symbols are
// ignored; a subscribe frame goes upstream only when the set actually grew.
func (c *Client) Subscribe(symbols []string) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	var added []string
	for _, s := range symbols {
		if _, ok := c.subs[s]; !ok {
			c.subs[s] = struct{}{}
			added = append(added, s)
		}
	}
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if len(added) == 0 {
		return
	}
	if connected && conn != nil {
		if err := conn.WriteJSON(controlRequest{Action: ActionSubscribe, Symbols: added}); err != nil {
			c.log.Warn("subscribe write failed", "err", err)
		}
	}
}

// Unsubscribe removes symbols from both the subscription set and the live
// price map.
func (c *Client) Unsubscribe(symbols []string) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	var removed []string
	for _, s := range symbols {
		if _, ok := c.subs[s]; ok {
			delete(c.subs, s)
			delete(c.prices, s)
			removed = append(removed, s)
		}
	}
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	if connected && conn != nil {
		if err := conn.WriteJSON(controlRequest{Action: ActionUnsubscribe, Symbols: removed}); err != nil {
			c.log.Warn("unsubscribe write failed", "err", err)
		}
	}
}

// run is the connection state machine: connecting → connected on dial
// success, back to connecting on transport error, and into fallback once
// the retry budget is spent.
func (c *Client) run() {
	attempt := 0
	for {
		if c.shouldStop() {
			return
		}
		c.setState(StateConnecting)

		conn, err := c.dial()
		if err != nil {
			attempt++
			c.log.Warn("dial failed", "attempt", attempt, "err", err)
			if attempt >= c.opts.MaxRetries {
				conn = c.runFallback()
				if conn == nil {
					return // stopped during fallback
				}
				attempt = 0
			} else {
				if !c.sleep(c.backoff.Delay(attempt - 1)) {
					return
				}
				continue
			}
		} else {
			attempt = 0
		}

		c.serve(conn)
		if c.shouldStop() {
			return
		}
		c.opts.Metrics.IncReconnect()
		if !c.sleep(c.backoff.Delay(0)) {
			return
		}
	}
}

// serve owns a live connection: installs it, replays subscriptions, and
// reads until the transport fails.
func (c *Client) serve(conn *websocket.Conn) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	subs := make([]string, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	sort.Strings(subs)
	if len(subs) > 0 {
		if err := conn.WriteJSON(controlRequest{Action: ActionSubscribe, Symbols: subs}); err != nil {
			c.log.Warn("resubscribe failed", "err", err)
		}
	}
	c.log.Info("connected", "symbols", len(subs))

	c.readLoop(conn)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !c.shouldStop() {
				c.log.Warn("read error", "err", err)
			}
			return
		}
		msg, tick, perr := parseMessage(raw)
		if perr != nil {
			c.log.Warn("malformed frame", "err", perr)
			continue
		}
		switch {
		case tick != nil:
			c.ingest(*tick)
		case msg.Type == MsgError:
			c.log.Warn("feed error", "message", msg.Message)
		case msg.Type == MsgConnected, msg.Type == MsgHeartbeat, msg.Type == MsgSubscribed:
			// control frames need no action
		}
	}
}

// runFallback polls REST quotes on a fixed interval and periodically
// re-dials the push feed. Returns the new connection, or nil if stopped.
func (c *Client) runFallback() *websocket.Conn {
	c.setState(StateFallback)
	c.log.Info("entering fallback polling")

	poll := time.NewTicker(c.opts.PollInterval)
	defer poll.Stop()
	redial := time.NewTicker(redialInterval)
	defer redial.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-poll.C:
			c.pollOnce()
		case <-redial.C:
			if conn, err := c.dial(); err == nil {
				c.log.Info("push feed restored")
				return conn
			}
		}
	}
}

// pollOnce fetches quotes for all subscribed symbols, at most
// maxConcurrentPolls in flight. A rate-limit response aborts the remainder
// of the cycle; the next tick retries.
func (c *Client) pollOnce() {
	if c.opts.Fallback == nil {
		return
	}
	c.mu.Lock()
	symbols := make([]string, 0, len(c.subs))
	for s := range c.subs {
		symbols = append(symbols, s)
	}
	c.mu.Unlock()
	if len(symbols) == 0 {
		return
	}
	sort.Strings(symbols)

	type result struct {
		tick    *Tick
		limited bool
	}
	results := make([]result, len(symbols))
	sem := make(chan struct{}, maxConcurrentPolls)
	var wg sync.WaitGroup

	for i, sym := range symbols {
		c.mu.Lock()
		stop := c.stopped
		c.mu.Unlock()
		if stop {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			q, err := c.opts.Fallback.GetQuote(c.ctx, sym)
			if err != nil {
				if errors.Is(err, vendorapi.ErrRateLimited) {
					results[i].limited = true
				}
				return
			}
			results[i].tick = tickFromQuote(q)
		}(i, sym)
		c.opts.Metrics.IncFallbackPoll()
	}
	wg.Wait()

	// Single goroutine feeds the ring; the poll workers only collected.
	for _, r := range results {
		if r.limited {
			c.log.Warn("rate limited during fallback poll")
			break
		}
		if r.tick != nil {
			c.ingest(*r.tick)
		}
	}
}

// ingest pushes one tick into the throttle buffer.
func (c *Client) ingest(t Tick) {
	if c.ring.push(t) {
		c.opts.Metrics.IncTick()
	} else {
		c.opts.Metrics.IncTickDropped()
	}
}

// flushLoop drains the buffer on the throttle interval, folds ticks into
// the live price map, and delivers the latest tick per symbol downstream.
func (c *Client) flushLoop() {
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Client) flush() {
	latest := make(map[string]Tick)
	for {
		t, ok := c.ring.pop()
		if !ok {
			break
		}
		latest[t.Symbol] = t
	}
	if len(latest) == 0 {
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	batch := make([]Tick, 0, len(latest))
	for sym, t := range latest {
		if _, subscribed := c.subs[sym]; !subscribed {
			continue // unsubscribed while buffered
		}
		c.prices[sym] = t
		batch = append(batch, t)
	}
	cb := c.opts.OnTicks
	c.mu.Unlock()

	if cb != nil && len(batch) > 0 {
		sort.Slice(batch, func(i, j int) bool { return batch[i].Symbol < batch[j].Symbol })
		cb(batch)
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	dialCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()
	conn, resp, err := c.opts.Dialer.DialContext(dialCtx, c.opts.URL, header)
	if err != nil {
		if resp != nil {
			c.log.Warn("dial rejected", "status", resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.state = s
}

func (c *Client) shouldStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped || c.ctx.Err() != nil
}

func (c *Client) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.ctx.Done():
		return false
	}
}
