package stream

import (
	"testing"
	"time"
)

func TestBackoff_DelayBounds(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)
	for attempt := 0; attempt < 8; attempt++ {
		want := time.Second << attempt
		if want > 30*time.Second {
			want = 30 * time.Second
		}
		for i := 0; i < 50; i++ {
			d := b.Delay(attempt)
			lo := want
			hi := want + time.Duration(float64(want)*jitterFraction)
			if hi > 30*time.Second {
				hi = 30 * time.Second
			}
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestBackoff_CapHoldsUnderJitter(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)
	for i := 0; i < 10000; i++ {
		if d := b.Delay(20); d > 30*time.Second {
			t.Fatalf("delay %v exceeds configured max", d)
		}
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0)
	if b.Base != DefaultBackoffBase || b.Max != DefaultBackoffMax {
		t.Fatalf("defaults not applied: base=%v max=%v", b.Base, b.Max)
	}
	// Attempt far beyond the cap never exceeds max.
	if d := b.Delay(40); d > DefaultBackoffMax {
		t.Fatalf("delay %v exceeds cap", d)
	}
}

func TestTickRing(t *testing.T) {
	r := newTickRing(4)
	if r.len() != 0 {
		t.Fatal("new ring not empty")
	}
	for i := 0; i < 4; i++ {
		if !r.push(Tick{Symbol: "SPY", Price: float64(100 + i)}) {
			t.Fatalf("push %d failed", i)
		}
	}
	if r.push(Tick{Symbol: "SPY", Price: 200}) {
		t.Fatal("push into full ring must fail")
	}
	if r.droppedCount() != 1 {
		t.Fatalf("dropped: %d", r.droppedCount())
	}
	for i := 0; i < 4; i++ {
		tk, ok := r.pop()
		if !ok || tk.Price != float64(100+i) {
			t.Fatalf("pop %d: %v %v", i, tk, ok)
		}
	}
	if _, ok := r.pop(); ok {
		t.Fatal("pop from empty ring must fail")
	}
}

func TestParseMessage(t *testing.T) {
	msg, tick, err := parseMessage([]byte(`{"type":"trade","symbol":"SPY","price":512.34,"size":100,"ts":1767286800000}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != MsgTrade || tick == nil {
		t.Fatalf("expected trade tick, got %+v %+v", msg, tick)
	}
	if tick.Symbol != "SPY" || tick.Price != 512.34 || tick.Size != 100 {
		t.Fatalf("tick: %+v", tick)
	}

	_, tick, err = parseMessage([]byte(`{"type":"bar","symbol":"QQQ","ts":1767286800000,"bar":{"o":1,"h":2,"l":0.5,"c":1.5,"v":42}}`))
	if err != nil || tick == nil {
		t.Fatalf("bar tick: %v %v", tick, err)
	}
	if tick.Price != 1.5 || tick.Size != 42 {
		t.Fatalf("bar tick values: %+v", tick)
	}

	// Control frames yield no tick.
	msg, tick, err = parseMessage([]byte(`{"type":"heartbeat"}`))
	if err != nil || tick != nil || msg.Type != MsgHeartbeat {
		t.Fatalf("heartbeat: %+v %+v %v", msg, tick, err)
	}

	// Non-positive price is discarded, not an error.
	_, tick, err = parseMessage([]byte(`{"type":"trade","symbol":"SPY","price":-1}`))
	if err != nil || tick != nil {
		t.Fatalf("negative price must be dropped: %+v %v", tick, err)
	}

	if _, _, err = parseMessage([]byte(`{not json`)); err == nil {
		t.Fatal("malformed frame must return an error")
	}
}

func TestClient_SubscribeIdempotent(t *testing.T) {
	c := New(Options{URL: "ws://example.invalid/feed"})
	c.Subscribe([]string{"SPY", "QQQ"})
	c.Subscribe([]string{"QQQ", "SPY"}) // no growth, no-op
	c.mu.Lock()
	n := len(c.subs)
	c.mu.Unlock()
	if n != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", n)
	}

	c.Unsubscribe([]string{"QQQ", "IWM"})
	c.mu.Lock()
	_, spy := c.subs["SPY"]
	_, qqq := c.subs["QQQ"]
	c.mu.Unlock()
	if !spy || qqq {
		t.Fatalf("unsubscribe wrong: spy=%v qqq=%v", spy, qqq)
	}
}

func TestClient_FlushFoldsLatestPerSymbol(t *testing.T) {
	var delivered [][]Tick
	c := New(Options{
		URL:     "ws://example.invalid/feed",
		OnTicks: func(ts []Tick) { delivered = append(delivered, ts) },
	})
	c.Subscribe([]string{"SPY", "QQQ"})

	c.ingest(Tick{Symbol: "SPY", Price: 510})
	c.ingest(Tick{Symbol: "SPY", Price: 511})
	c.ingest(Tick{Symbol: "QQQ", Price: 430})
	c.ingest(Tick{Symbol: "IWM", Price: 220}) // never subscribed
	c.flush()

	if len(delivered) != 1 {
		t.Fatalf("expected one batch, got %d", len(delivered))
	}
	batch := delivered[0]
	if len(batch) != 2 {
		t.Fatalf("expected 2 ticks (latest per subscribed symbol), got %d", len(batch))
	}
	// Batches are sorted by symbol.
	if batch[0].Symbol != "QQQ" || batch[1].Symbol != "SPY" {
		t.Fatalf("batch order: %+v", batch)
	}
	if batch[1].Price != 511 {
		t.Fatalf("expected latest SPY price 511, got %.1f", batch[1].Price)
	}

	snap := c.Snapshot()
	if len(snap) != 2 || snap["SPY"].Price != 511 {
		t.Fatalf("snapshot: %+v", snap)
	}
	// Snapshot is a copy: mutating it must not touch the live map.
	snap["SPY"] = Tick{Symbol: "SPY", Price: 1}
	if c.Snapshot()["SPY"].Price != 511 {
		t.Fatal("snapshot aliases the live map")
	}

	// Empty buffer flush delivers nothing.
	c.flush()
	if len(delivered) != 1 {
		t.Fatalf("empty flush must not call back, got %d batches", len(delivered))
	}
}

func TestClient_RetryBudgetClamped(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, defaultRetries},
		{1, minRetries},
		{7, 7},
		{50, maxRetries},
	}
	for _, tc := range cases {
		c := New(Options{MaxRetries: tc.in})
		if c.opts.MaxRetries != tc.want {
			t.Errorf("MaxRetries %d: got %d, want %d", tc.in, c.opts.MaxRetries, tc.want)
		}
	}
}

func TestClient_NoMutationAfterClose(t *testing.T) {
	c := New(Options{URL: "ws://example.invalid/feed"})
	c.Subscribe([]string{"SPY"})
	c.Close()

	c.Subscribe([]string{"QQQ"})
	c.ingest(Tick{Symbol: "SPY", Price: 510})
	c.flush()

	if st := c.State(); st != StateDisconnected {
		t.Fatalf("state after close: %s", st)
	}
	if len(c.Snapshot()) != 0 {
		t.Fatal("price map mutated after close")
	}
	c.Close() // idempotent
}
