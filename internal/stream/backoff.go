package stream

import (
	"math/rand"
	"time"
)

// Defaults for the reconnect schedule.
const (
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 30 * time.Second

	jitterFraction = 0.25
)

// Backoff produces reconnect delays: base·2^attempt plus a random jitter
// in [0, 25%] of the delay so that many clients restarting together don't
// storm the feed in lockstep. The final value never exceeds Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	rng *rand.Rand
}

// NewBackoff builds a schedule with the given base and cap. Zero values
// select the defaults.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	return &Backoff{
		Base: base,
		Max:  max,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the wait before reconnect attempt n (0-indexed).
func (b *Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	d += time.Duration(b.rng.Float64() * jitterFraction * float64(d))
	if d > b.Max {
		d = b.Max
	}
	return d
}
