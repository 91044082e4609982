package stream

import "sync/atomic"

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// tickRing is a lock-free single-producer single-consumer ring buffer for
// inbound ticks. The read loop is the only producer, the flush loop the only
// consumer. Size is rounded up to a power of two for bitwise modulo.
type tickRing struct {
	buf  []Tick
	mask uint64

	// Separate cache lines so producer and consumer indices don't false-share.
	_pad0 [cacheLine]byte
	head  atomic.Uint64
	_pad1 [cacheLine]byte
	tail  atomic.Uint64
	_pad2 [cacheLine]byte

	dropped atomic.Uint64
}

func newTickRing(capacity int) *tickRing {
	c := nextPow2(capacity)
	if c < 2 {
		c = 2
	}
	return &tickRing{
		buf:  make([]Tick, c),
		mask: uint64(c - 1),
	}
}

// push appends a tick, dropping it when the buffer is full. Under a burst
// the consumer catches up at the next flush; losing intermediate ticks is
// acceptable since only the latest price per symbol matters downstream.
func (r *tickRing) push(t Tick) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}
	r.buf[head&r.mask] = t
	r.head.Store(head + 1)
	return true
}

func (r *tickRing) pop() (Tick, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return Tick{}, false
	}
	t := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return t, true
}

func (r *tickRing) len() int { return int(r.head.Load() - r.tail.Load()) }

func (r *tickRing) droppedCount() uint64 { return r.dropped.Load() }

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
