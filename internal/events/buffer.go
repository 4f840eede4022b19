package events

import "sync"

// RingBuffer keeps the most recent events in memory. Once full, each Add
// overwrites the oldest event.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []Event
	next  int // slot the next Add writes
	count int
}

// NewRingBuffer creates a buffer holding size events. A size <= 0 uses
// DefaultBufferSize.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &RingBuffer{slots: make([]Event, size)}
}

func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.slots[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.slots)
	if rb.count < len(rb.slots) {
		rb.count++
	}
}

// Len returns the number of buffered events.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Snapshot returns buffered events, oldest first.
func (rb *RingBuffer) Snapshot() []Event {
	return rb.Last(0)
}

// Last returns the newest n events, oldest first. n <= 0 returns all.
func (rb *RingBuffer) Last(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	out := make([]Event, n)
	first := rb.next - n
	if first < 0 {
		first += len(rb.slots)
	}
	for i := range out {
		out[i] = rb.slots[(first+i)%len(rb.slots)]
	}
	return out
}

func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	clear(rb.slots)
	rb.next = 0
	rb.count = 0
}
