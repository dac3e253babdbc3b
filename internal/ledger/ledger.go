// Package ledger tracks which (conversation, message) pairs have already
// been reacted to. It is a bounded in-memory record: once size passes the
// high-water mark the oldest entries are discarded down to the low-water
// mark. Forgetting very old entries is an accepted false-negative risk; the
// ledger never reports a false positive.
package ledger

import "sync"

const (
	// DefaultHighWater is the size at which eviction kicks in.
	DefaultHighWater = 10000
	// DefaultLowWater is the size eviction trims down to, keeping the
	// most-recently-inserted entries.
	DefaultLowWater = 5000
)

// Key builds the composite dedup key for a message within a conversation.
func Key(conversation, messageID string) string {
	return conversation + "::" + messageID
}

// Ledger is safe for concurrent use. Check-and-mark is a single atomic step:
// two concurrent deliveries of the same message cannot both be admitted.
type Ledger struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string // insertion order, oldest first
	high  int
	low   int
}

// New creates a ledger with the given water marks. Non-positive or inverted
// marks fall back to the defaults.
func New(high, low int) *Ledger {
	if high <= 0 || low <= 0 || low > high {
		high, low = DefaultHighWater, DefaultLowWater
	}
	return &Ledger{
		seen: make(map[string]struct{}),
		high: high,
		low:  low,
	}
}

// CheckAndMark admits a key exactly once: it returns true and records the
// key only if the key was absent. The caller must mark before any pacing
// delay so concurrent duplicates cannot slip through the delay window.
func (l *Ledger) CheckAndMark(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[key]; dup {
		return false
	}
	l.seen[key] = struct{}{}
	l.order = append(l.order, key)
	return true
}

// Seen reports whether a key has been marked, without marking it.
func (l *Ledger) Seen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

// Evict trims the ledger to the low-water mark once it exceeds the
// high-water mark, discarding the oldest entries first. It returns the
// number of entries removed. Not part of the per-message hot path; the
// janitor calls it on a schedule.
func (l *Ledger) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.order) <= l.high {
		return 0
	}
	cut := len(l.order) - l.low
	for _, k := range l.order[:cut] {
		delete(l.seen, k)
	}
	l.order = append(l.order[:0:0], l.order[cut:]...)
	return cut
}

// Size returns the current number of marked keys.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
