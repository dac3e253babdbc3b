package filter

import (
	"sync"
	"time"

	"github.com/nextlevelbuilder/wareact/internal/jid"
)

// RecentLogSize is how many entries the recent-senders window keeps.
const RecentLogSize = 50

// RecentEntry is one observed sender, for the admin panel only; no
// correctness depends on this log.
type RecentEntry struct {
	JID   string    `json:"jid"`
	Group string    `json:"group"`
	Text  string    `json:"text"`
	TS    time.Time `json:"ts"`
}

// RecentLog is a rolling most-recent-first window of senders.
// Safe for concurrent use.
type RecentLog struct {
	mu      sync.Mutex
	entries []RecentEntry
}

// NewRecentLog creates an empty log.
func NewRecentLog() *RecentLog {
	return &RecentLog{}
}

// Remember prepends an entry, dropping the oldest past RecentLogSize.
// Text is stored as a preview (ellipsized past 80 runes).
func (l *RecentLog) Remember(senderJID, group, text string) {
	entry := RecentEntry{
		JID:   jid.Normalize(senderJID),
		Group: group,
		Text:  jid.Preview(text, jid.DefaultPreviewLen),
		TS:    time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]RecentEntry{entry}, l.entries...)
	if len(l.entries) > RecentLogSize {
		l.entries = l.entries[:RecentLogSize]
	}
}

// Entries returns a copy of the window, most recent first.
func (l *RecentLog) Entries() []RecentEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RecentEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the current window size.
func (l *RecentLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
