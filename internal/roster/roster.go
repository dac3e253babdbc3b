// Package roster caches the set of tracked groups: those whose subject
// matches one of the configured name fragments. The roster is rebuilt
// wholesale on refresh and read concurrently by every in-flight evaluation.
package roster

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/wareact/internal/jid"
)

// Group is one group the agent participates in, as reported by the bridge.
type Group struct {
	JID     string `json:"jid"`
	Subject string `json:"subject"`
}

// Lister fetches the full list of participating groups.
type Lister interface {
	ListGroups(ctx context.Context) ([]Group, error)
}

// Cache holds the current roster. Safe for concurrent use; Refresh swaps the
// subject map and the tracked set atomically so readers never observe a
// half-updated roster.
type Cache struct {
	fragments []string // folded, matched as substrings of folded subjects

	mu       sync.RWMutex
	subjects map[string]string
	tracked  map[string]struct{}
}

// New creates an empty roster tracking groups whose subject contains one of
// the given folded fragments. With no fragments nothing is tracked.
func New(fragments []string) *Cache {
	return &Cache{
		fragments: fragments,
		subjects:  make(map[string]string),
		tracked:   make(map[string]struct{}),
	}
}

// Refresh rebuilds the roster from the lister. On error the previous roster
// stays intact; a failed refresh is logged, not fatal.
func (c *Cache) Refresh(ctx context.Context, lister Lister) error {
	groups, err := lister.ListGroups(ctx)
	if err != nil {
		slog.Warn("group roster refresh failed, keeping previous roster", "error", err)
		return err
	}

	subjects := make(map[string]string, len(groups))
	tracked := make(map[string]struct{})
	for _, g := range groups {
		id := jid.Normalize(g.JID)
		if id == "" {
			continue
		}
		subjects[id] = g.Subject
		if c.matches(g.Subject) {
			tracked[id] = struct{}{}
		}
	}

	c.mu.Lock()
	c.subjects = subjects
	c.tracked = tracked
	c.mu.Unlock()

	slog.Info("group roster refreshed",
		"groups", len(subjects), "tracked", len(tracked))
	return nil
}

func (c *Cache) matches(subject string) bool {
	if len(c.fragments) == 0 {
		return false
	}
	folded := jid.Fold(subject)
	for _, f := range c.fragments {
		if strings.Contains(folded, f) {
			return true
		}
	}
	return false
}

// Tracked reports whether a conversation identity is a tracked group.
func (c *Cache) Tracked(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tracked[id]
	return ok
}

// Subject returns the display name of a known group, or "" if unknown.
func (c *Cache) Subject(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subjects[id]
}

// TrackedCount returns the number of tracked groups.
func (c *Cache) TrackedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracked)
}

// TrackedSubjects returns the display names of the tracked groups.
func (c *Cache) TrackedSubjects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tracked))
	for id := range c.tracked {
		out = append(out, c.subjects[id])
	}
	return out
}
