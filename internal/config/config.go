// Package config defines the agent configuration, loaded once at startup
// from a JSON5 file with environment variable overlays.
package config

import (
	"strings"

	"github.com/nextlevelbuilder/wareact/internal/jid"
)

// SenderPolicy names the sender-filtering behavior variant.
type SenderPolicy string

const (
	// SenderPolicyAllow keeps only the allow-by-JID whitelist step.
	SenderPolicyAllow SenderPolicy = "allow"
	// SenderPolicyLists evaluates block-by-jid, then block-by-number, then
	// allow-by-jid-or-number, each as its own short-circuit step.
	SenderPolicyLists SenderPolicy = "lists"
)

// Config is the root configuration. Immutable after Load; the group roster
// is the only piece refreshable at runtime.
type Config struct {
	Bridge   BridgeConfig   `json:"bridge"`
	Reaction ReactionConfig `json:"reaction"`
	Filters  FiltersConfig  `json:"filters"`
	Ledger   LedgerConfig   `json:"ledger"`
	HTTP     HTTPConfig     `json:"http"`
	LogLevel string         `json:"log_level"`
}

// BridgeConfig points at the external WhatsApp bridge and the directory it
// should persist session credentials to.
type BridgeConfig struct {
	URL        string `json:"url"`
	SessionDir string `json:"session_dir"`
}

// ReactionConfig controls the emitted reaction and its pacing.
type ReactionConfig struct {
	Emoji      string `json:"emoji"`
	MinDelayMS int    `json:"min_delay_ms"`
	MaxDelayMS int    `json:"max_delay_ms"`
	// AutoPause drops the listening flag right after a successful reaction,
	// so the agent reacts at most once per enable.
	AutoPause bool `json:"auto_pause"`
}

// FiltersConfig holds the admission policy for inbound messages.
type FiltersConfig struct {
	// Groups are name fragments matched case/diacritic-insensitively as
	// substrings of group subjects. Anything after '#' in a fragment is a
	// comment.
	Groups []string `json:"groups"`

	SenderPolicy   SenderPolicy `json:"sender_policy"`
	UseAllowedJIDs bool         `json:"use_allowed_jids"`
	AllowedJIDs    []string     `json:"allowed_jids"`

	// Lists policy only.
	BlockedJIDs    []string `json:"blocked_jids"`
	BlockedNumbers []string `json:"blocked_numbers"`
	AllowedNumbers []string `json:"allowed_numbers"`

	MinMessageChars int `json:"min_message_chars"`
}

// LedgerConfig tunes the dedup ledger janitor.
type LedgerConfig struct {
	// EvictionSchedule is a cron expression; eviction runs when it is due.
	EvictionSchedule string `json:"eviction_schedule"`
}

// HTTPConfig configures the control surface.
type HTTPConfig struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"token"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			SessionDir: "./sessions",
		},
		Reaction: ReactionConfig{
			Emoji:      "👾",
			MinDelayMS: 100,
			MaxDelayMS: 1000,
		},
		Filters: FiltersConfig{
			SenderPolicy: SenderPolicyAllow,
		},
		Ledger: LedgerConfig{
			EvictionSchedule: "* * * * *",
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		LogLevel: "info",
	}
}

// GroupFragments returns the configured group-name fragments folded for
// insensitive matching, with comments and empties dropped. Order is
// preserved.
func (c *Config) GroupFragments() []string {
	out := make([]string, 0, len(c.Filters.Groups))
	for _, g := range c.Filters.Groups {
		if i := strings.IndexByte(g, '#'); i >= 0 {
			g = g[:i]
		}
		if folded := jid.Fold(g); folded != "" {
			out = append(out, folded)
		}
	}
	return out
}
