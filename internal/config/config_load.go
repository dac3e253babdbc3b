package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars and corrects
// invalid values. A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}
	envList := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			*dst = out
		}
	}

	envStr("WAREACT_BRIDGE_URL", &c.Bridge.URL)
	envStr("WAREACT_SESSION_DIR", &c.Bridge.SessionDir)

	envStr("WAREACT_EMOJI", &c.Reaction.Emoji)
	envInt("WAREACT_MIN_DELAY_MS", &c.Reaction.MinDelayMS)
	envInt("WAREACT_MAX_DELAY_MS", &c.Reaction.MaxDelayMS)
	envBool("WAREACT_AUTO_PAUSE", &c.Reaction.AutoPause)

	envList("WAREACT_GROUPS", &c.Filters.Groups)
	envBool("WAREACT_USE_ALLOWED_JIDS", &c.Filters.UseAllowedJIDs)
	envList("WAREACT_ALLOWED_JIDS", &c.Filters.AllowedJIDs)
	envList("WAREACT_BLOCKED_JIDS", &c.Filters.BlockedJIDs)
	envList("WAREACT_BLOCKED_NUMBERS", &c.Filters.BlockedNumbers)
	envList("WAREACT_ALLOWED_NUMBERS", &c.Filters.AllowedNumbers)
	envInt("WAREACT_MIN_MSG_CHARS", &c.Filters.MinMessageChars)
	if v := os.Getenv("WAREACT_SENDER_POLICY"); v != "" {
		c.Filters.SenderPolicy = SenderPolicy(v)
	}

	envStr("WAREACT_HOST", &c.HTTP.Host)
	envInt("WAREACT_PORT", &c.HTTP.Port)
	envStr("WAREACT_API_TOKEN", &c.HTTP.Token)

	envStr("WAREACT_LOG_LEVEL", &c.LogLevel)
}

// normalize auto-corrects misconfigured values instead of failing:
// delay bounds must satisfy 0 <= min <= max, thresholds must be >= 0, and
// an unknown sender policy falls back to allow-only.
func (c *Config) normalize() {
	if c.Reaction.MinDelayMS < 0 {
		slog.Warn("min_delay_ms below zero, corrected", "was", c.Reaction.MinDelayMS)
		c.Reaction.MinDelayMS = 0
	}
	if c.Reaction.MaxDelayMS < c.Reaction.MinDelayMS {
		slog.Warn("max_delay_ms below min_delay_ms, corrected",
			"was", c.Reaction.MaxDelayMS, "now", c.Reaction.MinDelayMS)
		c.Reaction.MaxDelayMS = c.Reaction.MinDelayMS
	}
	if c.Filters.MinMessageChars < 0 {
		c.Filters.MinMessageChars = 0
	}
	switch c.Filters.SenderPolicy {
	case SenderPolicyAllow, SenderPolicyLists:
	default:
		slog.Warn("unknown sender_policy, falling back to allow",
			"was", string(c.Filters.SenderPolicy))
		c.Filters.SenderPolicy = SenderPolicyAllow
	}
	if c.Ledger.EvictionSchedule == "" {
		c.Ledger.EvictionSchedule = "* * * * *"
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 3000
	}
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
