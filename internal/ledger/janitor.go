package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

const defaultSchedule = "* * * * *"

// Janitor runs Evict whenever the cron schedule is due, until the context is
// canceled. Eviction stays off the per-message hot path; the default
// schedule fires once a minute.
func (l *Ledger) Janitor(ctx context.Context, schedule string) {
	gron := gronx.New()
	if schedule == "" || !gron.IsValid(schedule) {
		slog.Warn("invalid eviction schedule, using default",
			"schedule", schedule, "default", defaultSchedule)
		schedule = defaultSchedule
	}

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	var lastRun time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			minute := now.Truncate(time.Minute)
			if minute.Equal(lastRun) {
				continue
			}
			due, err := gron.IsDue(schedule, now)
			if err != nil || !due {
				continue
			}
			lastRun = minute
			if removed := l.Evict(); removed > 0 {
				slog.Debug("ledger evicted", "removed", removed, "size", l.Size())
			}
		}
	}
}
