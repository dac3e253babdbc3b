package reactor

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// pacingDelayMS draws an integer delay uniformly from [minMS, maxMS], both
// inclusive. Bounds arrive pre-corrected by config; an inverted pair still
// degrades to minMS rather than panicking.
func pacingDelayMS(minMS, maxMS int) int {
	if maxMS <= minMS {
		return minMS
	}
	return minMS + rand.Intn(maxMS-minMS+1)
}

// dispatch waits the randomized pacing delay, then emits the single
// reaction. Transport failures are logged and swallowed so they never abort
// sibling evaluations. With the auto-pause policy a successful reaction
// drops the listening flag.
func (r *Reactor) dispatch(ctx context.Context, conversation, messageID string) {
	delay := pacingDelayMS(r.cfg.Reaction.MinDelayMS, r.cfg.Reaction.MaxDelayMS)

	timer := time.NewTimer(time.Duration(delay) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := r.transport.SendReaction(ctx, conversation, messageID, r.cfg.Reaction.Emoji); err != nil {
		slog.Warn("reaction send failed", "conversation", conversation,
			"message_id", messageID, "error", err)
		return
	}

	slog.Info("reacted", "emoji", r.cfg.Reaction.Emoji,
		"conversation", conversation, "delay_ms", delay)

	if r.cfg.Reaction.AutoPause {
		r.SetListening(false)
		slog.Warn("listener paused after reaction (auto_pause)")
	}
}
