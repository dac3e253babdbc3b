// Package reactor is the message admission and reaction pipeline. It fans
// inbound batches out to concurrent, isolated evaluations, runs each through
// the filter chain, performs the atomic dedup check-and-mark, and dispatches
// a single paced emoji reaction per qualifying message.
package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/wareact/internal/config"
	"github.com/nextlevelbuilder/wareact/internal/filter"
	"github.com/nextlevelbuilder/wareact/internal/jid"
	"github.com/nextlevelbuilder/wareact/internal/ledger"
	"github.com/nextlevelbuilder/wareact/internal/roster"
	"github.com/nextlevelbuilder/wareact/internal/wa"
)

// batchTagNotify marks live batches; history/backfill batches are ignored.
const batchTagNotify = "notify"

// QRTTL is how long a pairing QR stays servable after the bridge sent it.
const QRTTL = 120 * time.Second

// Transport is the subset of the bridge client the pipeline needs.
type Transport interface {
	roster.Lister
	SendReaction(ctx context.Context, conversation, messageID, emoji string) error
}

// Reactor owns the shared mutable state (listening flag, roster, ledger,
// recent-senders log) and coordinates evaluations. Implements wa.Handler.
type Reactor struct {
	cfg       *config.Config
	transport Transport

	listening atomic.Bool
	roster    *roster.Cache
	ledger    *ledger.Ledger
	recent    *filter.RecentLog
	chain     *filter.Chain

	qrMu     sync.Mutex
	lastQR   string
	lastQRAt time.Time

	connState atomic.Value // wa.State

	janitorCtx  context.Context
	janitorOnce sync.Once

	fatal chan error
}

// New builds the pipeline around a transport. ctx bounds background work
// (the ledger janitor).
func New(ctx context.Context, cfg *config.Config, transport Transport) *Reactor {
	r := &Reactor{
		cfg:        cfg,
		transport:  transport,
		roster:     roster.New(cfg.GroupFragments()),
		ledger:     ledger.New(ledger.DefaultHighWater, ledger.DefaultLowWater),
		recent:     filter.NewRecentLog(),
		janitorCtx: ctx,
		fatal:      make(chan error, 1),
	}
	r.listening.Store(true)
	r.connState.Store(wa.StateDisconnected)
	r.chain = filter.New(cfg.Filters, r.roster, r.Listening, r.recent)
	return r
}

// SetTransport installs the bridge client. The reactor and the client
// reference each other, so one of them has to be wired after construction;
// call this before the transport starts delivering events.
func (r *Reactor) SetTransport(t Transport) { r.transport = t }

// Listening reports the process-wide listening flag.
func (r *Reactor) Listening() bool { return r.listening.Load() }

// SetListening toggles the listening flag. In-flight evaluations are not
// canceled; a disable mid-delay does not abort that reaction.
func (r *Reactor) SetListening(enabled bool) {
	r.listening.Store(enabled)
	slog.Info("listening flag set", "enabled", enabled)
}

// Fatal delivers the single unrecoverable error (authoritative logout).
func (r *Reactor) Fatal() <-chan error { return r.fatal }

// RefreshRoster rebuilds the tracked-group set from the bridge.
func (r *Reactor) RefreshRoster(ctx context.Context) error {
	return r.roster.Refresh(ctx, r.transport)
}

// Recent returns the recent-senders window, most recent first.
func (r *Reactor) Recent() []filter.RecentEntry { return r.recent.Entries() }

// OnConnectionState consumes lifecycle changes from the bridge.
func (r *Reactor) OnConnectionState(state wa.State, cause string) {
	r.connState.Store(state)

	switch state {
	case wa.StateConnected:
		slog.Info("connected")
		ctx, cancel := context.WithTimeout(r.janitorCtx, 30*time.Second)
		defer cancel()
		if err := r.RefreshRoster(ctx); err == nil {
			slog.Info("tracked groups", "subjects", r.roster.TrackedSubjects())
		}
		r.janitorOnce.Do(func() {
			go r.ledger.Janitor(r.janitorCtx, r.cfg.Ledger.EvictionSchedule)
		})
	case wa.StateLoggedOut:
		select {
		case r.fatal <- fmt.Errorf("session logged out (%s): remove %s and relink the device", cause, r.cfg.Bridge.SessionDir):
		default:
		}
	case wa.StateDisconnected:
		slog.Warn("disconnected", "cause", cause)
	}
}

// OnQR stores the latest pairing QR for the control surface.
func (r *Reactor) OnQR(qr string) {
	r.qrMu.Lock()
	r.lastQR = qr
	r.lastQRAt = time.Now()
	r.qrMu.Unlock()
	slog.Info("pairing QR received; open /qr to scan it")
}

// QR returns the last QR string and when it arrived.
func (r *Reactor) QR() (string, time.Time) {
	r.qrMu.Lock()
	defer r.qrMu.Unlock()
	return r.lastQR, r.lastQRAt
}

// OnMessages handles one inbound batch: every event is evaluated on its own
// goroutine, failures stay isolated, and the call returns once all
// evaluations have settled.
func (r *Reactor) OnMessages(ctx context.Context, tag string, events []wa.MessageEvent) {
	if tag != batchTagNotify || len(events) == 0 {
		return
	}

	var g errgroup.Group
	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					slog.Error("message evaluation panicked", "panic", p,
						"conversation", ev.Key.RemoteJID, "message_id", ev.Key.ID)
				}
			}()
			r.process(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()
}

// process runs one evaluation end to end. Errors are logged and swallowed;
// nothing propagates to sibling evaluations.
func (r *Reactor) process(ctx context.Context, ev wa.MessageEvent) {
	if ev.Key.RemoteJID == "" || ev.Key.ID == "" || ev.Key.FromMe {
		return
	}

	conversation := jid.Normalize(ev.Key.RemoteJID)
	fev := filter.Event{
		Conversation: conversation,
		Sender:       jid.Normalize(ev.SenderJID()),
		GroupSubject: r.roster.Subject(conversation),
		Text:         ev.Text(),
	}

	decision := r.chain.Evaluate(fev)
	if !decision.Admit {
		slog.Debug("message rejected", "reason", decision.Reason,
			"conversation", conversation, "sender", fev.Sender)
		return
	}

	slog.Info("message admitted",
		"sender", "+"+jid.PhoneFromJID(fev.Sender),
		"group", fev.GroupSubject,
		"preview", jid.Preview(fev.Text, jid.DefaultPreviewLen))

	// Mark before the pacing delay. A mark that never turns into a reaction
	// (send failure) is accepted; a double reaction is not.
	if !r.ledger.CheckAndMark(ledger.Key(conversation, ev.Key.ID)) {
		return
	}

	r.dispatch(ctx, conversation, ev.Key.ID)
}
