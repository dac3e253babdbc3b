// Package filter implements the ordered admission chain for inbound group
// messages. Gates run in a fixed order and short-circuit on the first
// rejection, so a message in an untracked group is rejected as
// untracked_group even when it is also too short.
package filter

import (
	"unicode/utf8"

	"github.com/nextlevelbuilder/wareact/internal/config"
	"github.com/nextlevelbuilder/wareact/internal/jid"
)

// Rejection reasons, in gate order.
const (
	ReasonPaused           = "paused"
	ReasonUntrackedGroup   = "untracked_group"
	ReasonNoSender         = "no_sender"
	ReasonTooShort         = "too_short"
	ReasonSenderNotAllowed = "sender_not_allowed"
	ReasonSenderBlocked    = "sender_blocked"
)

// Event is one inbound message reduced to what the chain needs. All
// identities are already normalized; Text has collapsed whitespace.
type Event struct {
	Conversation string
	Sender       string // "" when no sender could be resolved
	GroupSubject string
	Text         string
}

// Decision is the chain verdict. Reason is empty on admission.
type Decision struct {
	Admit  bool
	Reason string
}

func admit() Decision          { return Decision{Admit: true} }
func reject(r string) Decision { return Decision{Reason: r} }

// Tracker answers whether a conversation is a tracked group.
type Tracker interface {
	Tracked(id string) bool
}

// Chain evaluates the admission policy. The recent-senders log is written
// between the sender gate and the length gate, so observability covers
// too-short messages as well.
type Chain struct {
	policy    policy
	roster    Tracker
	listening func() bool
	recent    *RecentLog
}

// New builds a chain from the filter configuration. listening reads the
// process-wide listening flag; recent may be nil.
func New(cfg config.FiltersConfig, roster Tracker, listening func() bool, recent *RecentLog) *Chain {
	return &Chain{
		policy:    buildPolicy(cfg),
		roster:    roster,
		listening: listening,
		recent:    recent,
	}
}

// Evaluate runs the gates in order: listening, tracked group, sender
// resolvable, length, sender allow/block.
func (c *Chain) Evaluate(ev Event) Decision {
	if !c.listening() {
		return reject(ReasonPaused)
	}
	if !c.roster.Tracked(ev.Conversation) {
		return reject(ReasonUntrackedGroup)
	}
	if ev.Sender == "" {
		return reject(ReasonNoSender)
	}

	// Recorded before the length gate on purpose: the admin panel should
	// show who wrote, even when the message does not qualify.
	if c.recent != nil {
		c.recent.Remember(ev.Sender, ev.GroupSubject, ev.Text)
	}

	if utf8.RuneCountInString(ev.Text) < c.policy.minChars {
		return reject(ReasonTooShort)
	}
	return c.policy.evaluateSender(ev.Sender)
}

// policy is the immutable sender-filtering state derived from config.
type policy struct {
	mode     config.SenderPolicy
	minChars int

	useAllowList bool
	allowedJIDs  map[string]struct{}

	blockedJIDs    map[string]struct{}
	blockedNumbers map[string]struct{}
	allowedNumbers map[string]struct{}
}

func buildPolicy(cfg config.FiltersConfig) policy {
	p := policy{
		mode:           cfg.SenderPolicy,
		minChars:       cfg.MinMessageChars,
		useAllowList:   cfg.UseAllowedJIDs,
		allowedJIDs:    jidSet(cfg.AllowedJIDs),
		blockedJIDs:    jidSet(cfg.BlockedJIDs),
		blockedNumbers: numberSet(cfg.BlockedNumbers),
		allowedNumbers: numberSet(cfg.AllowedNumbers),
	}
	return p
}

func jidSet(raw []string) map[string]struct{} {
	out := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if n := jid.Normalize(r); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func numberSet(raw []string) map[string]struct{} {
	out := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if d := jid.Digits(r); d != "" {
			out[d] = struct{}{}
		}
	}
	return out
}

// evaluateSender applies the configured policy variant to a normalized,
// non-empty sender identity.
func (p policy) evaluateSender(sender string) Decision {
	switch p.mode {
	case config.SenderPolicyLists:
		return p.evaluateLists(sender)
	default:
		return p.evaluateAllowOnly(sender)
	}
}

// evaluateAllowOnly: whitelist only. An inactive list admits everyone; an
// empty identity never matches a non-empty allow entry.
func (p policy) evaluateAllowOnly(sender string) Decision {
	if !p.useAllowList {
		return admit()
	}
	if _, ok := p.allowedJIDs[sender]; ok {
		return admit()
	}
	return reject(ReasonSenderNotAllowed)
}

// evaluateLists: fixed priority — explicit block by identity, explicit block
// by number, then allow by identity or number. With no allow entries at all
// the allow step admits everyone.
func (p policy) evaluateLists(sender string) Decision {
	if _, ok := p.blockedJIDs[sender]; ok {
		return reject(ReasonSenderBlocked)
	}
	phone := jid.PhoneFromJID(sender)
	if phone != "" {
		if _, ok := p.blockedNumbers[phone]; ok {
			return reject(ReasonSenderBlocked)
		}
	}
	if len(p.allowedJIDs) == 0 && len(p.allowedNumbers) == 0 {
		return admit()
	}
	if _, ok := p.allowedJIDs[sender]; ok {
		return admit()
	}
	if phone != "" {
		if _, ok := p.allowedNumbers[phone]; ok {
			return admit()
		}
	}
	return reject(ReasonSenderNotAllowed)
}
