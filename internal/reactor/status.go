package reactor

import (
	"github.com/nextlevelbuilder/wareact/internal/config"
	"github.com/nextlevelbuilder/wareact/internal/wa"
)

// Status is the control-surface snapshot of the pipeline.
type Status struct {
	Listening        bool     `json:"listening"`
	Connection       string   `json:"connection"`
	GroupsConfigured []string `json:"groups_configured"`
	GroupsTracked    int      `json:"groups_tracked"`
	SenderPolicy     string   `json:"sender_policy"`
	AllowListActive  bool     `json:"allow_list_active"`
	AllowedJIDCount  int      `json:"allowed_jid_count"`
	MinMessageChars  int      `json:"min_message_chars"`
	LedgerSize       int      `json:"ledger_size"`
	Emoji            string   `json:"emoji"`
}

// Status returns a point-in-time snapshot of the pipeline state.
func (r *Reactor) Status() Status {
	allowActive := r.cfg.Filters.UseAllowedJIDs
	if r.cfg.Filters.SenderPolicy == config.SenderPolicyLists {
		allowActive = len(r.cfg.Filters.AllowedJIDs)+len(r.cfg.Filters.AllowedNumbers) > 0
	}
	return Status{
		Listening:        r.Listening(),
		Connection:       string(r.connState.Load().(wa.State)),
		GroupsConfigured: r.cfg.GroupFragments(),
		GroupsTracked:    r.roster.TrackedCount(),
		SenderPolicy:     string(r.cfg.Filters.SenderPolicy),
		AllowListActive:  allowActive,
		AllowedJIDCount:  len(r.cfg.Filters.AllowedJIDs),
		MinMessageChars:  r.cfg.Filters.MinMessageChars,
		LedgerSize:       r.ledger.Size(),
		Emoji:            r.cfg.Reaction.Emoji,
	}
}
