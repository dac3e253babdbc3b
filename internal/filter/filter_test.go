package filter

import (
	"fmt"
	"testing"

	"github.com/nextlevelbuilder/wareact/internal/config"
)

type fakeRoster map[string]bool

func (f fakeRoster) Tracked(id string) bool { return f[id] }

func alwaysListening() bool { return true }

func testChain(cfg config.FiltersConfig, roster fakeRoster, listening func() bool, recent *RecentLog) *Chain {
	if listening == nil {
		listening = alwaysListening
	}
	return New(cfg, roster, listening, recent)
}

func TestGateOrder(t *testing.T) {
	roster := fakeRoster{"tracked@g.us": true}
	cfg := config.FiltersConfig{
		SenderPolicy:    config.SenderPolicyAllow,
		MinMessageChars: 5,
	}

	tests := []struct {
		name       string
		listening  bool
		ev         Event
		wantReason string
	}{
		{
			name:       "paused beats everything",
			listening:  false,
			ev:         Event{Conversation: "other@g.us", Text: "hi"},
			wantReason: ReasonPaused,
		},
		{
			// Untracked group with a too-short message must reject as
			// untracked_group, never too_short.
			name:       "untracked beats too_short",
			listening:  true,
			ev:         Event{Conversation: "other@g.us", Sender: "a@s.whatsapp.net", Text: "hi"},
			wantReason: ReasonUntrackedGroup,
		},
		{
			name:       "no sender beats too_short",
			listening:  true,
			ev:         Event{Conversation: "tracked@g.us", Text: "hi"},
			wantReason: ReasonNoSender,
		},
		{
			name:       "too short",
			listening:  true,
			ev:         Event{Conversation: "tracked@g.us", Sender: "a@s.whatsapp.net", Text: "hi"},
			wantReason: ReasonTooShort,
		},
		{
			name:      "admitted",
			listening: true,
			ev:        Event{Conversation: "tracked@g.us", Sender: "a@s.whatsapp.net", Text: "hello there"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listening := tt.listening
			chain := testChain(cfg, roster, func() bool { return listening }, nil)
			d := chain.Evaluate(tt.ev)
			if tt.wantReason == "" {
				if !d.Admit {
					t.Fatalf("want admit, got reject(%s)", d.Reason)
				}
				return
			}
			if d.Admit || d.Reason != tt.wantReason {
				t.Errorf("got (%v, %s), want reject(%s)", d.Admit, d.Reason, tt.wantReason)
			}
		})
	}
}

func TestAllowPolicy(t *testing.T) {
	roster := fakeRoster{"g@g.us": true}

	t.Run("inactive list admits all", func(t *testing.T) {
		cfg := config.FiltersConfig{
			SenderPolicy: config.SenderPolicyAllow,
			AllowedJIDs:  []string{"vip@s.whatsapp.net"},
		}
		chain := testChain(cfg, roster, nil, nil)
		d := chain.Evaluate(Event{Conversation: "g@g.us", Sender: "nobody@s.whatsapp.net", Text: "hello"})
		if !d.Admit {
			t.Errorf("inactive allow list should admit, got %s", d.Reason)
		}
	})

	t.Run("active list rejects absent sender", func(t *testing.T) {
		cfg := config.FiltersConfig{
			SenderPolicy:   config.SenderPolicyAllow,
			UseAllowedJIDs: true,
			AllowedJIDs:    []string{"vip@s.whatsapp.net"},
		}
		chain := testChain(cfg, roster, nil, nil)
		d := chain.Evaluate(Event{Conversation: "g@g.us", Sender: "nobody@s.whatsapp.net", Text: "hello"})
		if d.Admit || d.Reason != ReasonSenderNotAllowed {
			t.Errorf("got (%v, %s)", d.Admit, d.Reason)
		}
	})

	t.Run("allow entry matches across device suffix", func(t *testing.T) {
		cfg := config.FiltersConfig{
			SenderPolicy:   config.SenderPolicyAllow,
			UseAllowedJIDs: true,
			AllowedJIDs:    []string{"VIP:9@whatsapp.net"},
		}
		chain := testChain(cfg, roster, nil, nil)
		d := chain.Evaluate(Event{Conversation: "g@g.us", Sender: "vip@s.whatsapp.net", Text: "hello"})
		if !d.Admit {
			t.Errorf("normalized allow entry should match, got %s", d.Reason)
		}
	})
}

func TestListsPolicyPriority(t *testing.T) {
	roster := fakeRoster{"g@g.us": true}
	cfg := config.FiltersConfig{
		SenderPolicy:   config.SenderPolicyLists,
		BlockedJIDs:    []string{"banned@s.whatsapp.net"},
		BlockedNumbers: []string{"555000111"},
		AllowedJIDs:    []string{"banned@s.whatsapp.net", "vip@s.whatsapp.net"},
		AllowedNumbers: []string{"555222333"},
	}
	chain := testChain(cfg, roster, nil, nil)

	tests := []struct {
		name       string
		sender     string
		wantAdmit  bool
		wantReason string
	}{
		{"block by jid wins over allow", "banned@s.whatsapp.net", false, ReasonSenderBlocked},
		{"block by number", "555000111@s.whatsapp.net", false, ReasonSenderBlocked},
		{"allow by jid", "vip@s.whatsapp.net", true, ""},
		{"allow by number", "555222333@s.whatsapp.net", true, ""},
		{"absent from all lists", "stranger@s.whatsapp.net", false, ReasonSenderNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := chain.Evaluate(Event{Conversation: "g@g.us", Sender: tt.sender, Text: "hello"})
			if d.Admit != tt.wantAdmit || d.Reason != tt.wantReason {
				t.Errorf("got (%v, %s), want (%v, %s)", d.Admit, d.Reason, tt.wantAdmit, tt.wantReason)
			}
		})
	}
}

func TestListsPolicyNoAllowEntriesAdmitsAll(t *testing.T) {
	roster := fakeRoster{"g@g.us": true}
	cfg := config.FiltersConfig{
		SenderPolicy: config.SenderPolicyLists,
		BlockedJIDs:  []string{"banned@s.whatsapp.net"},
	}
	chain := testChain(cfg, roster, nil, nil)
	d := chain.Evaluate(Event{Conversation: "g@g.us", Sender: "anyone@s.whatsapp.net", Text: "hello"})
	if !d.Admit {
		t.Errorf("no allow entries should admit non-blocked senders, got %s", d.Reason)
	}
}

func TestRecentRecordedBeforeLengthGate(t *testing.T) {
	roster := fakeRoster{"g@g.us": true}
	cfg := config.FiltersConfig{
		SenderPolicy:    config.SenderPolicyAllow,
		MinMessageChars: 100,
	}
	recent := NewRecentLog()
	chain := testChain(cfg, roster, nil, recent)

	d := chain.Evaluate(Event{
		Conversation: "g@g.us",
		Sender:       "a@s.whatsapp.net",
		GroupSubject: "Team Chat",
		Text:         "short",
	})
	if d.Admit || d.Reason != ReasonTooShort {
		t.Fatalf("got (%v, %s)", d.Admit, d.Reason)
	}

	entries := recent.Entries()
	if len(entries) != 1 {
		t.Fatalf("recent log should have the rejected message, got %d entries", len(entries))
	}
	if entries[0].Text != "short" || entries[0].Group != "Team Chat" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestRecentNotRecordedForUntrackedGroup(t *testing.T) {
	recent := NewRecentLog()
	chain := testChain(config.FiltersConfig{}, fakeRoster{}, nil, recent)

	chain.Evaluate(Event{Conversation: "x@g.us", Sender: "a@s.whatsapp.net", Text: "hello"})
	if recent.Len() != 0 {
		t.Error("untracked-group rejections should not reach the recent log")
	}
}

func TestRecentLogWindow(t *testing.T) {
	l := NewRecentLog()
	for i := 0; i < RecentLogSize+10; i++ {
		l.Remember("a@s.whatsapp.net", "g", fmt.Sprintf("msg %d", i))
	}
	entries := l.Entries()
	if len(entries) != RecentLogSize {
		t.Fatalf("window size = %d, want %d", len(entries), RecentLogSize)
	}
	if entries[0].Text != fmt.Sprintf("msg %d", RecentLogSize+9) {
		t.Errorf("most recent first, got %q", entries[0].Text)
	}
}
