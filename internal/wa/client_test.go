package wa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/wareact/internal/roster"
)

type recordingHandler struct {
	mu      sync.Mutex
	states  []State
	qrs     []string
	batches []MessagesPayload
}

func (h *recordingHandler) OnConnectionState(state State, cause string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, state)
}

func (h *recordingHandler) OnQR(qr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.qrs = append(h.qrs, qr)
}

func (h *recordingHandler) OnMessages(_ context.Context, tag string, events []MessageEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches = append(h.batches, MessagesPayload{Tag: tag, Messages: events})
}

// fakeBridge upgrades one WebSocket connection and answers requests.
func fakeBridge(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req Frame
			if err := json.Unmarshal(data, &req); err != nil || req.Type != FrameTypeRequest {
				continue
			}

			resp := Frame{Type: FrameTypeResponse, ID: req.ID, OK: true}
			switch req.Method {
			case MethodConnect:
				// Acknowledge, then push lifecycle + data events.
				_ = conn.WriteJSON(resp)
				connected, _ := json.Marshal(ConnectionPayload{State: "connected"})
				_ = conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: EventConnection, Payload: connected})
				qr, _ := json.Marshal(QRPayload{QR: "test-qr-data"})
				_ = conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: EventQR, Payload: qr})
				continue
			case MethodListGroups:
				resp.Payload, _ = json.Marshal([]roster.Group{{JID: "111@g.us", Subject: "Team Chat"}})
			case MethodSendReact:
				var p reactionParams
				_ = json.Unmarshal(req.Params, &p)
				if p.Emoji == "" {
					resp.OK = false
					resp.Error = "emoji required"
				}
			case MethodPairingCode:
				resp.Payload, _ = json.Marshal(pairingResult{Code: "ABCD-EFGH"})
			}
			_ = conn.WriteJSON(resp)
		}
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestClientConnectAndEvents(t *testing.T) {
	srv, wsURL := fakeBridge(t)
	defer srv.Close()

	h := &recordingHandler{}
	c, err := NewClient(wsURL, t.TempDir(), h)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Stop(context.Background())

	waitFor(t, func() bool { return c.State() == StateConnected })
	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.qrs) > 0
	})

	h.mu.Lock()
	if h.qrs[0] != "test-qr-data" {
		t.Errorf("qr = %q", h.qrs[0])
	}
	h.mu.Unlock()
}

func TestClientRequests(t *testing.T) {
	srv, wsURL := fakeBridge(t)
	defer srv.Close()

	c, err := NewClient(wsURL, t.TempDir(), &recordingHandler{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Stop(context.Background())
	waitFor(t, func() bool { return c.State() == StateConnected })

	groups, err := c.ListGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Subject != "Team Chat" {
		t.Errorf("groups = %+v", groups)
	}

	if err := c.SendReaction(ctx, "111@g.us", "M1", "👾"); err != nil {
		t.Errorf("send reaction: %v", err)
	}
	if err := c.SendReaction(ctx, "111@g.us", "M1", ""); err == nil {
		t.Error("bridge error should propagate")
	}

	code, err := c.RequestPairingCode(ctx, "+1 (555) 123-4567")
	if err != nil {
		t.Fatal(err)
	}
	if code != "ABCD-EFGH" {
		t.Errorf("code = %q", code)
	}

	if _, err := c.RequestPairingCode(ctx, "no digits"); err == nil {
		t.Error("empty phone should be rejected locally")
	}
}

// reactingHandler reacts to every event from inside the batch callback, the
// way the pipeline does.
type reactingHandler struct {
	client *Client

	mu       sync.Mutex
	tags     []string
	sendErrs []error
}

func (h *reactingHandler) OnConnectionState(State, string) {}
func (h *reactingHandler) OnQR(string)                     {}

func (h *reactingHandler) OnMessages(ctx context.Context, tag string, events []MessageEvent) {
	for _, ev := range events {
		err := h.client.SendReaction(ctx, ev.Key.RemoteJID, ev.Key.ID, "👾")
		h.mu.Lock()
		h.sendErrs = append(h.sendErrs, err)
		h.mu.Unlock()
	}
	h.mu.Lock()
	h.tags = append(h.tags, tag)
	h.mu.Unlock()
}

// A reaction sent from inside a batch callback must get its response frame,
// and later batches must still be delivered.
func TestReactionInsideBatchKeepsClientLive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sentNext := false
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req Frame
			if err := json.Unmarshal(data, &req); err != nil || req.Type != FrameTypeRequest {
				continue
			}

			switch req.Method {
			case MethodConnect:
				_ = conn.WriteJSON(Frame{Type: FrameTypeResponse, ID: req.ID, OK: true})
				connected, _ := json.Marshal(ConnectionPayload{State: "connected"})
				_ = conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: EventConnection, Payload: connected})
				batch, _ := json.Marshal(MessagesPayload{Tag: "notify", Messages: []MessageEvent{
					{Key: MessageKey{RemoteJID: "111@g.us", ID: "M1"}},
				}})
				_ = conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: EventMessages, Payload: batch})
			case MethodSendReact:
				// Confirm the reaction, then deliver one follow-up batch.
				_ = conn.WriteJSON(Frame{Type: FrameTypeResponse, ID: req.ID, OK: true})
				if !sentNext {
					sentNext = true
					next, _ := json.Marshal(MessagesPayload{Tag: "notify", Messages: []MessageEvent{
						{Key: MessageKey{RemoteJID: "111@g.us", ID: "M2"}},
					}})
					_ = conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: EventMessages, Payload: next})
				}
			}
		}
	}))
	defer srv.Close()

	h := &reactingHandler{}
	c, err := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), t.TempDir(), h)
	if err != nil {
		t.Fatal(err)
	}
	h.client = c

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Stop(context.Background())

	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.tags) >= 2
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, err := range h.sendErrs {
		if err != nil {
			t.Errorf("reaction %d: %v", i, err)
		}
	}
}

// Rapid lifecycle transitions must reach the handler in the order the bridge
// reported them.
func TestStateChangeOrderPreserved(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, _, _ = conn.ReadMessage() // connect request
		for _, st := range []string{"connected", "disconnected", "connected", "disconnected"} {
			payload, _ := json.Marshal(ConnectionPayload{State: st})
			_ = conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: EventConnection, Payload: payload})
		}
		_, _, _ = conn.ReadMessage() // hold the link open
	}))
	defer srv.Close()

	h := &recordingHandler{}
	c, err := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), t.TempDir(), h)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Stop(context.Background())

	want := []State{StateConnecting, StateConnected, StateDisconnected, StateConnected, StateDisconnected}
	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.states) >= len(want)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, st := range want {
		if h.states[i] != st {
			t.Fatalf("states = %v, want prefix %v", h.states, want)
		}
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("", "", &recordingHandler{}); err == nil {
		t.Fatal("empty url should fail")
	}
}

func TestLoggedOutIsTerminal(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Whatever the client asks, report an authoritative logout.
		_, _, _ = conn.ReadMessage()
		payload, _ := json.Marshal(ConnectionPayload{State: "disconnected", Cause: CauseLoggedOut})
		_ = conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: EventConnection, Payload: payload})
		_, _, _ = conn.ReadMessage() // hold the link open
	}))
	defer srv.Close()

	h := &recordingHandler{}
	c, err := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), t.TempDir(), h)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Stop(context.Background())

	waitFor(t, func() bool { return c.State() == StateLoggedOut })
}
