// Package wa talks to a WhatsApp bridge over a WebSocket. The bridge (a
// Baileys-based sidecar) owns the actual WhatsApp protocol and credential
// persistence; this client exchanges JSON frames with it: pushed events
// (connection state, QR codes, message batches) and correlated
// request/response pairs (send reaction, list groups, pairing code).
package wa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/wareact/internal/jid"
	"github.com/nextlevelbuilder/wareact/internal/roster"
)

// State is the connection lifecycle state reported by the bridge.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	// StateLoggedOut is terminal: the session was closed on the phone and
	// reconnecting is pointless until the user relinks the device.
	StateLoggedOut State = "logged_out"
)

// CauseLoggedOut is the disconnect cause that ends the retry loop.
const CauseLoggedOut = "logged_out"

// ErrNotConnected is returned when a request is attempted while the bridge
// link is down.
var ErrNotConnected = errors.New("bridge not connected")

// Handler consumes bridge events. Callbacks run on the client's listen
// goroutine; OnMessages is expected to fan out internally.
type Handler interface {
	OnConnectionState(state State, cause string)
	OnQR(qr string)
	OnMessages(ctx context.Context, tag string, events []MessageEvent)
}

const (
	handshakeTimeout = 10 * time.Second
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
)

// Client is the bridge WebSocket client with automatic reconnection.
type Client struct {
	url        string
	sessionDir string
	handler    Handler

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	loggedOut bool
	pending   map[string]chan Frame

	notifyMu    sync.Mutex
	notifyQueue []stateChange
	notifyWake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

type stateChange struct {
	state State
	cause string
}

// NewClient creates a bridge client. url is required.
func NewClient(url, sessionDir string, handler Handler) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("bridge url is required")
	}
	return &Client{
		url:        url,
		sessionDir: sessionDir,
		handler:    handler,
		state:      StateDisconnected,
		pending:    make(map[string]chan Frame),
		notifyWake: make(chan struct{}, 1),
	}, nil
}

// Start dials the bridge and begins listening. A failed initial dial is not
// fatal; the listen loop keeps retrying with capped exponential backoff.
func (c *Client) Start(ctx context.Context) error {
	slog.Info("starting bridge client", "url", c.url)
	c.ctx, c.cancel = context.WithCancel(ctx)

	go c.notifyLoop()

	if err := c.connect(); err != nil {
		slog.Warn("initial bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()
	return nil
}

// Stop closes the connection and stops the listen loop.
func (c *Client) Stop(_ context.Context) error {
	slog.Info("stopping bridge client")
	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected, "stopped")
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// connect establishes the WebSocket link and asks the bridge to bring up the
// WhatsApp session, pointing it at the credential directory.
func (c *Client) connect() error {
	c.mu.Lock()
	c.setStateLocked(StateConnecting, "")
	c.mu.Unlock()

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateDisconnected, "dial_failed")
		c.mu.Unlock()
		return fmt.Errorf("dial bridge %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	params, _ := json.Marshal(connectParams{SessionDir: c.sessionDir})
	hello := Frame{
		Type:   FrameTypeRequest,
		ID:     uuid.NewString(),
		Method: MethodConnect,
		Params: params,
	}
	if err := c.writeFrame(hello); err != nil {
		return fmt.Errorf("send connect request: %w", err)
	}

	slog.Info("bridge link established", "url", c.url)
	return nil
}

// listenLoop reads frames with automatic reconnection. It exits on context
// cancellation or an authoritative logout.
func (c *Client) listenLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		loggedOut := c.loggedOut
		c.mu.Unlock()

		if loggedOut {
			slog.Error("session logged out; relink the device and restart")
			return
		}

		if conn == nil {
			slog.Info("attempting bridge reconnect", "backoff", backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("bridge reconnect failed", "error", err)
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			backoff = initialBackoff
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("bridge read error, will reconnect", "error", err)
			c.dropConnection("bridge_link_lost")
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("invalid bridge frame", "error", err)
			continue
		}
		c.handleFrame(frame)
	}
}

// dropConnection closes the socket, fails all pending requests and reports a
// recoverable disconnect.
func (c *Client) dropConnection(cause string) {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.setStateLocked(StateDisconnected, cause)
	c.mu.Unlock()
}

func (c *Client) handleFrame(frame Frame) {
	switch frame.Type {
	case FrameTypeResponse:
		c.mu.Lock()
		ch, ok := c.pending[frame.ID]
		if ok {
			delete(c.pending, frame.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- frame
		}
	case FrameTypeEvent:
		c.handleEvent(frame)
	default:
		slog.Debug("unknown frame type from bridge", "type", frame.Type)
	}
}

func (c *Client) handleEvent(frame Frame) {
	switch frame.Event {
	case EventConnection:
		var p ConnectionPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			slog.Warn("invalid connection payload", "error", err)
			return
		}
		state := State(p.State)
		if state == StateLoggedOut || p.Cause == CauseLoggedOut {
			state = StateLoggedOut
		}
		c.mu.Lock()
		if state == StateLoggedOut {
			c.loggedOut = true
		}
		c.setStateLocked(state, p.Cause)
		c.mu.Unlock()

	case EventQR:
		var p QRPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.QR == "" {
			return
		}
		if c.handler != nil {
			c.handler.OnQR(p.QR)
		}

	case EventMessages:
		var p MessagesPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			slog.Warn("invalid messages payload", "error", err)
			return
		}
		if c.handler != nil {
			// Batches run off the listen goroutine: the handler blocks until
			// every evaluation settles, and reactions issued inside it need
			// this loop free to read their response frames.
			go c.handler.OnMessages(c.ctx, p.Tag, p.Messages)
		}

	default:
		slog.Debug("unknown bridge event", "event", frame.Event)
	}
}

// setStateLocked updates the state and queues a handler notification.
// Caller holds mu.
func (c *Client) setStateLocked(state State, cause string) {
	if c.state == state {
		return
	}
	c.state = state
	if c.handler == nil {
		return
	}
	c.notifyMu.Lock()
	c.notifyQueue = append(c.notifyQueue, stateChange{state: state, cause: cause})
	c.notifyMu.Unlock()
	select {
	case c.notifyWake <- struct{}{}:
	default:
	}
}

// notifyLoop delivers connection-state changes to the handler one at a time,
// in the order they happened. The callback may call back into the client, so
// it cannot run on the listen goroutine or under mu.
func (c *Client) notifyLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.notifyWake:
		}
		for {
			c.notifyMu.Lock()
			if len(c.notifyQueue) == 0 {
				c.notifyMu.Unlock()
				break
			}
			ch := c.notifyQueue[0]
			c.notifyQueue = c.notifyQueue[1:]
			c.notifyMu.Unlock()
			c.handler.OnConnectionState(ch.state, ch.cause)
		}
	}
}

func (c *Client) writeFrame(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// request sends a correlated request and waits for its response. No own
// timeout; cancellation comes from the caller's context.
func (c *Client) request(ctx context.Context, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s params: %w", method, err)
	}

	id := uuid.NewString()
	ch := make(chan Frame, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	frame := Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}
	if err := c.writeFrame(frame); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Frame{}, err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Frame{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return Frame{}, fmt.Errorf("%s: connection lost", method)
		}
		if !resp.OK {
			return Frame{}, fmt.Errorf("%s: bridge error: %s", method, resp.Error)
		}
		return resp, nil
	}
}

// SendReaction asks the bridge to react to a message with the given emoji.
func (c *Client) SendReaction(ctx context.Context, conversation, messageID, emoji string) error {
	_, err := c.request(ctx, MethodSendReact, reactionParams{
		Conversation: conversation,
		MessageID:    messageID,
		Emoji:        emoji,
	})
	return err
}

// ListGroups fetches all groups the account participates in.
func (c *Client) ListGroups(ctx context.Context) ([]roster.Group, error) {
	resp, err := c.request(ctx, MethodListGroups, struct{}{})
	if err != nil {
		return nil, err
	}
	var groups []roster.Group
	if err := json.Unmarshal(resp.Payload, &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	return groups, nil
}

// RequestPairingCode asks the bridge for a phone-number pairing code.
// phone must be E.164 digits; non-digits are stripped.
func (c *Client) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	num := jid.Digits(phone)
	if num == "" {
		return "", fmt.Errorf("phone number required")
	}
	resp, err := c.request(ctx, MethodPairingCode, pairingParams{Phone: num})
	if err != nil {
		return "", err
	}
	var result pairingResult
	if err := json.Unmarshal(resp.Payload, &result); err != nil {
		return "", fmt.Errorf("decode pairing code: %w", err)
	}
	return result.Code, nil
}
