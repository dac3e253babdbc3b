package wa

import "encoding/json"

// Frame types exchanged with the bridge over the WebSocket.
const (
	FrameTypeEvent    = "event"
	FrameTypeRequest  = "request"
	FrameTypeResponse = "response"
)

// Event names pushed by the bridge.
const (
	EventConnection = "connection"
	EventQR         = "qr"
	EventMessages   = "messages"
)

// Request methods served by the bridge.
const (
	MethodConnect     = "connect"
	MethodSendReact   = "send_reaction"
	MethodListGroups  = "list_groups"
	MethodPairingCode = "pairing_code"
)

// Frame is the single wire envelope. Events carry Event+Payload, requests
// carry ID+Method+Params, responses echo the ID with OK/Error/Payload.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ConnectionPayload reports a connection state change.
type ConnectionPayload struct {
	State string `json:"state"`
	Cause string `json:"cause,omitempty"`
}

// QRPayload delivers a fresh pairing QR string.
type QRPayload struct {
	QR string `json:"qr"`
}

// MessagesPayload is one inbound batch. Tag distinguishes live
// notifications ("notify") from history/backfill batches, which are ignored.
type MessagesPayload struct {
	Tag      string         `json:"tag"`
	Messages []MessageEvent `json:"messages"`
}

// connectParams asks the bridge to (re)connect, telling it where to persist
// session credentials.
type connectParams struct {
	SessionDir string `json:"session_dir"`
}

type reactionParams struct {
	Conversation string `json:"conversation"`
	MessageID    string `json:"message_id"`
	Emoji        string `json:"emoji"`
}

type pairingParams struct {
	Phone string `json:"phone"`
}

type pairingResult struct {
	Code string `json:"code"`
}
