package wa

import "strings"

// MessageKey addresses one message within a conversation.
type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	ID          string `json:"id"`
	FromMe      bool   `json:"fromMe"`
	Participant string `json:"participant,omitempty"`
}

// ContextInfo carries reply metadata, including the quoted participant.
type ContextInfo struct {
	Participant string `json:"participant,omitempty"`
}

// TextContent is an extended (formatted/reply) text message.
type TextContent struct {
	Text        string       `json:"text,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

// MediaContent is any captioned media (image, video, document).
type MediaContent struct {
	Caption string `json:"caption,omitempty"`
}

// ButtonsContent is an interactive buttons message.
type ButtonsContent struct {
	ContentText string `json:"contentText,omitempty"`
}

// ListReplyContent is the reply to a list prompt.
type ListReplyContent struct {
	Title string `json:"title,omitempty"`
}

// TemplateReplyContent is a template button reply.
type TemplateReplyContent struct {
	SelectedID string `json:"selectedId,omitempty"`
}

// InteractiveReplyContent is a native-flow interactive reply.
type InteractiveReplyContent struct {
	Body *struct {
		Text string `json:"text,omitempty"`
	} `json:"body,omitempty"`
}

// MessageContent is the shape-polymorphic message payload: exactly the known
// variants, each with its own extractor, tried in a fixed priority order.
type MessageContent struct {
	Conversation  string                   `json:"conversation,omitempty"`
	ExtendedText  *TextContent             `json:"extendedTextMessage,omitempty"`
	Image         *MediaContent            `json:"imageMessage,omitempty"`
	Video         *MediaContent            `json:"videoMessage,omitempty"`
	Document      *MediaContent            `json:"documentMessage,omitempty"`
	Buttons       *ButtonsContent          `json:"buttonsMessage,omitempty"`
	ListReply     *ListReplyContent        `json:"listResponseMessage,omitempty"`
	TemplateReply *TemplateReplyContent    `json:"templateButtonReplyMessage,omitempty"`
	Interactive   *InteractiveReplyContent `json:"interactiveResponseMessage,omitempty"`
	Ephemeral     *EphemeralContent        `json:"ephemeralMessage,omitempty"`
}

// EphemeralContent wraps a disappearing message.
type EphemeralContent struct {
	Message *MessageContent `json:"message,omitempty"`
}

// MessageEvent is one inbound message as delivered by the bridge.
type MessageEvent struct {
	Key         MessageKey      `json:"key"`
	Participant string          `json:"participant,omitempty"`
	Message     *MessageContent `json:"message,omitempty"`
}

// extractors, one per content variant, in fallback priority order. The first
// non-empty result wins.
var extractors = []func(*MessageContent) string{
	func(m *MessageContent) string { return m.Conversation },
	func(m *MessageContent) string {
		if m.ExtendedText != nil {
			return m.ExtendedText.Text
		}
		return ""
	},
	func(m *MessageContent) string {
		if m.Image != nil {
			return m.Image.Caption
		}
		return ""
	},
	func(m *MessageContent) string {
		if m.Video != nil {
			return m.Video.Caption
		}
		return ""
	},
	func(m *MessageContent) string {
		if m.Document != nil {
			return m.Document.Caption
		}
		return ""
	},
	func(m *MessageContent) string {
		if m.Buttons != nil {
			return m.Buttons.ContentText
		}
		return ""
	},
	func(m *MessageContent) string {
		if m.ListReply != nil {
			return m.ListReply.Title
		}
		return ""
	},
	func(m *MessageContent) string {
		if m.TemplateReply != nil {
			return m.TemplateReply.SelectedID
		}
		return ""
	},
	func(m *MessageContent) string {
		if m.Interactive != nil && m.Interactive.Body != nil {
			return m.Interactive.Body.Text
		}
		return ""
	},
}

// Text returns the readable text of the message with whitespace collapsed,
// trying each known content shape in order. Empty when no shape yields text.
func (e *MessageEvent) Text() string {
	if e.Message == nil {
		return ""
	}
	for _, extract := range extractors {
		if t := extract(e.Message); t != "" {
			return strings.Join(strings.Fields(t), " ")
		}
	}
	return ""
}

// SenderJID resolves the sender reference, trying the known payload paths in
// order: message key, top-level participant, reply context, ephemeral
// wrapper's reply context. Empty when the sender is unresolvable.
func (e *MessageEvent) SenderJID() string {
	if e.Key.Participant != "" {
		return e.Key.Participant
	}
	if e.Participant != "" {
		return e.Participant
	}
	if m := e.Message; m != nil {
		if m.ExtendedText != nil && m.ExtendedText.ContextInfo != nil &&
			m.ExtendedText.ContextInfo.Participant != "" {
			return m.ExtendedText.ContextInfo.Participant
		}
		if m.Ephemeral != nil && m.Ephemeral.Message != nil {
			if et := m.Ephemeral.Message.ExtendedText; et != nil && et.ContextInfo != nil {
				return et.ContextInfo.Participant
			}
		}
	}
	return ""
}
