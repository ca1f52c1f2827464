package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientChat         MessageType = "client_chat"
	TypeClientControl      MessageType = "client_control"
	TypeAssistantTextDelta MessageType = "assistant_text_delta"
	TypeAssistantTurnEnd   MessageType = "assistant_turn_end"
	TypeSystemEvent        MessageType = "system_event"
	TypeErrorEvent         MessageType = "error_event"
)

// DoneSentinel terminates an SSE response stream.
const DoneSentinel = "[DONE]"

const maxMessageChars = 8000

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ChatMessage is one conversational turn sent by a client. Older
// clients send the text under "text" instead of "content".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m *ChatMessage) UnmarshalJSON(raw []byte) error {
	var aux struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	m.Role = aux.Role
	m.Content = aux.Content
	if m.Content == "" {
		m.Content = aux.Text
	}
	return nil
}

// ChatRequest is the inbound payload for a chat turn, shared by the
// HTTP and websocket surfaces.
type ChatRequest struct {
	ClientID string        `json:"client_id,omitempty"`
	Language string        `json:"language,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// Validate checks the request shape without touching any backend.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	last := r.Messages[len(r.Messages)-1]
	if strings.ToLower(strings.TrimSpace(last.Role)) != "user" {
		return errors.New("last message must have role user")
	}
	if strings.TrimSpace(last.Content) == "" {
		return errors.New("last message must not be empty")
	}
	for i, m := range r.Messages {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "user", "assistant", "system":
		default:
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
		if len(m.Content) > maxMessageChars {
			return fmt.Errorf("message %d exceeds %d characters", i, maxMessageChars)
		}
	}
	return nil
}

// LastUserText returns the trimmed text of the final user message.
func (r *ChatRequest) LastUserText() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Messages[len(r.Messages)-1].Content)
}

type ClientControl struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id,omitempty"`
	Action   string      `json:"action"`
}

type ClientChat struct {
	Type MessageType `json:"type"`
	ChatRequest
}

type AssistantTextDelta struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id"`
	TurnID   string      `json:"turn_id"`
	Content  string      `json:"content"`
}

type AssistantTurnEnd struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id"`
	TurnID   string      `json:"turn_id"`
	Reason   string      `json:"reason"`
	Skills   []string    `json:"skills,omitempty"`
}

type SystemEvent struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id,omitempty"`
	Code     string      `json:"code"`
	Detail   string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	ClientID  string      `json:"client_id,omitempty"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes a websocket frame from the client.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientChat:
		var msg ClientChat
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid client_chat: %w", err)
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
