package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestParseClientMessageChat(t *testing.T) {
	raw := []byte(`{"type":"client_chat","client_id":"abc123","language":"en","messages":[{"role":"user","content":"hello"}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	chat, ok := msg.(ClientChat)
	if !ok {
		t.Fatalf("message type = %T, want ClientChat", msg)
	}
	if chat.ClientID != "abc123" || chat.LastUserText() != "hello" {
		t.Fatalf("unexpected chat payload: %+v", chat)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","client_id":"abc123","action":"reset"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	ctl, ok := msg.(ClientControl)
	if !ok || ctl.Action != "reset" {
		t.Fatalf("unexpected control payload: %+v", msg)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"telemetry"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestChatMessageAcceptsTextAlias(t *testing.T) {
	raw := []byte(`{"type":"client_chat","messages":[{"role":"user","text":"legacy field"}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	chat := msg.(ClientChat)
	if chat.LastUserText() != "legacy field" {
		t.Fatalf("LastUserText() = %q, want %q", chat.LastUserText(), "legacy field")
	}
}

func TestChatRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{
			name:    "empty",
			req:     ChatRequest{},
			wantErr: true,
		},
		{
			name: "last message not user",
			req: ChatRequest{Messages: []ChatMessage{
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
			}},
			wantErr: true,
		},
		{
			name: "blank user text",
			req: ChatRequest{Messages: []ChatMessage{
				{Role: "user", Content: "   "},
			}},
			wantErr: true,
		},
		{
			name: "unknown role",
			req: ChatRequest{Messages: []ChatMessage{
				{Role: "narrator", Content: "hi"},
				{Role: "user", Content: "hello"},
			}},
			wantErr: true,
		},
		{
			name: "oversized message",
			req: ChatRequest{Messages: []ChatMessage{
				{Role: "user", Content: strings.Repeat("x", maxMessageChars+1)},
			}},
			wantErr: true,
		},
		{
			name: "valid conversation",
			req: ChatRequest{Messages: []ChatMessage{
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
				{Role: "user", Content: "how do I calm down?"},
			}},
			wantErr: false,
		},
	}
	for _, tc := range cases {
		err := tc.req.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: Validate() error = %v", tc.name, err)
		}
	}
}
