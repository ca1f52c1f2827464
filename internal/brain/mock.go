package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/haven-chat/haven/internal/prompt"
)

// MockAdapter provides deterministic local replies when no provider is
// configured. It emits a reasoning block before the reply the way real
// providers sometimes do, which exercises the downstream filter.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) StreamResponse(
	ctx context.Context,
	req MessageRequest,
	onDelta DeltaHandler,
) (MessageResponse, error) {
	select {
	case <-ctx.Done():
		return MessageResponse{}, ctx.Err()
	default:
	}

	parts := []string{
		"<think>choosing a gentle, grounded reply</think>",
		buildMockReply(req),
	}

	var full strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		full.WriteString(p)
		if onDelta != nil {
			if err := onDelta(p); err != nil {
				return MessageResponse{}, err
			}
		}
	}
	return MessageResponse{Text: full.String()}, nil
}

func buildMockReply(req MessageRequest) string {
	var base string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == prompt.RoleUser {
			base = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if base == "" {
		return "I am here and listening. How are you feeling right now?"
	}
	return fmt.Sprintf("I hear you. You said: %s. Take a slow breath; I am here with you.", base)
}
