package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haven-chat/haven/internal/prompt"
)

// MessageRequest is the normalized request sent to the model provider.
type MessageRequest struct {
	ClientID string           `json:"client_id"`
	Messages []prompt.Message `json:"messages"`
}

// MessageResponse is the final response after streaming deltas.
type MessageResponse struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// Adapter bridges the chat runtime with a model provider.
type Adapter interface {
	StreamResponse(ctx context.Context, req MessageRequest, onDelta DeltaHandler) (MessageResponse, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	APIKey  string
	Model   string
	HTTPURL string
	Timeout time.Duration
}

func New(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoAdapter(cfg), nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for openai mode")
		}
		return NewOpenAIAdapter(cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("provider HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL, cfg.Timeout), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported provider mode %q", cfg.Mode)
	}
}

func newAutoAdapter(cfg Config) Adapter {
	if strings.TrimSpace(cfg.APIKey) != "" {
		primary := NewOpenAIAdapter(cfg.APIKey, cfg.Model, cfg.Timeout)
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackAdapter(primary, NewHTTPAdapter(cfg.HTTPURL, cfg.Timeout))
		}
		return primary
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewHTTPAdapter(cfg.HTTPURL, cfg.Timeout)
	}
	return NewMockAdapter()
}
