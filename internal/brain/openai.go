package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultChatModel = "gpt-4o-mini"

// OpenAIAdapter streams chat completions from the OpenAI API.
type OpenAIAdapter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIAdapter(apiKey, model string, timeout time.Duration) *OpenAIAdapter {
	if model == "" {
		model = defaultChatModel
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIAdapter{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

func (a *OpenAIAdapter) StreamResponse(ctx context.Context, req MessageRequest, onDelta DeltaHandler) (MessageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return MessageResponse{}, fmt.Errorf("open chat stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return MessageResponse{}, fmt.Errorf("read chat stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return MessageResponse{}, err
			}
		}
	}
	return MessageResponse{Text: full.String()}, nil
}
