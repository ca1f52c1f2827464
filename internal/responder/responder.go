package responder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haven-chat/haven/internal/brain"
	"github.com/haven-chat/haven/internal/memory"
	"github.com/haven-chat/haven/internal/policy"
	"github.com/haven-chat/haven/internal/prompt"
	"github.com/haven-chat/haven/internal/protocol"
	"github.com/haven-chat/haven/internal/retrieval"
)

// Stage names reported to the observer.
const (
	StageRetrieval  = "retrieval"
	StageFirstToken = "first_token"
	StageTurnTotal  = "turn_total"
)

// StageObserver receives per-turn latency measurements.
type StageObserver interface {
	ObserveStage(stage string, d time.Duration)
}

// ErrEmptyUserText is returned when the request carries no user message.
var ErrEmptyUserText = errors.New("empty user message")

// Result describes one completed assistant turn.
type Result struct {
	TurnID    string
	Text      string
	SkillTags []string
}

// Responder runs a full chat turn: gather context, stream the model
// response through the reasoning filter, and persist the exchange.
// The assistant turn is committed only after the stream completes, so a
// cancelled or failed stream never leaves a partial reply in history.
type Responder struct {
	store        memory.Store
	retriever    *retrieval.Retriever
	assembler    *prompt.Assembler
	adapter      brain.Adapter
	instructions string
	recency      int
	observer     StageObserver
}

// Options configures a Responder.
type Options struct {
	Instructions  string
	RecencyWindow int
	Observer      StageObserver
}

func New(store memory.Store, retriever *retrieval.Retriever, assembler *prompt.Assembler, adapter brain.Adapter, opts Options) *Responder {
	recency := opts.RecencyWindow
	if recency <= 0 {
		recency = 12
	}
	return &Responder{
		store:        store,
		retriever:    retriever,
		assembler:    assembler,
		adapter:      adapter,
		instructions: opts.Instructions,
		recency:      recency,
		observer:     opts.Observer,
	}
}

// Respond executes one turn for clientID. onDelta receives filtered
// text fragments as they arrive; it may be nil.
func (r *Responder) Respond(ctx context.Context, clientID string, req protocol.ChatRequest, onDelta func(delta string) error) (Result, error) {
	userText := req.LastUserText()
	if userText == "" {
		return Result{}, ErrEmptyUserText
	}

	turnStart := time.Now()

	recent, err := r.store.Recent(ctx, clientID, r.recency)
	if err != nil {
		log.Printf("responder: recent turns for %s unavailable, continuing without history: %v", clientID, err)
		recent = nil
	}

	retrievalStart := time.Now()
	actx, err := r.retriever.Fetch(ctx, clientID, userText)
	if err != nil {
		log.Printf("responder: retrieval for %s degraded: %v", clientID, err)
	}
	r.observe(StageRetrieval, time.Since(retrievalStart))

	messages := r.assembler.Build(r.instructions, actx, recent, userText, req.Language)

	redactedUser, _ := policy.RedactPII(userText)
	userTurn := memory.Turn{
		ID:        uuid.NewString(),
		Role:      memory.RoleUser,
		Text:      redactedUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Append(ctx, clientID, userTurn); err != nil {
		log.Printf("responder: append user turn for %s failed: %v", clientID, err)
	}

	filter := brain.NewReasoningFilter()
	var full strings.Builder
	firstDelta := true
	emit := func(text string) error {
		if text == "" {
			return nil
		}
		if firstDelta {
			firstDelta = false
			r.observe(StageFirstToken, time.Since(turnStart))
		}
		full.WriteString(text)
		if onDelta != nil {
			return onDelta(text)
		}
		return nil
	}

	_, err = r.adapter.StreamResponse(ctx, brain.MessageRequest{
		ClientID: clientID,
		Messages: messages,
	}, func(delta string) error {
		return emit(filter.Consume(delta))
	})
	if err != nil {
		return Result{}, fmt.Errorf("stream response: %w", err)
	}
	if err := emit(filter.Finalize()); err != nil {
		return Result{}, fmt.Errorf("flush response: %w", err)
	}

	finalText := full.String()
	redactedAssistant, _ := policy.RedactPII(finalText)
	assistantTurn := memory.Turn{
		ID:        uuid.NewString(),
		Role:      memory.RoleAssistant,
		Text:      redactedAssistant,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Append(ctx, clientID, assistantTurn); err != nil {
		log.Printf("responder: append assistant turn for %s failed: %v", clientID, err)
	}

	r.retriever.IndexTurn(ctx, clientID, redactedUser)
	r.retriever.IndexTurn(ctx, clientID, redactedAssistant)

	r.observe(StageTurnTotal, time.Since(turnStart))
	return Result{
		TurnID:    assistantTurn.ID,
		Text:      finalText,
		SkillTags: actx.SkillTags,
	}, nil
}

func (r *Responder) observe(stage string, d time.Duration) {
	if r.observer != nil {
		r.observer.ObserveStage(stage, d)
	}
}
