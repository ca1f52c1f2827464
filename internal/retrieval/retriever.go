package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/haven-chat/haven/internal/corpus"
	"github.com/haven-chat/haven/internal/memory"
)

// TruncationMarker is appended wherever budgeted text was cut, so downstream
// consumers can detect truncation instead of guessing.
const TruncationMarker = "\n[content truncated]"

const turnTruncationMarker = " [truncated]"

// AssembledContext is the transient retrieval result for one request. Never
// persisted.
type AssembledContext struct {
	KnowledgeText string
	HistoryText   string
	SkillTags     []string
}

// Options bound the assembled context.
type Options struct {
	K               int
	RecencyWindow   int
	KnowledgeBudget int
	TurnClipChars   int
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = 10
	}
	if o.RecencyWindow <= 0 {
		o.RecencyWindow = 12
	}
	if o.KnowledgeBudget <= 0 {
		o.KnowledgeBudget = 8000
	}
	if o.TurnClipChars <= 0 {
		o.TurnClipChars = 200
	}
	return o
}

// Retriever combines corpus similarity search with recent-turn relevance.
type Retriever struct {
	embedder Embedder
	index    *Index
	store    memory.Store
	opts     Options
}

func NewRetriever(embedder Embedder, index *Index, store memory.Store, opts Options) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		store:    store,
		opts:     opts.withDefaults(),
	}
}

// IndexCorpus embeds the shared knowledge set. Called once at startup; the
// shared partition is never re-embedded per client.
func IndexCorpus(ctx context.Context, embedder Embedder, index *Index, c *corpus.Corpus) error {
	chunks := c.Chunks()
	if len(chunks) == 0 {
		index.SetShared(nil)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}

	embedded := make([]EmbeddedChunk, len(chunks))
	for i, chunk := range chunks {
		embedded[i] = EmbeddedChunk{
			Vector:    vectors[i],
			Text:      chunk.Text,
			SourceTag: chunk.SourceTag,
			Owner:     OwnerShared,
			Kind:      KindDomain,
			Seq:       chunk.Seq,
		}
	}
	index.SetShared(embedded)
	return nil
}

// IndexTurn opportunistically adds one stored turn to the client's history
// partition. Failures are logged and swallowed: retrieval quality degrades,
// the conversation does not.
func (r *Retriever) IndexTurn(ctx context.Context, clientID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	vectors, err := r.embedder.Embed(ctx, []string{text})
	if err != nil || len(vectors) != 1 {
		log.Printf("retrieval: index turn for %s failed: %v", clientID, err)
		return
	}
	r.index.AddHistory(clientID, text, vectors[0])
}

// DropClient removes a client's history partition.
func (r *Retriever) DropClient(clientID string) {
	r.index.DropClient(clientID)
}

// Fetch builds the budgeted context for a query. Empty corpus or empty
// history yields empty strings, never an error; an embedding failure
// degrades to a history-only context.
func (r *Retriever) Fetch(ctx context.Context, clientID, queryText string) (AssembledContext, error) {
	var actx AssembledContext

	knowledge, err := r.knowledgeFor(ctx, clientID, queryText)
	if err != nil {
		// RetrievalError path: conversational continuity beats perfect
		// retrieval, so keep going with whatever the store has.
		log.Printf("retrieval: similarity search degraded for %s: %v", clientID, err)
	}
	actx.KnowledgeText = knowledge

	history, err := r.historyFor(ctx, clientID)
	if err != nil {
		log.Printf("retrieval: history load degraded for %s: %v", clientID, err)
		history = ""
	}
	actx.HistoryText = history

	actx.SkillTags = matchSkills(queryText, actx.KnowledgeText)
	return actx, nil
}

func (r *Retriever) knowledgeFor(ctx context.Context, clientID, queryText string) (string, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" || r.index.SharedSize() == 0 {
		return "", nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil || len(vectors) != 1 {
		return "", fmt.Errorf("embed query: %w", err)
	}

	hits := r.index.Search(clientID, vectors[0], r.opts.K)
	var b strings.Builder
	for _, hit := range hits {
		if hit.Kind != KindDomain {
			// History relevance is handled by the recency window; similarity
			// hits on history never get promoted into knowledge text.
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(hit.Text)
	}
	return applyBudget(b.String(), r.opts.KnowledgeBudget), nil
}

func (r *Retriever) historyFor(ctx context.Context, clientID string) (string, error) {
	turns, err := r.store.Recent(ctx, clientID, r.opts.RecencyWindow)
	if err != nil {
		return "", fmt.Errorf("recent turns: %w", err)
	}
	if len(turns) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(clipTurn(turn.Text, r.opts.TurnClipChars))
	}
	return b.String(), nil
}

func applyBudget(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	return text[:budget] + TruncationMarker
}

func clipTurn(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + turnTruncationMarker
}
