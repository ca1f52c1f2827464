package retrieval

import (
	"math"
	"sort"
	"sync"
)

// Kind partitions embedded chunks by origin.
type Kind string

const (
	KindDomain  Kind = "domain"
	KindHistory Kind = "history"
)

// OwnerShared marks chunks visible to every retrieval query.
const OwnerShared = "shared"

// EmbeddedChunk is one indexed unit of text with its vector.
type EmbeddedChunk struct {
	Vector    []float32
	Text      string
	SourceTag string
	Owner     string
	Kind      Kind
	Seq       int
}

type scoredChunk struct {
	EmbeddedChunk
	score float64
}

// Index is an in-process cosine-similarity store. The shared partition is
// embedded once at startup and read-only afterwards; per-client partitions
// hold only that client's history chunks and are never visible to other
// clients. That isolation is a hard invariant, not an incidental filter.
type Index struct {
	mu           sync.RWMutex
	shared       []EmbeddedChunk
	byClient     map[string][]EmbeddedChunk
	clientSeq    map[string]int
	maxPerClient int
}

func NewIndex(maxPerClient int) *Index {
	if maxPerClient <= 0 {
		maxPerClient = 200
	}
	return &Index{
		byClient:     make(map[string][]EmbeddedChunk),
		clientSeq:    make(map[string]int),
		maxPerClient: maxPerClient,
	}
}

// SetShared installs the corpus partition. Called once at startup, before
// queries begin.
func (ix *Index) SetShared(chunks []EmbeddedChunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.shared = chunks
}

// AddHistory appends one history chunk to a client's delta partition,
// trimming oldest-first past the cap.
func (ix *Index) AddHistory(clientID, text string, vector []float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	seq := ix.clientSeq[clientID]
	ix.clientSeq[clientID] = seq + 1

	chunks := append(ix.byClient[clientID], EmbeddedChunk{
		Vector: vector,
		Text:   text,
		Owner:  clientID,
		Kind:   KindHistory,
		Seq:    seq,
	})
	if len(chunks) > ix.maxPerClient {
		chunks = chunks[len(chunks)-ix.maxPerClient:]
	}
	ix.byClient[clientID] = chunks
}

// DropClient removes a client's partition. Idempotent; invoked on session
// reset and by the reaper's evict hook.
func (ix *Index) DropClient(clientID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.byClient, clientID)
	delete(ix.clientSeq, clientID)
}

// SharedSize reports the number of shared corpus chunks.
func (ix *Index) SharedSize() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.shared)
}

// Search scores the shared partition plus the querying client's own history
// against the query vector and returns the k nearest chunks, highest
// similarity first. Equal scores keep insertion order.
func (ix *Index) Search(clientID string, query []float32, k int) []EmbeddedChunk {
	if k <= 0 || len(query) == 0 {
		return nil
	}

	ix.mu.RLock()
	candidates := make([]scoredChunk, 0, len(ix.shared)+len(ix.byClient[clientID]))
	for _, c := range ix.shared {
		candidates = append(candidates, scoredChunk{EmbeddedChunk: c, score: cosine(query, c.Vector)})
	}
	for _, c := range ix.byClient[clientID] {
		candidates = append(candidates, scoredChunk{EmbeddedChunk: c, score: cosine(query, c.Vector)})
	}
	ix.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		// Tie-break: shared corpus order, then history order.
		if candidates[i].Kind != candidates[j].Kind {
			return candidates[i].Kind == KindDomain
		}
		return candidates[i].Seq < candidates[j].Seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]EmbeddedChunk, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].EmbeddedChunk
	}
	return out
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
