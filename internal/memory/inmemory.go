package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps conversation logs in process memory. Each client
// session carries its own lock so appends for different clients proceed in
// parallel while appends for one client stay serialized.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*clientSession
	maxTurns int
}

type clientSession struct {
	mu           sync.RWMutex
	turns        []Turn
	lastActivity time.Time
	evicted      bool
}

func NewInMemoryStore(maxTurns int) *InMemoryStore {
	if maxTurns <= 0 {
		maxTurns = 200
	}
	return &InMemoryStore{
		sessions: make(map[string]*clientSession),
		maxTurns: maxTurns,
	}
}

func (s *InMemoryStore) Append(_ context.Context, clientID string, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	for {
		sess := s.getOrCreate(clientID)
		sess.mu.Lock()
		if sess.evicted {
			// Lost a race with Sweep/Reset; the entry is gone from the map.
			sess.mu.Unlock()
			continue
		}
		sess.turns = append(sess.turns, turn)
		if len(sess.turns) > s.maxTurns {
			// Retention: truncate oldest-first, never interior turns.
			sess.turns = sess.turns[len(sess.turns)-s.maxTurns:]
		}
		if turn.CreatedAt.After(sess.lastActivity) {
			sess.lastActivity = turn.CreatedAt
		}
		sess.mu.Unlock()
		return nil
	}
}

func (s *InMemoryStore) Recent(_ context.Context, clientID string, n int) ([]Turn, error) {
	s.mu.RLock()
	sess := s.sessions[clientID]
	s.mu.RUnlock()
	if sess == nil {
		return nil, nil
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()
	total := len(sess.turns)
	if total == 0 {
		return nil, nil
	}
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Turn, n)
	copy(out, sess.turns[total-n:])
	return out, nil
}

func (s *InMemoryStore) Reset(_ context.Context, clientID string) error {
	s.mu.Lock()
	sess := s.sessions[clientID]
	delete(s.sessions, clientID)
	s.mu.Unlock()

	if sess != nil {
		sess.mu.Lock()
		sess.evicted = true
		sess.mu.Unlock()
	}
	return nil
}

func (s *InMemoryStore) Sweep(_ context.Context, maxAge time.Duration) ([]string, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	var evicted []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		stale := now.Sub(sess.lastActivity) > maxAge
		if stale {
			sess.evicted = true
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()

	return evicted, nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) getOrCreate(clientID string) *clientSession {
	s.mu.RLock()
	sess := s.sessions[clientID]
	s.mu.RUnlock()
	if sess != nil {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[clientID]; sess != nil {
		return sess
	}
	sess = &clientSession{lastActivity: time.Now().UTC()}
	s.sessions[clientID] = sess
	return sess
}
