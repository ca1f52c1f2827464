package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore persists one JSON document per client under a history directory.
// Documents hold an ordered array of {text, metadata} records and are read
// fully on session load. Read failures degrade to an empty session so a
// corrupt file never takes down the request path.
type FileStore struct {
	dir      string
	maxTurns int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type fileDocument struct {
	ClientID     string       `json:"client_id"`
	LastActivity time.Time    `json:"last_activity"`
	Records      []fileRecord `json:"records"`
}

type fileRecord struct {
	Text     string       `json:"text"`
	Metadata turnMetadata `json:"metadata"`
}

type turnMetadata struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func NewFileStore(dir string, maxTurns int) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("history dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	if maxTurns <= 0 {
		maxTurns = 200
	}
	return &FileStore{
		dir:      dir,
		maxTurns: maxTurns,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *FileStore) Append(_ context.Context, clientID string, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	doc := s.load(clientID)
	doc.ClientID = clientID
	doc.Records = append(doc.Records, fileRecord{
		Text: turn.Text,
		Metadata: turnMetadata{
			ID:        turn.ID,
			Role:      turn.Role,
			CreatedAt: turn.CreatedAt,
		},
	})
	if len(doc.Records) > s.maxTurns {
		doc.Records = doc.Records[len(doc.Records)-s.maxTurns:]
	}
	if turn.CreatedAt.After(doc.LastActivity) {
		doc.LastActivity = turn.CreatedAt
	}

	return s.write(clientID, doc)
}

func (s *FileStore) Recent(_ context.Context, clientID string, n int) ([]Turn, error) {
	lock := s.clientLock(clientID)
	lock.Lock()
	doc := s.load(clientID)
	lock.Unlock()

	total := len(doc.Records)
	if total == 0 {
		return nil, nil
	}
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Turn, 0, n)
	for _, rec := range doc.Records[total-n:] {
		out = append(out, Turn{
			ID:        rec.Metadata.ID,
			Role:      rec.Metadata.Role,
			Text:      rec.Text,
			CreatedAt: rec.Metadata.CreatedAt,
		})
	}
	return out, nil
}

func (s *FileStore) Reset(_ context.Context, clientID string) error {
	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.path(clientID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset %s: %w", clientID, err)
	}
	return nil
}

func (s *FileStore) Sweep(_ context.Context, maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read history dir: %w", err)
	}

	now := time.Now().UTC()
	var evicted []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		clientID := strings.TrimSuffix(entry.Name(), ".json")

		lock := s.clientLock(clientID)
		lock.Lock()
		doc := s.load(clientID)
		stale := now.Sub(doc.LastActivity) > maxAge
		if stale {
			if err := os.Remove(s.path(clientID)); err != nil && !os.IsNotExist(err) {
				lock.Unlock()
				return evicted, fmt.Errorf("sweep %s: %w", clientID, err)
			}
			evicted = append(evicted, clientID)
		}
		lock.Unlock()
	}
	return evicted, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load(clientID string) fileDocument {
	raw, err := os.ReadFile(s.path(clientID))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("memory: read %s failed, treating as empty session: %v", clientID, err)
		}
		return fileDocument{}
	}
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Printf("memory: decode %s failed, treating as empty session: %v", clientID, err)
		return fileDocument{}
	}
	return doc
}

func (s *FileStore) write(clientID string, doc fileDocument) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", clientID, err)
	}
	tmp := s.path(clientID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", clientID, err)
	}
	if err := os.Rename(tmp, s.path(clientID)); err != nil {
		return fmt.Errorf("commit %s: %w", clientID, err)
	}
	return nil
}

func (s *FileStore) path(clientID string) string {
	return filepath.Join(s.dir, sanitizeClientID(clientID)+".json")
}

func (s *FileStore) clientLock(clientID string) *sync.Mutex {
	key := sanitizeClientID(clientID)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// sanitizeClientID keeps file names flat: anything outside [a-zA-Z0-9_-]
// becomes '_', so a hostile client id cannot traverse out of the history dir.
func sanitizeClientID(clientID string) string {
	var b strings.Builder
	b.Grow(len(clientID))
	for _, r := range clientID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
