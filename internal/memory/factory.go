package memory

import (
	"context"
	"strings"
)

// NewStore selects the backend: postgres when DATABASE_URL is configured,
// file-backed JSON when a history dir is set, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL, historyDir string, maxTurns int) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(historyDir) != "" {
		return NewFileStore(historyDir, maxTurns)
	}
	return NewInMemoryStore(maxTurns), nil
}
