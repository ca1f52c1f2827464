package memory

import (
	"context"
	"fmt"
	"time"
)

// Role is a closed enum over the two conversation parties.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole validates an inbound role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// Turn stores a single user or assistant conversational turn. Immutable once
// appended.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store owns the authoritative per-client conversation log.
//
// Concurrency contract: Append calls for the same client are serialized so
// turn order is preserved; different clients never block each other. Sweep may
// run concurrently with Append/Recent and a session is always either fully
// present or fully absent to other operations.
type Store interface {
	// Append creates the client's session if absent, appends turn and bumps
	// the session's last activity.
	Append(ctx context.Context, clientID string, turn Turn) error
	// Recent returns the last n turns in chronological order, or empty when
	// no session exists. Never mutates state.
	Recent(ctx context.Context, clientID string, n int) ([]Turn, error)
	// Reset deletes the session entirely. Idempotent.
	Reset(ctx context.Context, clientID string) error
	// Sweep removes every session whose last activity is older than maxAge
	// and returns the evicted client ids.
	Sweep(ctx context.Context, maxAge time.Duration) ([]string, error)
	Close() error
}
