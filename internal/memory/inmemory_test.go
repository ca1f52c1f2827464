package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAppendThenRecentPreservesOrder(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		turn := Turn{Role: RoleUser, Text: fmt.Sprintf("turn-%d", i)}
		if err := s.Append(ctx, "abc123", turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, "abc123", 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent() len = %d, want 3", len(got))
	}
	for i, turn := range got {
		want := fmt.Sprintf("turn-%d", i+2)
		if turn.Text != want {
			t.Fatalf("Recent()[%d].Text = %q, want %q", i, turn.Text, want)
		}
	}
}

func TestRecentMoreThanStoredReturnsAll(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	_ = s.Append(ctx, "c1", Turn{Role: RoleUser, Text: "only"})
	got, err := s.Recent(ctx, "c1", 50)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "only" {
		t.Fatalf("Recent() = %+v, want the single stored turn", got)
	}
}

func TestRecentUnknownClientIsEmpty(t *testing.T) {
	s := NewInMemoryStore(0)
	got, err := s.Recent(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Recent() len = %d, want 0", len(got))
	}
}

func TestRetentionTruncatesOldestFirst(t *testing.T) {
	s := NewInMemoryStore(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = s.Append(ctx, "c1", Turn{Role: RoleUser, Text: fmt.Sprintf("t%d", i)})
	}
	got, _ := s.Recent(ctx, "c1", 0)
	if len(got) != 3 {
		t.Fatalf("stored turns = %d, want retention cap 3", len(got))
	}
	if got[0].Text != "t2" || got[2].Text != "t4" {
		t.Fatalf("retained turns = %+v, want t2..t4", got)
	}
}

func TestResetIsIdempotentAndStartsFresh(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	_ = s.Append(ctx, "c1", Turn{Role: RoleUser, Text: "hello"})
	if err := s.Reset(ctx, "c1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := s.Reset(ctx, "c1"); err != nil {
		t.Fatalf("Reset() second call error = %v", err)
	}

	got, _ := s.Recent(ctx, "c1", 10)
	if len(got) != 0 {
		t.Fatalf("Recent() after Reset len = %d, want 0", len(got))
	}

	if err := s.Append(ctx, "c1", Turn{Role: RoleUser, Text: "fresh"}); err != nil {
		t.Fatalf("Append() after Reset error = %v", err)
	}
	got, _ = s.Recent(ctx, "c1", 10)
	if len(got) != 1 || got[0].Text != "fresh" {
		t.Fatalf("Recent() = %+v, want the fresh turn only", got)
	}
}

func TestSweepRemovesExactlyStaleSessions(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	old := time.Now().UTC().Add(-time.Hour)
	_ = s.Append(ctx, "stale", Turn{Role: RoleUser, Text: "old", CreatedAt: old})
	_ = s.Append(ctx, "live", Turn{Role: RoleUser, Text: "new"})

	evicted, err := s.Sweep(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "stale" {
		t.Fatalf("Sweep() evicted = %v, want [stale]", evicted)
	}

	if got, _ := s.Recent(ctx, "stale", 10); len(got) != 0 {
		t.Fatalf("stale session still present after sweep")
	}
	if got, _ := s.Recent(ctx, "live", 10); len(got) != 1 {
		t.Fatalf("live session removed by sweep")
	}
}

func TestConcurrentAppendsSameClientLoseNothing(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = s.Append(ctx, "shared", Turn{
					Role: RoleUser,
					Text: fmt.Sprintf("w%d-%d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	got, _ := s.Recent(ctx, "shared", 0)
	if len(got) != workers*perWorker {
		t.Fatalf("stored turns = %d, want %d", len(got), workers*perWorker)
	}
}

func TestConcurrentAppendDuringSweepNeverTearsSession(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = s.Append(ctx, "busy", Turn{Role: RoleUser, Text: "x"})
		}
	}()
	for i := 0; i < 50; i++ {
		if _, err := s.Sweep(ctx, time.Hour); err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
	}
	<-done

	// Session was always active within the hour, so every append survived.
	got, _ := s.Recent(ctx, "busy", 0)
	if len(got) != 200 {
		t.Fatalf("stored turns = %d, want 200", len(got))
	}
}
