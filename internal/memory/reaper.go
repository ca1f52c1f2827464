package memory

import (
	"context"
	"log"
	"time"
)

// Reaper periodically evicts sessions idle past the TTL. It runs as a single
// background task, independent of request workers.
type Reaper struct {
	store    Store
	maxAge   time.Duration
	interval time.Duration
	onEvict  func(clientID string)
}

func NewReaper(store Store, maxAge, interval time.Duration) *Reaper {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
	}
}

// SetEvictHook registers a callback invoked once per evicted client, after
// the session is gone from the store. Used to drop per-client retrieval
// indexes alongside the conversation log.
func (r *Reaper) SetEvictHook(hook func(clientID string)) {
	r.onEvict = hook
}

// Start launches the sweep loop. It stops when ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweepOnce(ctx)
			}
		}
	}()
}

func (r *Reaper) sweepOnce(ctx context.Context) {
	evicted, err := r.store.Sweep(ctx, r.maxAge)
	if err != nil {
		log.Printf("reaper: sweep failed: %v", err)
		return
	}
	if len(evicted) == 0 {
		return
	}
	log.Printf("reaper: evicted %d idle sessions", len(evicted))
	if r.onEvict != nil {
		for _, id := range evicted {
			r.onEvict(id)
		}
	}
}
