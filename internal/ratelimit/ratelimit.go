package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer spaces out consecutive requests that share a key (a company) by a
// random delay drawn uniformly from [minDelay, maxDelay]. Requests under
// different keys never wait on each other.
type Pacer struct {
	mu       sync.Mutex
	next     map[string]time.Time // earliest start of the next request per key
	minDelay time.Duration
	maxDelay time.Duration

	now    func() time.Time
	jitter func(n int64) int64 // returns a value in [0, n)
}

// NewPacer creates a pacer. maxDelay below minDelay is raised to minDelay.
func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
		maxDelay: maxDelay,
		now:      time.Now,
		jitter:   rand.Int64N,
	}
}

// Wait blocks until the key's turn comes up. The first request for a key
// proceeds immediately. Each caller reserves its slot under the lock, so
// concurrent callers for the same key are spaced out too.
// Returns an error if the context is cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	p.mu.Lock()
	now := p.now()
	start := now
	if next, ok := p.next[key]; ok && next.After(now) {
		start = next
	}
	p.next[key] = start.Add(p.delay())
	p.mu.Unlock()

	remaining := start.Sub(now)
	if remaining <= 0 {
		return nil
	}

	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pacing wait for %s: %w", key, ctx.Err())
	case <-t.C:
		return nil
	}
}

func (p *Pacer) delay() time.Duration {
	span := int64(p.maxDelay - p.minDelay)
	if span <= 0 {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.jitter(span+1))
}
