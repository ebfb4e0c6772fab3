// Package throttle bounds concurrent requests per origin and spaces them by
// a minimum interval.
package throttle

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// Throttler hands out per-origin permits. Gates are created on first use
// and live until Reset.
type Throttler struct {
	mu       sync.Mutex
	permits  int64
	interval time.Duration
	gates    map[string]*gate
}

// New returns a throttler allowing permits concurrent requests per origin,
// each started at least interval after the previous one.
func New(permits int, interval time.Duration) *Throttler {
	if permits < 1 {
		permits = 1
	}
	return &Throttler{
		permits:  int64(permits),
		interval: interval,
		gates:    make(map[string]*gate),
	}
}

func (t *Throttler) gate(origin string) *gate {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.gates[origin]
	if !ok {
		limit := rate.Inf
		if t.interval > 0 {
			limit = rate.Every(t.interval)
		}
		g = &gate{
			sem:     semaphore.NewWeighted(t.permits),
			limiter: rate.NewLimiter(limit, 1),
		}
		t.gates[origin] = g
	}
	return g
}

// Acquire blocks until a permit for origin is free and the minimum interval
// since the previous request to origin has elapsed.
func (t *Throttler) Acquire(ctx context.Context, origin string) error {
	g := t.gate(origin)
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		g.sem.Release(1)
		return err
	}
	return nil
}

// Release returns a permit taken by Acquire.
func (t *Throttler) Release(origin string) {
	t.gate(origin).sem.Release(1)
}

// Reset drops all gates and applies a new permit count. Call it only while
// no request is in flight.
func (t *Throttler) Reset(permits int) {
	if permits < 1 {
		permits = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.permits = int64(permits)
	t.gates = make(map[string]*gate)
}

// Origin returns scheme://host[:port] of rawURL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
