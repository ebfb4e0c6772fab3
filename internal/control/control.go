// Package control carries the cooperative pause and cancel signals of one
// engine instance.
//
// Cancellation is sticky: once cancelled, a Control stays cancelled. Paused
// workers block in Wait until they are resumed or the control is cancelled,
// re-checking on PollInterval.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/common"
)

// PollInterval is how often a paused worker re-checks its state.
const PollInterval = 100 * time.Millisecond

type Control struct {
	mu        sync.Mutex
	paused    bool
	resumed   chan struct{}
	cancelled chan struct{}
	once      sync.Once
}

func New() *Control {
	return &Control{
		resumed:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// Pause makes subsequent Wait calls block. It reports whether the state changed.
func (c *Control) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.Cancelled() {
		return false
	}
	c.paused = true
	c.resumed = make(chan struct{})
	return true
}

// Resume releases paused workers. It reports whether the state changed.
func (c *Control) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return false
	}
	c.paused = false
	close(c.resumed)
	return true
}

// Paused reports the current pause state.
func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Cancel sets the cancellation flag and wakes every paused worker.
func (c *Control) Cancel() {
	c.once.Do(func() { close(c.cancelled) })
}

func (c *Control) Cancelled() bool {
	select {
	case <-c.cancelled:
		return true
	default:
		return false
	}
}

// Done is closed on cancellation.
func (c *Control) Done() <-chan struct{} {
	return c.cancelled
}

// Wait returns immediately when not paused. Otherwise it blocks until
// resumed (nil), cancelled (common.ErrCancelled) or ctx ends.
func (c *Control) Wait(ctx context.Context) error {
	for {
		if c.Cancelled() {
			return common.ErrCancelled
		}
		c.mu.Lock()
		paused, resumed := c.paused, c.resumed
		c.mu.Unlock()
		if !paused {
			return nil
		}

		t := time.NewTimer(PollInterval)
		select {
		case <-resumed:
		case <-c.cancelled:
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
		t.Stop()
	}
}

// Bind derives a context that is cancelled together with c.
func (c *Control) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-c.cancelled:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Sleep waits for d unless the control is cancelled first.
func (c *Control) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if c.Cancelled() {
			return common.ErrCancelled
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.cancelled:
		return common.ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}
