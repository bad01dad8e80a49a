package dispatch

import (
	"context"
	"sync"
	"time"
)

// Window is a fixed-window counter bounding outbound calls to the lead
// inbox API. A caller that would exceed the limit blocks until the window
// rolls over instead of being dropped. Safe for concurrent use; the slot
// is consumed when Acquire returns, not when the call completes, so the
// count stays monotonic even if the caller is cancelled mid-flight.
type Window struct {
	mu     sync.Mutex
	limit  int
	length time.Duration
	start  time.Time
	count  int

	// Test seams.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindow returns a window admitting limit calls per length. A limit
// of zero or less disables the window entirely.
func NewWindow(limit int, length time.Duration) *Window {
	return &Window{
		limit:  limit,
		length: length,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Acquire blocks until a slot is available in the current window or ctx
// is done. The wait is bounded by the window length.
func (w *Window) Acquire(ctx context.Context) error {
	if w.limit <= 0 {
		return ctx.Err()
	}
	for {
		w.mu.Lock()
		now := w.now()
		if w.start.IsZero() || now.Sub(w.start) >= w.length {
			w.start = now
			w.count = 0
		}
		if w.count < w.limit {
			w.count++
			w.mu.Unlock()
			return nil
		}
		wait := w.length - now.Sub(w.start)
		w.mu.Unlock()

		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Remaining reports how many slots are left in the current window.
func (w *Window) Remaining() int {
	if w.limit <= 0 {
		return -1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.start.IsZero() || w.now().Sub(w.start) >= w.length {
		return w.limit
	}
	return w.limit - w.count
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
