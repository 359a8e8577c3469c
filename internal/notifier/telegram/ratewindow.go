package telegram

import (
	"context"
	"sync"
	"time"
)

// RateWindow enforces at most limit sends per calendar minute. It is a
// fixed window: the count resets when the wall-clock minute changes, and a
// caller over the limit waits for the next minute boundary.
//
// Not safe for concurrent use; each sender owns one.
type RateWindow struct {
	mu     sync.Mutex
	limit  int
	bucket time.Time
	count  int

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRateWindow returns a window allowing limit sends per minute; limit <= 0
// disables limiting. now may be nil.
func NewRateWindow(limit int, now func() time.Time) *RateWindow {
	if now == nil {
		now = time.Now
	}
	return &RateWindow{limit: limit, now: now, sleep: sleepCtx}
}

// Wait reserves one send in the current minute, blocking until the next
// minute when the current one is exhausted. It reports how long it waited.
func (w *RateWindow) Wait(ctx context.Context) (time.Duration, error) {
	if w.limit <= 0 {
		return 0, nil
	}
	var waited time.Duration
	for {
		w.mu.Lock()
		now := w.now()
		w.roll(now)
		if w.count < w.limit {
			w.count++
			w.mu.Unlock()
			return waited, nil
		}
		next := w.bucket.Add(time.Minute)
		w.mu.Unlock()

		wait := next.Sub(now)
		if err := w.sleep(ctx, wait); err != nil {
			return 0, err
		}
		waited += wait

		w.mu.Lock()
		w.roll(w.now())
		if w.bucket.Before(next) {
			// Clock lagged behind the timer; the boundary has passed regardless.
			w.bucket, w.count = next, 0
		}
		w.mu.Unlock()
	}
}

// TryReserve takes one send from the current minute without waiting. It
// reports false when the minute is spent.
func (w *RateWindow) TryReserve() bool {
	if w.limit <= 0 {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roll(w.now())
	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}

// Count is the number of sends reserved in the current bucket.
func (w *RateWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// roll only moves forward, so a clock stepping back cannot reopen a spent
// minute.
func (w *RateWindow) roll(now time.Time) {
	b := now.Truncate(time.Minute)
	if b.After(w.bucket) {
		w.bucket = b
		w.count = 0
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
