package telegram

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.t = f.t.Add(d)
	return nil
}

func TestRateWindowAllowsLimitPerMinute(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)}
	w := NewRateWindow(3, clock.Now)
	w.sleep = clock.Sleep

	for i := 0; i < 3; i++ {
		waited, err := w.Wait(context.Background())
		if err != nil || waited != 0 {
			t.Fatalf("send %d: waited=%v err=%v", i, waited, err)
		}
	}
	waited, err := w.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if waited != 50*time.Second {
		t.Fatalf("waited = %v, want 50s", waited)
	}
	if got := clock.Now(); !got.Equal(time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC)) {
		t.Fatalf("clock after wait = %v", got)
	}
	if w.Count() != 1 {
		t.Fatalf("count after rollover = %d, want 1", w.Count())
	}
}

func TestRateWindowNeverExceedsLimitInAnyMinute(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	const limit = 20
	w := NewRateWindow(limit, clock.Now)
	w.sleep = clock.Sleep

	perMinute := map[time.Time]int{}
	for i := 0; i < 250; i++ {
		if _, err := w.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		perMinute[clock.Now().Truncate(time.Minute)]++
		clock.t = clock.t.Add(700 * time.Millisecond)
	}
	for minute, n := range perMinute {
		if n > limit {
			t.Fatalf("%v: %d sends, limit %d", minute, n, limit)
		}
	}
}

func TestRateWindowResetsOnMinuteChange(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 59, 0, time.UTC)}
	w := NewRateWindow(1, clock.Now)
	w.sleep = func(context.Context, time.Duration) error {
		t.Fatal("unexpected wait")
		return nil
	}
	if _, err := w.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.t = clock.t.Add(2 * time.Second)
	if _, err := w.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestRateWindowDisabled(t *testing.T) {
	t.Parallel()

	w := NewRateWindow(0, nil)
	for i := 0; i < 1000; i++ {
		if waited, err := w.Wait(context.Background()); err != nil || waited != 0 {
			t.Fatalf("waited=%v err=%v", waited, err)
		}
	}
}

func TestRateWindowWaitCancelled(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)}
	w := NewRateWindow(1, clock.Now)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := w.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := w.Wait(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestRateWindowTryReserve(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC)}
	w := NewRateWindow(2, clock.Now)
	if !w.TryReserve() || !w.TryReserve() {
		t.Fatal("first two reservations refused")
	}
	if w.TryReserve() {
		t.Fatal("third reservation in the same minute accepted")
	}
	clock.t = clock.t.Add(30 * time.Second)
	if !w.TryReserve() {
		t.Fatal("reservation refused after minute change")
	}
	if w.Count() != 1 {
		t.Fatalf("count = %d, want 1", w.Count())
	}

	if !NewRateWindow(0, nil).TryReserve() {
		t.Fatal("unlimited window refused")
	}
}
