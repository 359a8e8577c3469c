package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	if q.Len() != 5 {
		t.Fatalf("Len = %d, want 5", q.Len())
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		v, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != i {
			t.Fatalf("Get = %d, want %d", v, i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len = %d after drain", q.Len())
	}
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	t.Parallel()

	q := New[string]()
	got := make(chan string, 1)
	go func() {
		v, err := q.Get(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case v := <-got:
		t.Fatalf("Get returned %q before Put", v)
	case <-time.After(50 * time.Millisecond):
	}

	q.Put("hello")
	select {
	case v := <-got:
		if v != "hello" {
			t.Fatalf("Get = %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not wake up")
	}
}

func TestQueueGetHonoursContext(t *testing.T) {
	t.Parallel()

	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get err = %v, want deadline exceeded", err)
	}
}
