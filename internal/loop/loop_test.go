package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestPostOrder tests that tasks run serially in post order
func TestPostOrder(t *testing.T) {
	l := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Call(ctx, func() {}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("Expected order 0..9, got %v", got)
		}
	}
	if len(got) != 10 {
		t.Errorf("Expected 10 tasks, got %d", len(got))
	}
}

// TestPanicRecovered tests that a panicking task does not stop the loop
func TestPanicRecovered(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Call(ctx, func() { ran = true }); err != nil || !ran {
		t.Errorf("Expected the loop to survive a panic, err=%v ran=%v", err, ran)
	}
}

// TestStopped tests posting to a stopped loop
func TestStopped(t *testing.T) {
	l := New(4)
	l.Stop()
	if l.Post(func() {}) {
		t.Error("Expected Post to fail after Stop")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}

// TestCallContext tests that Call honours its context
func TestCallContext(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// Not running: the task is queued but never executed.
	if err := l.Call(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

// TestEvery tests periodic posting
func TestEvery(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var n int32
	go l.Every(ctx, 5*time.Millisecond, func() { atomic.AddInt32(&n, 1) })

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&n) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("Expected at least 3 ticks")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
