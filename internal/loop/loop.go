// Package loop runs closures one at a time on a single goroutine. Everything
// that touches the router is posted here.
package loop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrStopped is returned for work posted after the loop stopped.
var ErrStopped = errors.New("loop stopped")

// Loop is a serial executor.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop with room for buffer queued tasks.
func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Stop is called. A task that
// panics is logged and the loop keeps going.
func (l *Loop) Run(ctx context.Context) {
	defer l.Stop()
	for {
		select {
		case f := <-l.tasks:
			l.run(f)
		case <-ctx.Done():
			return
		case <-l.done:
			return
		}
	}
}

func (l *Loop) run(f func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Printf("Loop: PANIC RECOV: %v", err)
		}
	}()
	f()
}

// Post queues f. It blocks while the queue is full and returns false if
// the loop has stopped.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// Call runs f on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Every posts f each interval until ctx is cancelled or the loop stops. A
// tick is skipped while the previous one is still queued.
func (l *Loop) Every(ctx context.Context, interval time.Duration, f func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var mu sync.Mutex
	queued := false
	for {
		select {
		case <-ticker.C:
			mu.Lock()
			skip := queued
			queued = true
			mu.Unlock()
			if skip {
				continue
			}
			if !l.Post(func() {
				mu.Lock()
				queued = false
				mu.Unlock()
				f()
			}) {
				return
			}
		case <-ctx.Done():
			return
		case <-l.done:
			return
		}
	}
}

// Stop ends Run. Queued tasks are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Done is closed once the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
