// Package scheduler runs state mutations on a single goroutine so that
// read-modify-write sequences on the dashboard stores never interleave.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned for work submitted after the loop has stopped.
var ErrStopped = errors.New("scheduler: loop stopped")

const defaultQueue = 256

// Task is a unit of work executed on the loop goroutine.
type Task func()

// Loop is a FIFO task queue drained by one goroutine. Tasks must not block
// on I/O and must not call Do on the same loop.
type Loop struct {
	tasks   chan Task
	done    chan struct{}
	once    sync.Once
	onPanic func(any)
}

// New creates a loop with the given queue length. onPanic, if set, is called
// with the recovered value when a task panics; the loop keeps running.
func New(queue int, onPanic func(any)) *Loop {
	if queue <= 0 {
		queue = defaultQueue
	}
	return &Loop{
		tasks:   make(chan Task, queue),
		done:    make(chan struct{}),
		onPanic: onPanic,
	}
}

// Run drains tasks until ctx is cancelled. Tasks still queued at that point
// are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-l.tasks:
			// prefer stopping over running a task that raced with cancel
			if ctx.Err() != nil {
				return
			}
			l.exec(t)
		}
	}
}

func (l *Loop) exec(t Task) {
	defer func() {
		if r := recover(); r != nil && l.onPanic != nil {
			l.onPanic(r)
		}
	}()
	t()
}

func (l *Loop) stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Stopped reports whether the loop has stopped.
func (l *Loop) Stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Post enqueues t without waiting for it to run. It reports false when the
// loop has stopped and the task was dropped.
func (l *Loop) Post(t Task) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- t:
		return true
	case <-l.done:
		return false
	}
}

// Do runs t on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, t Task) error {
	finished := make(chan struct{})
	ok := l.Post(func() {
		defer close(finished)
		t()
	})
	if !ok {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// the task may have been dropped with the queue
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return fmt.Errorf("scheduler: waiting for task: %w", ctx.Err())
	}
}

// Call runs fn on the loop and returns its result.
func Call[T any](ctx context.Context, l *Loop, fn func() T) (T, error) {
	var out T
	err := l.Do(ctx, func() { out = fn() })
	return out, err
}
