// Package future provides a one-shot value container resolved exactly once,
// used for asynchronous connection handoff and per-execution outcomes.
package future

import (
	"context"
	"sync"
)

// Future holds a value of type T or an error, whichever is set first.
// Resolve and Fail are first-wins; later calls are no-ops. A Future is
// safe for concurrent use by any number of resolvers and awaiters.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// New returns an unresolved Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a Future already resolved with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Failed returns a Future already failed with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Resolve completes the future with v. It reports whether this call won.
func (f *Future[T]) Resolve(v T) bool {
	won := false
	f.once.Do(func() {
		f.val = v
		won = true
		close(f.done)
	})
	return won
}

// Fail completes the future with err. It reports whether this call won.
func (f *Future[T]) Fail(err error) bool {
	won := false
	f.once.Do(func() {
		f.err = err
		won = true
		close(f.done)
	})
	return won
}

// Done returns a channel closed once the future is resolved or failed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx is cancelled.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
