package query

import (
	"context"
	"errors"
	"sync"
)

// ErrStreamTerminated is returned by Send once a stream has reached a
// terminal state without a more specific cause.
var ErrStreamTerminated = errors.New("result stream terminated")

// Stream is a single-producer/single-consumer push channel of result rows.
//
// The item channel is unbuffered, so Send for row N+1 cannot complete before
// the drain callback for row N has returned: the producer is backpressured by
// the consumer. A stream reaches exactly one terminal state, success via
// Close or failure via Fail; whichever lands first wins and the stream is
// inert afterwards.
type Stream[T any] struct {
	items chan T
	term  chan struct{}
	once  sync.Once
	err   error
}

// NewStream returns an open stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		items: make(chan T),
		term:  make(chan struct{}),
	}
}

// Send delivers one item to the consumer, blocking until the consumer has
// accepted it. It fails if the stream is already terminal or ctx is done.
func (s *Stream[T]) Send(ctx context.Context, v T) error {
	// Check terminal first so a closed stream never accepts an item even
	// when the consumer is still draining.
	select {
	case <-s.term:
		return s.terminalErr()
	default:
	}
	select {
	case s.items <- v:
		return nil
	case <-s.term:
		return s.terminalErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close moves the stream to its success terminal state. No-op if terminal.
func (s *Stream[T]) Close() {
	s.once.Do(func() { close(s.term) })
}

// Fail moves the stream to its error terminal state. No-op if terminal.
func (s *Stream[T]) Fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.term)
	})
}

// Err returns the terminal error, or nil while open or closed successfully.
func (s *Stream[T]) Err() error {
	select {
	case <-s.term:
		return s.err
	default:
		return nil
	}
}

func (s *Stream[T]) terminalErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrStreamTerminated
}

// Drain consumes the stream sequentially, invoking fn for every item in
// production order. A callback failure moves the stream to its error
// terminal state (so the producer's next Send fails) and is returned.
// Drain returns nil exactly when the stream closed successfully.
func (s *Stream[T]) Drain(ctx context.Context, fn func(T) error) error {
	for {
		select {
		case v := <-s.items:
			if err := fn(v); err != nil {
				s.Fail(err)
				return err
			}
		case <-s.term:
			return s.err
		case <-ctx.Done():
			s.Fail(ctx.Err())
			return ctx.Err()
		}
	}
}
