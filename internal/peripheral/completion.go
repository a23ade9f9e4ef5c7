package peripheral

import (
	"context"
	"errors"
	"sync"

	"github.com/srg/blelink/internal/ringchan"
)

// ErrStreamClosed is returned by Next/Wait when a completion ended without
// delivering another outcome, e.g. a connect stream closed by Disconnect.
var ErrStreamClosed = errors.New("completion closed without result")

// Outcome is one result delivered through a Completion. Keep reports that
// the stream stays open and more outcomes may follow.
type Outcome[T any] struct {
	Value T
	Err   error
	Keep  bool
}

// Completion is the caller-side handle of an asynchronous operation. Single
// shot operations deliver exactly one terminal outcome. Streams (connect,
// notifications) deliver any number of kept outcomes before an optional
// terminal one.
//
// Outcomes are buffered with overwrite-oldest semantics so the producer never
// blocks on a slow consumer.
type Completion[T any] struct {
	mu       sync.Mutex
	stream   *ringchan.RingChannel[Outcome[T]]
	done     chan struct{}
	finished bool
	last     *Outcome[T]
}

func newCompletion[T any](buffer int) *Completion[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &Completion[T]{
		stream: ringchan.New[Outcome[T]](buffer),
		done:   make(chan struct{}),
	}
}

// Failed returns a completion already failed with err, for requests rejected
// before they reach a peripheral.
func Failed[T any](err error) *Completion[T] {
	c := newCompletion[T](1)
	c.Fail(err)
	return c
}

// Emit delivers a value and keeps the stream open.
func (c *Completion[T]) Emit(v T) bool {
	return c.deliver(Outcome[T]{Value: v, Keep: true}, false)
}

// EmitError delivers a recoverable error and keeps the stream open.
func (c *Completion[T]) EmitError(err error) bool {
	return c.deliver(Outcome[T]{Err: err, Keep: true}, false)
}

// Resolve delivers the terminal value. Only the first terminal call wins.
func (c *Completion[T]) Resolve(v T) bool {
	return c.deliver(Outcome[T]{Value: v}, true)
}

// Fail delivers the terminal error. Only the first terminal call wins.
func (c *Completion[T]) Fail(err error) bool {
	return c.deliver(Outcome[T]{Err: err}, true)
}

// Close ends the stream without delivering an outcome.
func (c *Completion[T]) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return false
	}
	c.finish()
	return true
}

func (c *Completion[T]) deliver(o Outcome[T], terminal bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return false
	}
	c.stream.ForceSend(o)
	c.last = &o
	if terminal {
		c.finish()
	}
	return true
}

func (c *Completion[T]) finish() {
	c.finished = true
	c.stream.Close()
	close(c.done)
}

// Outcomes returns the outcome stream. It is closed after the terminal outcome.
func (c *Completion[T]) Outcomes() <-chan Outcome[T] {
	return c.stream.C()
}

// Done is closed once the completion reached a terminal state.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

// Pending reports whether the completion can still deliver outcomes.
func (c *Completion[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.finished
}

// Last returns the most recently delivered outcome, if any.
func (c *Completion[T]) Last() (Outcome[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Outcome[T]{}, false
	}
	return *c.last, true
}

// Next receives the next outcome from the stream.
func (c *Completion[T]) Next(ctx context.Context) (Outcome[T], error) {
	select {
	case o, ok := <-c.stream.C():
		if !ok {
			return Outcome[T]{}, ErrStreamClosed
		}
		return o, nil
	case <-ctx.Done():
		return Outcome[T]{}, ctx.Err()
	}
}

// Wait receives the next outcome and returns its value and error.
func (c *Completion[T]) Wait(ctx context.Context) (T, error) {
	o, err := c.Next(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return o.Value, o.Err
}
