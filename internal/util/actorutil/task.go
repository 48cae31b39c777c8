package actorutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var (
	ErrTaskTimeout   = errors.New("background task timed out")
	ErrTaskNilResult = errors.New("background task result is nil")
)

// SafeBackgroundTask runs a blocking call off the actor goroutine and hands its outcome
// back to an actor as a message. Panics in the call are turned into errors.
type SafeBackgroundTask[T any] struct {
	ctx     actor.Context
	fn      func() (*T, error)
	timeout time.Duration
	recover func(error) T
	discard func(T)
}

type taskResult[T any] struct {
	value T
	err   error
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		ctx: ctx,
		fn:  fn,
	}
}

func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = timeout
	return t
}

// Recover maps a failure (timeout included) to a message. Without it failures are dropped.
func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

// Discard receives a successful result that arrived after the timeout.
func (t *SafeBackgroundTask[T]) Discard(fn func(T)) *SafeBackgroundTask[T] {
	t.discard = fn
	return t
}

func (t *SafeBackgroundTask[T]) PipeTo(pid *actor.PID) {
	root := t.ctx.ActorSystem().Root
	go func() {
		if value, ok := t.Run(); ok {
			root.Send(pid, value)
		}
	}()
}

// Run blocks until the call completes or the timeout expires. The boolean is false when
// the call failed and no Recover was set.
func (t *SafeBackgroundTask[T]) Run() (T, bool) {
	call := t.eval
	if t.timeout > 0 {
		call = t.evalWithDeadline
	}
	result := io.RunSync(io.Eval(call))
	if result.Error != nil {
		if t.recover != nil {
			return t.recover(result.Error), true
		}
		var zero T
		return zero, false
	}
	return result.Value, true
}

func (t *SafeBackgroundTask[T]) eval() (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("background task panic: %v", r)
		}
	}()
	res, err := t.fn()
	if err != nil {
		return value, err
	}
	if res == nil {
		return value, ErrTaskNilResult
	}
	return *res, nil
}

func (t *SafeBackgroundTask[T]) evalWithDeadline() (T, error) {
	done := make(chan taskResult[T], 1)
	go func() {
		value, err := t.eval()
		done <- taskResult[T]{value: value, err: err}
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		if t.discard != nil {
			go func() {
				if r := <-done; r.err == nil {
					t.discard(r.value)
				}
			}()
		}
		var zero T
		return zero, fmt.Errorf("%w after %s", ErrTaskTimeout, t.timeout)
	}
}
