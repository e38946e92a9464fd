package services

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/promptlib/pkg/response"
)

// DefaultActionTimeout bounds a guarded action when no deadline is given.
const DefaultActionTimeout = 3500 * time.Millisecond

// ErrActionDeadline marks a timeout raised by WithTimeout's own deadline. It
// also matches response.ErrTimeout, but timeout errors returned by the
// operation or caused by the caller's context never match it.
var ErrActionDeadline = errors.New("action deadline exceeded")

// deadlineError is the KindTimeout AppError WithTimeout returns when its own
// deadline fires.
type deadlineError struct {
	*response.AppError
}

func (e deadlineError) Is(target error) bool {
	return target == ErrActionDeadline
}

func (e deadlineError) Unwrap() error {
	return e.AppError
}

type actionResult[T any] struct {
	value T
	err   error
}

// WithTimeout runs op under a deadline. If op settles first its value or error
// is returned as is. Otherwise op's context is cancelled and an error matching
// both ErrActionDeadline and response.ErrTimeout is returned. A parent deadline
// yields a plain KindTimeout AppError. The timer is released on every path.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		d = DefaultActionTimeout
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(d)
	defer timer.Stop()

	done := make(chan actionResult[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- actionResult[T]{value: v, err: err}
	}()

	var zero T
	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		cancel()
		return zero, deadlineError{response.NewTimeout("server is busy, please retry")}
	case <-ctx.Done():
		cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, response.NewTimeout("server is busy, please retry")
		}
		return zero, ctx.Err()
	}
}
