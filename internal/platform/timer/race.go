package timer

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that an operation lost the race against its time
// limit.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.Limit)
}

// Race runs op concurrently with a delay of limit and returns whichever
// side finishes first: op's result, or a *TimeoutError once the delay
// elapses. Exactly one of the two is ever produced. The losing operation is
// cancelled through its context, so an in-flight network call is abandoned
// and its connection closed; a late result is discarded without being
// observed by the caller.
func Race[T any](ctx context.Context, tm Timer, limit time.Duration, op func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	// Buffered so an abandoned op never blocks on delivery.
	done := make(chan outcome, 1)
	go func() {
		v, err := op(opCtx)
		done <- outcome{val: v, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		return out.val, out.err
	case <-tm.After(limit):
		return zero, &TimeoutError{Limit: limit}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
