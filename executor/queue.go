package executor

import (
	"context"
	"fmt"

	"github.com/inkbridge/inkbridge/fragment"
)

// Queue admits one Run at a time to the wrapped Runner. Later callers block
// until the slot frees or their context is done.
type Queue struct {
	runner Runner
	slot   chan struct{}
}

// NewQueue returns a single-slot queue in front of r.
func NewQueue(r Runner) *Queue {
	return &Queue{runner: r, slot: make(chan struct{}, 1)}
}

// Run waits for the slot, then runs prog on the wrapped Runner. A context
// that ends while waiting yields an *Error of kind ErrDispatchFailed wrapping
// ctx.Err(); nothing was dispatched.
func (q *Queue) Run(ctx context.Context, prog *fragment.Program, opts ...Option) Result {
	select {
	case q.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{Error: &Error{
			Kind:     ErrDispatchFailed,
			ExitCode: -1,
			Err:      fmt.Errorf("wait for execution slot: %w", ctx.Err()),
		}}
	}
	defer func() { <-q.slot }()

	return q.runner.Run(ctx, prog, opts...)
}
