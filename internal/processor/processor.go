// Package processor implements the generic run-loop shell of spec.md
// §4.10 (standard_processor): repeatedly pop one input from a queue,
// dispatch it to a handler, and treat queue shutdown as a clean exit.
// Grounded on the teacher's internal/services/queue_processor.go
// ctx/cancel/ticker loop, generalized from its one Ably-subscription
// use to any internal/queue.Queue[T] + handler pair.
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustingooding/radix-relay/internal/logging"
	"github.com/dustingooding/radix-relay/internal/queue"
)

// Handler processes one popped item. A returned error is logged and
// does not stop the loop; only the queue's own shutdown (ErrClosed /
// ErrCancelled) does.
type Handler[T any] func(ctx context.Context, item T) error

// Run pops from q and dispatches to handle until ctx is cancelled or q
// is closed/cancelled, whichever happens first.
func Run[T any](ctx context.Context, log *logging.Logger, q *queue.Queue[T], handle Handler[T]) error {
	for {
		item, err := q.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, queue.ErrCancelled) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("pop: %w", err)
		}

		if err := handle(ctx, item); err != nil {
			log.Error("handler error: %v", err)
		}
	}
}
