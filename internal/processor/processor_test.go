package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dustingooding/radix-relay/internal/logging"
	"github.com/dustingooding/radix-relay/internal/processor"
	"github.com/dustingooding/radix-relay/internal/queue"
)

func TestRunDispatchesEveryItem(t *testing.T) {
	q := queue.New[int](4)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	var sum int
	done := make(chan struct{})
	go func() {
		_ = processor.Run(context.Background(), logging.New("test"), q, func(ctx context.Context, item int) error {
			sum += item
			if sum == 6 {
				q.Close()
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run never returned after queue close")
	}
	if sum != 6 {
		t.Fatalf("sum = %d, want 6", sum)
	}
}

func TestRunSurvivesHandlerErrors(t *testing.T) {
	q := queue.New[int](2)
	q.Push(1)
	q.Push(2)
	q.Close()

	var calls int
	err := processor.Run(context.Background(), logging.New("test"), q, func(ctx context.Context, item int) error {
		calls++
		return errors.New("handler failed")
	})
	if err != nil {
		t.Fatalf("Run returned %v, want nil (handler errors are logged, not propagated)", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRunReturnsOnContextCancellation(t *testing.T) {
	q := queue.New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := processor.Run(ctx, logging.New("test"), q, func(ctx context.Context, item int) error {
		t.Fatal("handler should never be called on an already-cancelled context")
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
}
