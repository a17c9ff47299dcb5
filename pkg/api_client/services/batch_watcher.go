package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bulkverify/credits-portal/pkg/tools"
)

// PollFunc checks a batch once and reports whether it has finished.
type PollFunc func(ctx context.Context, batchID string) (bool, error)

// BatchWatcher polls vendors that never call back. It gives up after a fixed
// number of attempts; the reconcile job picks up whatever is left.
type BatchWatcher struct {
	attempts int
	interval time.Duration
	poll     PollFunc
}

func NewBatchWatcher(attempts int, interval time.Duration, poll PollFunc) *BatchWatcher {
	if attempts <= 0 {
		attempts = 10
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &BatchWatcher{attempts: attempts, interval: interval, poll: poll}
}

// Watch starts Run in the background. The watch outlives the request that
// started it.
func (w *BatchWatcher) Watch(ctx context.Context, batchID string) {
	tools.Dispatch(context.WithoutCancel(ctx), "batch-watch", func(ctx context.Context) error {
		return w.Run(ctx, batchID)
	})
}

func (w *BatchWatcher) Run(ctx context.Context, batchID string) error {
	for attempt := 1; attempt <= w.attempts; attempt++ {
		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		done, err := w.poll(ctx, batchID)
		if err != nil {
			log.Printf("[batch-watch] %s attempt %d/%d: %v", batchID, attempt, w.attempts, err)
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("batch %s still processing after %d attempts", batchID, w.attempts)
}
