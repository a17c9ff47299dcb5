package tools

import (
	"context"
	"errors"
	"log"
)

// ToolFunc is a background task such as a batch watch or a reconcile pass.
type ToolFunc func(ctx context.Context) error

// Dispatch runs fn in its own goroutine. Failures and panics are logged with
// the task name; cancellation is not reported.
func Dispatch(ctx context.Context, name string, fn ToolFunc) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[%s] panic: %v", name, r)
			}
		}()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[%s] failed: %v", name, err)
		}
	}()
}
