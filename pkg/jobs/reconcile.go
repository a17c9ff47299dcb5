package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/bulkverify/credits-portal/pkg/tools"
)

// Reconciler is implemented by services.BatchService.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// ScheduleReconcile sets up a cron job that polls stale processing batches.
// The scheduler stops when ctx is done.
func ScheduleReconcile(ctx context.Context, r Reconciler, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		tools.Dispatch(ctx, "reconcile", func(ctx context.Context) error {
			n, err := r.Reconcile(ctx)
			if n > 0 {
				log.Printf("[reconcile] settled %d batches", n)
			}
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}
