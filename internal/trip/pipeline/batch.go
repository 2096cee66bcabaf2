package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one trip in a batch.
type BatchItem struct {
	Trip   string
	Result *Result
	Err    error
}

// RunBatch runs every context with at most workers trips in flight.
// Items are returned in input order. A trip that fails to load or run is
// reported in its item; only cancellation of ctx stops the batch early.
func RunBatch(ctx context.Context, contexts []*Context, workers int) ([]BatchItem, error) {
	items := make([]BatchItem, len(contexts))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, pc := range contexts {
		items[i].Trip = pc.Name()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			res, err := RunTrip(gctx, pc)
			items[i].Result, items[i].Err = res, err
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	err := g.Wait()
	return items, err
}
