package flow

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs independent indexed jobs with bounded parallelism.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool
// workerCount: number of concurrent jobs (0 = use NumCPU)
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{workerCount: workerCount}
}

// ExecuteParallel calls operation(ctx, i) for every i in [0, n). Jobs write
// their results into caller-owned slots, so order is preserved by index.
//
// The first failure cancels the context handed to the remaining jobs and is
// returned. With one worker the jobs run in order on the calling goroutine and
// stop at the first failure.
func (p *WorkerPool) ExecuteParallel(
	ctx context.Context,
	n int,
	operation func(context.Context, int) error,
) error {
	if p.workerCount == 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := operation(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerCount)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return operation(gctx, i)
		})
	}
	return g.Wait()
}

// WorkerCount returns the parallelism bound.
func (p *WorkerPool) WorkerCount() int {
	return p.workerCount
}
