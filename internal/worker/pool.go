// Package worker runs batched create statements against the target database.
// Batch groups are independent of each other, so they can be uploaded
// concurrently once the identifier map is frozen.
package worker

import (
	"context"
	"sync"

	"neotransfer/internal/graph"
	"neotransfer/internal/metrics"

	"go.uber.org/zap"
)

// Pool manages a pool of batch-upload workers.
type Pool struct {
	size    int
	target  graph.Executor
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewPool creates a worker pool of the given size. collector may be nil.
func NewPool(size int, target graph.Executor, collector *metrics.Collector, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:    size,
		target:  target,
		metrics: collector,
		logger:  logger,
	}
}

// Start launches the workers. Results are delivered on results; the caller
// closes tasks to stop the pool and waits on wg before closing results.
func (p *Pool) Start(ctx context.Context, tasks <-chan Task, results chan<- Result, wg *sync.WaitGroup) {
	if p.metrics != nil {
		p.metrics.SetInflightBatches(p.size)
	}
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, tasks, results, wg)
	}
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan Task, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))

	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}

			result, err := p.target.WriteQuery(ctx, task.Cypher, task.Params)
			if err != nil {
				if p.metrics != nil {
					p.metrics.IncBatch(task.Kind, "error")
				}
				logger.Error("batch upload failed",
					zap.String("kind", task.Kind),
					zap.String("group", task.Group),
					zap.Int("rows", task.Rows),
					zap.Error(err),
				)
			} else {
				if p.metrics != nil {
					p.metrics.IncBatch(task.Kind, "success")
				}
				logger.Debug("batch uploaded",
					zap.String("kind", task.Kind),
					zap.String("group", task.Group),
					zap.Int("rows", task.Rows),
				)
			}

			select {
			case results <- Result{Task: task, Result: result, Err: err}:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
