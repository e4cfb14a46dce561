package downloader

import (
	"context"
	"fmt"
	"sync"

	"douyindl/pkg/logger"
	"douyindl/pkg/media"
)

// Job is one task submitted to the pool
type Job struct {
	Index int
	Task  media.Task
}

// ProcessFunc downloads a single job
type ProcessFunc func(ctx context.Context, job Job, workerID int) Outcome

// WorkerPool runs a fixed number of workers over a job queue. Every
// submitted job yields exactly one outcome on Results.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Outcome
	wg          sync.WaitGroup
	process     ProcessFunc
	logger      logger.Logger
	stopOnce    sync.Once
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(numWorkers int, process ProcessFunc, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Outcome, numWorkers),
		process:     process,
		logger:      log,
	}
}

// Start launches the workers. Jobs picked up after ctx is done are reported
// as stopped without being processed.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.logger.Debug("Worker pool stopped")
	})
}

// Submit queues a job, failing once ctx is done
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return fmt.Errorf("worker pool is shutting down: %w", ctx.Err())
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", ctx.Err())
	}
}

// Results returns the outcome channel; it is closed by Stop
func (wp *WorkerPool) Results() <-chan Outcome {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if ctx.Err() != nil {
			wp.resultQueue <- Outcome{Kind: OutcomeStopped, Task: job.Task, Index: job.Index, Err: ctx.Err()}
			continue
		}
		wp.resultQueue <- wp.process(ctx, job, id)
	}
}
