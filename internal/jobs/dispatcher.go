// Package jobs defines the background review pipeline: the worker-pool
// dispatcher, the review orchestrator, and installation registry sync.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/diff0/diff0/internal/core"
)

// dispatcher implements core.JobDispatcher and manages a pool of worker
// goroutines processing review requests. Reviews for different pull requests
// run concurrently and independently; the only shared state is the database,
// accessed through atomic read-then-conditional-write operations.
type dispatcher struct {
	reviewJob  core.Job                 // Job implementation executed by each worker.
	jobQueue   chan *core.ReviewRequest // Queue of pending review requests.
	maxWorkers int                      // Number of concurrent workers.
	wg         sync.WaitGroup           // Tracks active workers for graceful shutdown.
	logger     *slog.Logger
}

// NewDispatcher initializes a dispatcher with a worker pool.
// If maxWorkers is 0 or negative, it defaults to 1.
func NewDispatcher(reviewJob core.Job, maxWorkers int, logger *slog.Logger) core.JobDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	d := &dispatcher{
		reviewJob:  reviewJob,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *core.ReviewRequest, 100),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

// startWorkers launches maxWorkers goroutines to process jobs from the queue.
func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes requests from the queue until it's closed.
func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting review worker", "id", workerID)

	for req := range d.jobQueue {
		d.processRequest(workerID, req)
	}

	d.logger.Info("shutting down review worker", "id", workerID)
}

// processRequest runs one review attempt. Errors are captured onto the
// review record and the event ledger by the job itself; here they are only
// logged since the webhook response has long been sent.
func (d *dispatcher) processRequest(workerID int, req *core.ReviewRequest) {
	d.logger.Info("worker processing review request",
		"worker_id", workerID,
		"repo", req.RepoFullName,
		"pr", req.PRNumber,
	)

	if err := d.reviewJob.Run(context.Background(), req); err != nil {
		d.logger.Error("review job failed",
			"repo", req.RepoFullName,
			"pr", req.PRNumber,
			"error", err,
		)
	}
}

// Dispatch queues a review request for processing by a worker.
func (d *dispatcher) Dispatch(_ context.Context, req *core.ReviewRequest) error {
	d.logger.Info("queuing review request", "repo", req.RepoFullName, "pr", req.PRNumber)

	select {
	case d.jobQueue <- req:
		return nil
	default:
		return fmt.Errorf("job queue is full, cannot accept new review request")
	}
}

// Stop gracefully shuts down the dispatcher, waiting for in-flight reviews
// to finish so their sandboxes are released.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for reviews to finish")
	close(d.jobQueue)
	d.wg.Wait()
	d.logger.Info("all review jobs have finished")
}
