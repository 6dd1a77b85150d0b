// ABOUTME: Worker pool that pulls ingestion messages off the queue
// ABOUTME: Each worker runs one job at a time; failures are logged, never propagated
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/queue"
	"github.com/harper/bookbuddy/internal/util"
)

// Runner processes a single ingestion message
type Runner interface {
	Run(ctx context.Context, msg queue.Message) error
}

// dequeueRetryDelay is the base backoff after a queue read error
const dequeueRetryDelay = 500 * time.Millisecond

// Scheduler runs a fixed number of workers over a queue
type Scheduler struct {
	queue   queue.Queue
	runner  Runner
	workers int
	log     logger.Logger
}

// NewScheduler creates a scheduler with at least one worker
func NewScheduler(q queue.Queue, runner Runner, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		queue:   q,
		runner:  runner,
		workers: workers,
		log:     logger.Component("scheduler"),
	}
}

// Run blocks until ctx is cancelled or the queue is closed and drained
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("starting ingestion workers", "workers", s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.work(ctx, id)
		}(i + 1)
	}
	wg.Wait()

	s.log.Info("ingestion workers stopped")
}

func (s *Scheduler) work(ctx context.Context, id int) {
	log := s.log.With("worker", id)
	failures := 0

	for {
		msg, err := s.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			failures++
			log.Warn("failed to dequeue", "error", err, "attempt", failures)
			if err := util.Sleep(ctx, util.CalculateBackoff(dequeueRetryDelay, failures-1)); err != nil {
				return
			}
			continue
		}
		failures = 0

		if err := s.runner.Run(ctx, msg); err != nil && !errors.Is(err, ErrAlreadyClaimed) {
			log.Error("job failed", "job_id", msg.JobID, "error", err)
		}
	}
}
