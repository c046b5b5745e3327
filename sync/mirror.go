// ABOUTME: FIFO queue of cloud mirror writes served by a single worker goroutine
// ABOUTME: Callers never block on enqueue; Flush waits for the queue to drain
package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

type mirrorJob struct {
	op       string
	entityID string
	run      func(ctx context.Context) error
}

// mirrorQueue runs jobs one at a time in the order they were enqueued.
type mirrorQueue struct {
	mu      gosync.Mutex
	cond    *gosync.Cond
	jobs    []mirrorJob
	pending int
	closed  bool
	done    chan struct{}

	timeout   time.Duration
	onFailure func(job mirrorJob, err error)
	logger    *zap.Logger
}

func newMirrorQueue(timeout time.Duration, logger *zap.Logger, onFailure func(mirrorJob, error)) *mirrorQueue {
	q := &mirrorQueue{
		done:      make(chan struct{}),
		timeout:   timeout,
		onFailure: onFailure,
		logger:    logger,
	}
	q.cond = gosync.NewCond(&q.mu)
	go q.loop()
	return q
}

// enqueue adds a job. It reports false when the queue is closed.
func (q *mirrorQueue) enqueue(job mirrorJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("mirror queue closed, dropping job",
			zap.String("op", job.op),
			zap.String("entity_id", job.entityID))
		return false
	}
	q.jobs = append(q.jobs, job)
	q.pending++
	q.cond.Broadcast()
	return true
}

// flush blocks until every job enqueued so far has finished.
func (q *mirrorQueue) flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 {
		q.cond.Wait()
	}
}

// close drains outstanding jobs and stops the worker.
func (q *mirrorQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *mirrorQueue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = mirrorJob{}
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.execute(job)

		q.mu.Lock()
		q.pending--
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *mirrorQueue) execute(job mirrorJob) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := job.run(ctx); err != nil {
		q.onFailure(job, err)
		return
	}
	q.logger.Debug("mirrored", zap.String("op", job.op), zap.String("entity_id", job.entityID))
}
