// Package worker drains export jobs and re-publishes the match table.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/league/internal/adapters/mq/queue"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Exporter writes the current match table to its destination.
type Exporter interface {
	Export(ctx context.Context, reason string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// drainer is implemented by queues that can hand out jobs without blocking.
type drainer interface {
	TryDequeue() (Job, bool)
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)
	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker runs one export per burst of queued jobs.
type InMemoryWorker struct {
	queue    Queue
	exporter Exporter
	name     string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, exporter Exporter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		exporter: exporter,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-w.shutdown:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "export failed", logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker and waits for it to exit. Jobs still queued
// are left behind.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process folds every job already waiting into a single export.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	folded := 0
	if d, ok := w.queue.(drainer); ok {
		for {
			if _, ok := d.TryDequeue(); !ok {
				break
			}
			folded++
		}
	}

	if err := w.exporter.Export(ctx, job.Reason); err != nil {
		metrics.RecordExportError()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "export_error")
		return fmt.Errorf("export (%s): %w", job.Reason, err)
	}

	metrics.RecordExport(float64(time.Since(start).Milliseconds()))
	w.logger.Debug(ctx, "match table exported",
		logger.String("reason", job.Reason),
		logger.String("match_id", job.MatchID),
		logger.Int("folded", folded),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. Counts below one mean a single worker so
// exports stay serialized.
func NewPool(workerCount int, q Queue, exporter Exporter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, exporter, wopts...)
	}
	metrics.UpdateWorkerActiveCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue so queued jobs drain, then waits for workers.
// Workers still busy when the drain deadline passes are stopped after their
// current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		select {
		case <-w.done:
			continue
		case <-drainCtx.Done():
		}
		p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		stopCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), workerShutdownTimeout)
		if err := w.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", i, err))
		}
		stop()
	}
	metrics.UpdateWorkerActiveCount(0)
	return errors.Join(errs...)
}
