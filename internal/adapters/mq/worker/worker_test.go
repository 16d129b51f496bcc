package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/league/internal/adapters/mq/queue"
	"github.com/okian/league/internal/adapters/mq/worker"
	"github.com/okian/league/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockExporter struct {
	mu      sync.Mutex
	reasons []string
	err     error
}

func (m *mockExporter) Export(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
	return m.err
}

func (m *mockExporter) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reasons...)
}

type blockingExporter struct {
	mockExporter
	release chan struct{}
}

func (b *blockingExporter) Export(ctx context.Context, reason string) error {
	_ = b.mockExporter.Export(ctx, reason)
	<-b.release
	return nil
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from an in-memory queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		exp := &mockExporter{}
		w := worker.NewInMemoryWorker(q, exp, worker.WithName("export"), worker.WithLogger(logger.Nop()))

		convey.Convey("When a commit job is queued", func() {
			go w.Run(ctx)
			q.Enqueue(ctx, queue.Job{Reason: "commit", MatchID: "Poke|Alpha|Beta"})

			convey.Convey("Then the table is exported once", func() {
				convey.So(waitFor(func() bool { return len(exp.calls()) == 1 }), convey.ShouldBeTrue)
				convey.So(exp.calls()[0], convey.ShouldEqual, "commit")
			})
		})

		convey.Convey("When a burst of jobs is waiting", func() {
			for range 5 {
				q.Enqueue(ctx, queue.Job{Reason: "commit"})
			}
			go w.Run(ctx)

			convey.Convey("Then the burst collapses into fewer exports", func() {
				convey.So(waitFor(func() bool { return q.Len(ctx) == 0 && len(exp.calls()) > 0 }), convey.ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				convey.So(len(exp.calls()), convey.ShouldBeLessThan, 5)
			})
		})

		convey.Convey("When the exporter fails", func() {
			exp.err = errors.New("disk full")
			go w.Run(ctx)
			q.Enqueue(ctx, queue.Job{Reason: "commit"})
			convey.So(waitFor(func() bool { return len(exp.calls()) == 1 }), convey.ShouldBeTrue)
			exp.mu.Lock()
			exp.err = nil
			exp.mu.Unlock()
			q.Enqueue(ctx, queue.Job{Reason: "season"})

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return len(exp.calls()) == 2 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shut down", func() {
			go w.Run(ctx)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it exits cleanly", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		exp := &mockExporter{}

		convey.Convey("When created with a non-positive count", func() {
			p := worker.NewPool(0, q, exp, worker.WithLogger(logger.Nop()))

			convey.Convey("Then it runs a single worker", func() {
				convey.So(p.Size(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When jobs are queued and the pool shuts down", func() {
			p := worker.NewPool(2, q, exp, worker.WithLogger(logger.Nop()))
			p.Start(ctx)
			q.Enqueue(ctx, queue.Job{Reason: "season"})
			convey.So(waitFor(func() bool { return len(exp.calls()) >= 1 }), convey.ShouldBeTrue)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := p.Shutdown(shutdownCtx)

			convey.Convey("Then shutdown succeeds and the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a worker is still exporting at the drain deadline", func() {
			blocked := &blockingExporter{release: make(chan struct{})}
			p := worker.NewPool(1, q, blocked, worker.WithLogger(logger.Nop()))
			p.Start(ctx)
			q.Enqueue(ctx, queue.Job{Reason: "commit"})
			convey.So(waitFor(func() bool { return len(blocked.calls()) == 1 }), convey.ShouldBeTrue)
			q.Enqueue(ctx, queue.Job{Reason: "late"})

			go func() {
				time.Sleep(150 * time.Millisecond)
				close(blocked.release)
			}()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer shutdownCancel()
			err := p.Shutdown(shutdownCtx)

			convey.Convey("Then it is stopped after the job in flight", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(blocked.calls(), convey.ShouldResemble, []string{"commit"})
			})
		})
	})
}
