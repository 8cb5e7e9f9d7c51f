package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/doctext/internal/common"
	"github.com/joseph-ayodele/doctext/internal/pipeline"
)

// ProcessorQueue bounds how many extractions run at once. Submit blocks until
// the job has run, the caller gives up while it is still queued, or shutdown.
type ProcessorQueue struct {
	proc    Extractor
	logger  *slog.Logger
	workers int

	ch       chan Job
	wg       sync.WaitGroup
	once     sync.Once
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	inFlight atomic.Int64
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func NewProcessorQueue(proc Extractor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		ch:      make(chan Job, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for {
					select {
					case job := <-q.ch:
						q.run(workerID, job)
					case <-q.quit:
						q.drain(workerID)
						q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
						return
					}
				}
			}(i + 1)
		}
		go func() {
			q.wg.Wait()
			close(q.done)
		}()
	})
}

func (q *ProcessorQueue) drain(workerID int) {
	for {
		select {
		case job := <-q.ch:
			q.run(workerID, job)
		default:
			return
		}
	}
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	if err := job.ctx.Err(); err != nil {
		q.logger.Warn("queue.job.expired",
			"worker_id", workerID,
			"request_id", common.RequestIDFromContext(job.ctx),
			"waited", time.Since(job.SubmittedAt),
		)
		job.reply <- result{err: fmt.Errorf("%w: %v", ErrRejected, err)}
		return
	}

	q.inFlight.Add(1)
	defer q.inFlight.Add(-1)
	out := q.proc.Extract(context.WithoutCancel(job.ctx), job.Request)
	job.reply <- result{out: out}
}

// Submit queues req and waits for its outcome.
func (q *ProcessorQueue) Submit(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error) {
	select {
	case <-q.quit:
		return pipeline.Outcome{}, ErrQueueClosed
	default:
	}

	job := Job{Request: req, SubmittedAt: time.Now(), ctx: ctx, reply: make(chan result, 1)}
	select {
	case q.ch <- job:
	case <-ctx.Done():
		q.logger.Warn("queue.submit.rejected", "request_id", common.RequestIDFromContext(ctx), "err", ctx.Err())
		return pipeline.Outcome{}, fmt.Errorf("%w: %v", ErrRejected, ctx.Err())
	case <-q.quit:
		return pipeline.Outcome{}, ErrQueueClosed
	}

	select {
	case r := <-job.reply:
		return r.out, r.err
	case <-q.done:
		// workers are gone; a reply may still have raced in
		select {
		case r := <-job.reply:
			return r.out, r.err
		default:
			return pipeline.Outcome{}, ErrQueueClosed
		}
	}
}

// Pending is the number of jobs waiting for a worker.
func (q *ProcessorQueue) Pending() int { return len(q.ch) }

// InFlight is the number of jobs currently being extracted.
func (q *ProcessorQueue) InFlight() int { return int(q.inFlight.Load()) }

// Shutdown stops accepting work, lets workers drain what is queued and waits
// for them until ctx ends.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.quit) })

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-q.done:
		q.logger.Info("queue.shutdown.ok")
	}
}
