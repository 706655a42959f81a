// Package worker provides a bounded goroutine pool for webhook delivery
// attempts, so slow endpoints cannot stall the watcher's poll loop.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job is one unit of work executed on the pool.
type Job interface {
	ID() string
	Execute(ctx context.Context) error
}

type Pool struct {
	size int
	jobs chan Job
	wg   sync.WaitGroup
	once sync.Once
}

func NewPool(size, queueSize int) *Pool {
	return &Pool{
		size: size,
		jobs: make(chan Job, queueSize),
	}
}

// Start launches the workers. They drain the queue until Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.size; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for job := range p.jobs {
				if ctx.Err() != nil {
					return
				}
				if err := job.Execute(ctx); err != nil {
					zap.L().Error("Worker job failed",
						zap.Int("worker_id", workerID),
						zap.String("job_id", job.ID()),
						zap.Error(err),
					)
				}
			}
		}(i)
	}
}

// Submit enqueues a job, returning false when the queue is full. Callers
// re-discover dropped work on the next poll.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
