package polling

import (
	"context"
	"sync"
)

// Job is one unit of per-device polling work.
type Job func(ctx context.Context)

// WorkerPool is a bounded pool of N goroutines draining a jobs
// channel, grounded on the teacher pack's worker-pool idiom
// (kazuyuki114-snmp_collector/pkg/snmpcollector/poller/worker.go),
// including its Stop's close-then-wait join.
type WorkerPool struct {
	workers int
	jobs    chan Job
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = 5
	}
	return &WorkerPool{
		workers: workers,
		jobs:    make(chan Job, workers*2),
		done:    make(chan struct{}),
	}
}

// Start spawns the pool's goroutines; they run until ctx is cancelled
// or Stop is called.
func (p *WorkerPool) Start(ctx context.Context) {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job(ctx)
		}
	}
}

// Submit blocks until a slot is free, ctx is cancelled, or the pool
// stops.
func (p *WorkerPool) Submit(ctx context.Context, job Job) {
	select {
	case p.jobs <- job:
	case <-ctx.Done():
	case <-p.done:
	}
}

// TrySubmit submits without blocking, reporting whether the job was
// accepted.
func (p *WorkerPool) TrySubmit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop signals every worker goroutine to exit after its current job
// and blocks until they have all returned, or until ctx is done —
// whichever comes first. Safe to call more than once.
func (p *WorkerPool) Stop(ctx context.Context) {
	p.once.Do(func() { close(p.done) })

	joined := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-ctx.Done():
	}
}
