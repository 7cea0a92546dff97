// Package worker provides the concurrency primitives shared by the batch and
// extraction layers: a bounded document job pool and per-backend rate limiting.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of document work scheduled on the pool.
type Job interface {
	Run(ctx context.Context) Result
}

// Result is the outcome of a finished job.
type Result interface {
	Err() error
}

// Pool fans document jobs out to a fixed number of workers. One pool serves
// one batch: submit everything, then drain once to collect the results.
// Results are collected as jobs finish, so Submit never blocks on an
// unconsumed backlog.
type Pool struct {
	size      int
	jobs      chan Job
	results   chan Result
	collected []Result

	workerWg  sync.WaitGroup
	collectWg sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool with the given worker count, minimum one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		size:    size,
		jobs:    make(chan Job, size*2),
		results: make(chan Result, size*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers and the result collector.
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.workerWg.Add(1)
		go p.work()
	}
	p.collectWg.Add(1)
	go p.collect()
}

func (p *Pool) work() {
	defer p.workerWg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			select {
			case p.results <- job.Run(p.ctx):
			case <-p.ctx.Done():
				return
			}
		}
	}
}

func (p *Pool) collect() {
	defer p.collectWg.Done()
	for r := range p.results {
		p.collected = append(p.collected, r)
	}
}

// Submit queues one job. Submitting after Stop is a no-op.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.jobs <- job:
	}
}

// Drain closes the queue, waits for the workers and returns every result.
// Call exactly once, after the last Submit.
func (p *Pool) Drain() []Result {
	close(p.jobs)
	return p.finish()
}

// Stop cancels outstanding work immediately. In-flight jobs see the canceled
// context; queued jobs never run.
func (p *Pool) Stop() {
	p.cancel()
	p.finish()
}

func (p *Pool) finish() []Result {
	p.workerWg.Wait()
	p.closeOnce.Do(func() { close(p.results) })
	p.collectWg.Wait()
	return p.collected
}
