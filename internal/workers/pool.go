// Package workers runs batches of independent jobs on a fixed set of
// goroutines.
package workers

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool distributes jobs round-robin over per-worker queues. An idle worker
// steals from the other queues before blocking on its own.
//
// Pool is safe for concurrent use.
type Pool struct {
	queues []chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	open   atomic.Bool
}

// New starts a pool with n workers. n <= 0 means GOMAXPROCS.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	depth := max(n*4, 8)
	p := &Pool{
		queues: make([]chan func(), n),
		done:   make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}
	p.open.Store(true)
	p.wg.Add(n)
	for i := range n {
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case job := <-own:
			job()
			continue
		case <-p.done:
			drain(own)
			return
		default:
		}
		if job := p.steal(id); job != nil {
			job()
			continue
		}
		select {
		case job := <-own:
			job()
		case <-p.done:
			drain(own)
			return
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case job := <-q:
			job()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.queues {
		if i == id {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Run executes jobs and waits for all of them. After Close, Run executes
// the jobs on the calling goroutine.
func (p *Pool) Run(jobs []func()) {
	if len(jobs) == 0 {
		return
	}
	if len(jobs) == 1 || !p.open.Load() {
		for _, job := range jobs {
			job()
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		wrapped := func() {
			defer wg.Done()
			job()
		}
		select {
		case p.queues[i%len(p.queues)] <- wrapped:
		case <-p.done:
			wrapped()
		}
	}
	wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return len(p.queues) }

// Close stops the workers after the queued jobs have run. Close is
// idempotent.
func (p *Pool) Close() {
	if !p.open.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
