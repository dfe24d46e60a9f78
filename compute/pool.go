// Package compute provides a persistent worker pool for data-parallel
// passes over index ranges.
package compute

import (
	"runtime"
	"sync"
)

// serialThreshold is the minimum element count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const serialThreshold = 64

// span is a half-open index range dispatched to one worker.
type span struct {
	start, end int
	fn         func(start, end int)
}

// Pool runs functions over index ranges on a fixed set of persistent
// workers. Workers are launched lazily on the first parallel Run and
// reused across passes. Run blocks until every dispatched span has
// completed, so consecutive passes never overlap.
type Pool struct {
	workers int

	workChan chan span
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewPool creates a pool with the given worker count. A count of zero or
// less means one worker per logical CPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the number of workers the pool dispatches across.
func (p *Pool) Workers() int { return p.workers }

// start launches persistent worker goroutines.
func (p *Pool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan span, p.workers)
	p.doneChan = make(chan struct{}, p.workers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker processes spans until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case s, ok := <-p.workChan:
			if !ok {
				return
			}
			s.fn(s.start, s.end)
			p.doneChan <- struct{}{}
		}
	}
}

// Run splits [0, n) into one contiguous chunk per worker, invokes fn on
// each chunk concurrently, and waits for all chunks to finish. Small n
// runs inline on the calling goroutine. fn must not call Run on the same
// pool.
func (p *Pool) Run(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n < serialThreshold || p.workers == 1 {
		fn(0, n)
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.workers - 1) / p.workers

	dispatched := 0
	for w := 0; w < p.workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		p.workChan <- span{start: start, end: end, fn: fn}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

// Close signals all workers to exit and waits for them. Safe to call more
// than once. A later Run restarts the workers.
func (p *Pool) Close() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}
