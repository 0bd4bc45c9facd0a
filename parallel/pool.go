// Package parallel provides the fixed-size worker pool used by every
// data-parallel simulation phase.
package parallel

import (
	"fmt"
	"runtime"
	"sync"
)

// DefaultThreshold is the minimum item count to fan out.
// Below this, running inline is faster than the channel round trips.
const DefaultThreshold = 256

// ChunkFunc processes items [start, end) on the given worker. Worker ids are
// in [0, Workers()) and a worker never runs two chunks at once, so per-worker
// scratch indexed by worker needs no locking.
type ChunkFunc func(worker, start, end int) error

// workChunk represents a range of items for a worker to process.
type workChunk struct {
	start, end int
	fn         ChunkFunc
}

// Pool is a set of persistent worker goroutines. A Pool runs one job at a time
// and is not safe for concurrent use by multiple callers.
type Pool struct {
	numWorkers int
	threshold  int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan error     // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// New returns a pool with the given number of workers (GOMAXPROCS if <= 0)
// and fan-out threshold (DefaultThreshold if <= 0). Workers start lazily.
func New(workers, threshold int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Pool{numWorkers: workers, threshold: threshold}
}

// Workers returns the number of workers, which bounds worker ids.
func (p *Pool) Workers() int { return p.numWorkers }

// startWorkers launches persistent worker goroutines.
func (p *Pool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan error, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Close signals all workers to exit and waits for them.
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

// worker runs in a goroutine, processing chunks until stopped.
func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.doneChan <- runChunk(workerID, chunk)
		}
	}
}

func runChunk(workerID int, chunk workChunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d, items [%d, %d): panic: %v", workerID, chunk.start, chunk.end, r)
		}
	}()
	return chunk.fn(workerID, chunk.start, chunk.end)
}

// RunErr splits [0, n) into at most Workers() contiguous chunks and blocks
// until all of them are done. It returns the error of the lowest-indexed
// failing chunk. Small jobs run inline as worker 0.
func (p *Pool) RunErr(n int, fn ChunkFunc) error {
	if n <= 0 {
		return nil
	}
	if n < p.threshold || p.numWorkers == 1 {
		return runChunk(0, workChunk{start: 0, end: n, fn: fn})
	}

	// Ensure workers are running
	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	// Dispatch chunks to workers. Each chunk reports on its own slot so the
	// returned error does not depend on scheduling.
	errs := make([]error, p.numWorkers)
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}

		slot := w
		p.workChan <- workChunk{start: start, end: end, fn: func(worker, start, end int) error {
			errs[slot] = fn(worker, start, end)
			return nil
		}}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	var panicErr error
	for i := 0; i < chunksDispatched; i++ {
		if err := <-p.doneChan; err != nil && panicErr == nil {
			panicErr = err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return panicErr
}

// Run is RunErr for callbacks that cannot fail. A panicking callback is
// re-raised on the caller's goroutine.
func (p *Pool) Run(n int, fn func(worker, start, end int)) {
	err := p.RunErr(n, func(worker, start, end int) error {
		fn(worker, start, end)
		return nil
	})
	if err != nil {
		panic(err)
	}
}
