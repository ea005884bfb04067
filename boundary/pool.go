package boundary

import (
	"runtime"
	"sync"
)

// Pool runs an index-preserving map over independent inputs with a fixed
// number of workers. each index is handed to exactly one worker, so
// workers never write to the same output slot.
type Pool struct {
	Workers int // <= 0 means runtime.NumCPU()
}

// Map calls fn(i) for every i in [0, n) and returns once all calls have
// finished.
func (p Pool) Map(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	maxWorkers := p.Workers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if n < maxWorkers {
		maxWorkers = n
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	wg.Add(maxWorkers)
	for w := 0; w < maxWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
