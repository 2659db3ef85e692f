package parallel

import (
	"runtime"
	"sync"
)

// Workers resolves a requested worker count: values <= 0 mean runtime.NumCPU().
// The result never exceeds items.
func Workers(requested, items int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Parallelize divides items into one contiguous range per CPU core and runs fn
// on each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, 0, fn)
}

// ParallelizeN is Parallelize with an explicit worker count (<= 0 means NumCPU).
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := Workers(workers, items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn(i) for every i in [0, items) on a pool of workers and returns
// the error of the lowest index that failed. All items run even if one fails.
func ForEach(items, workers int, fn func(i int) error) error {
	if items == 0 {
		return nil
	}

	errs := make([]error, items)
	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < Workers(workers, items); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				errs[i] = fn(i)
			}
		}()
	}
	for i := 0; i < items; i++ {
		next <- i
	}
	close(next)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
