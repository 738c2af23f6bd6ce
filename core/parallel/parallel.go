// Package parallel splits row ranges across goroutines. Kernel matrix
// construction is its only heavy user; estimation itself stays sequential.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// maxWorkers caps the worker count; 0 means runtime.GOMAXPROCS(0).
var maxWorkers atomic.Int64

// SetMaxWorkers caps the number of goroutines used by Parallelize. n <= 0
// restores the default.
func SetMaxWorkers(n int) {
	if n < 0 {
		n = 0
	}
	maxWorkers.Store(int64(n))
}

// Workers returns the number of workers Parallelize would use for items.
func Workers(items int) int {
	if items <= 0 {
		return 0
	}
	n := int(maxWorkers.Load())
	if n == 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > items {
		n = items
	}
	return n
}

// Parallelize divides [0, items) into contiguous chunks and runs fn on each
// chunk in its own goroutine. It returns when all chunks are done.
func Parallelize(items int, fn func(start, end int)) {
	numWorkers := Workers(items)
	if numWorkers == 0 {
		return
	}
	if numWorkers == 1 {
		fn(0, items)
		return
	}

	chunkSize := (items + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold and
// falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
