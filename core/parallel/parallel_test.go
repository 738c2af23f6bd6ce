package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryItemOnce(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100, 1001} {
		counts := make([]int, items)
		var mu sync.Mutex
		Parallelize(items, func(start, end int) {
			mu.Lock()
			defer mu.Unlock()
			for i := start; i < end; i++ {
				counts[i]++
			}
		})
		for i, c := range counts {
			assert.Equal(t, 1, c, "item %d of %d", i, items)
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 50, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestSetMaxWorkers(t *testing.T) {
	defer SetMaxWorkers(0)
	SetMaxWorkers(2)
	assert.Equal(t, 2, Workers(100))
	assert.Equal(t, 1, Workers(1))
	assert.Equal(t, 0, Workers(0))
	SetMaxWorkers(-3)
	assert.GreaterOrEqual(t, Workers(1000), 1)
}
