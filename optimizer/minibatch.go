package optimizer

import "math/rand/v2"

// batchStream separates the mini-batch RNG stream from the landmark one.
const batchStream = 0x62617463

// RandomMiniBatches shuffles [0, n) with seed and splits the permutation into
// contiguous batches of size (the last one may be shorter). The result is a
// deterministic function of (n, size, seed).
func RandomMiniBatches(n, size int, seed int64) [][]int {
	if n <= 0 || size <= 0 {
		return nil
	}
	perm := rand.New(rand.NewPCG(uint64(seed), batchStream)).Perm(n)
	batches := make([][]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		batches = append(batches, perm[start:end:end])
	}
	return batches
}
