package kernel

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// landmarkStream separates the landmark RNG stream from the optimizer's.
const landmarkStream = 0x6c616e64

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), landmarkStream))
}

// uniformLandmarks returns m distinct sorted rows of [0, n).
func uniformLandmarks(n, m int, rnd *rand.Rand) []int {
	rows := rnd.Perm(n)[:m]
	sort.Ints(rows)
	return rows
}

// pilotSize is the size of the uniform pilot set used to approximate ridge
// leverage scores.
func pilotSize(n, m int) int {
	p := 2 * m
	if p < 20 {
		p = 20
	}
	if p > n {
		p = n
	}
	return p
}

// leverageScores approximates the ridge leverage score of every row from a
// pilot set S: l_i = (k_ii - k_iS (K_SS + λI)^{-1} k_Si) / λ, summed over
// alternatives. ok is false when no alternative yields a usable factorization.
func leverageScores(blocks []*mat.Dense, fns []Function, pilot []int, lambda float64) (scores []float64, ok bool) {
	n, _ := blocks[0].Dims()
	scores = make([]float64, n)
	p := len(pilot)
	for a, X := range blocks {
		pilotRows := rowsOf(X, pilot)
		kss := Compute(fns[a], pilotRows, pilotRows)
		sym := mat.NewSymDense(p, nil)
		for i := 0; i < p; i++ {
			for j := i; j < p; j++ {
				v := 0.5 * (kss.At(i, j) + kss.At(j, i))
				if i == j {
					v += lambda
				}
				sym.SetSym(i, j, v)
			}
		}
		var chol mat.Cholesky
		if !chol.Factorize(sym) {
			continue
		}
		knS := Compute(fns[a], X, pilotRows)
		var sol mat.Dense
		if err := chol.SolveTo(&sol, knS.T()); err != nil {
			continue
		}
		diag := diagonal(fns[a], X)
		for i := 0; i < n; i++ {
			q := mat.Dot(knS.RowView(i), sol.ColView(i))
			l := (diag[i] - q) / lambda
			if l > 0 {
				scores[i] += l
			}
		}
		ok = true
	}
	return scores, ok
}

// rlsLandmarks samples m rows without replacement with probability
// proportional to their approximate ridge leverage scores.
func rlsLandmarks(blocks []*mat.Dense, fns []Function, m int, lambda float64, rnd *rand.Rand) []int {
	n, _ := blocks[0].Dims()
	pilot := uniformLandmarks(n, pilotSize(n, m), rnd)
	scores, ok := leverageScores(blocks, fns, pilot, lambda)
	if !ok {
		return uniformLandmarks(n, m, rnd)
	}
	for i := range scores {
		scores[i] += 1e-12
	}
	w := sampleuv.NewWeighted(scores, rand.NewPCG(rnd.Uint64(), landmarkStream))
	rows := make([]int, 0, m)
	for len(rows) < m {
		idx, ok := w.Take()
		if !ok {
			break
		}
		rows = append(rows, idx)
	}
	sort.Ints(rows)
	return rows
}

func rowsOf(X *mat.Dense, rows []int) *mat.Dense {
	_, d := X.Dims()
	out := mat.NewDense(len(rows), d, nil)
	for k, i := range rows {
		out.SetRow(k, X.RawRowView(i))
	}
	return out
}
