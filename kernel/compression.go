package kernel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// eigenCutoff is the relative threshold below which eigenvalues of K_mm are
// treated as zero.
const eigenCutoff = 1e-10

// inverseSqrt returns K^{-1/2} for a symmetric positive semi-definite K via
// its eigendecomposition. Directions with eigenvalue below eigenCutoff·max
// are dropped (their inverse root is zero).
func inverseSqrt(K *mat.Dense) (*mat.Dense, error) {
	m, _ := K.Dims()
	sym := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			sym.SetSym(i, j, 0.5*(K.At(i, j)+K.At(j, i)))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, errors.NewModelError("kernel.inverseSqrt", "eigendecomposition failed", errors.ErrSingularMatrix)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	maxValue := floats.Max(values)
	if maxValue <= 0 {
		return nil, errors.NewModelError("kernel.inverseSqrt", "landmark kernel has no positive eigenvalue", errors.ErrSingularMatrix)
	}
	scaled := mat.DenseCopyOf(&vectors)
	for j, v := range values {
		s := 0.0
		if v > eigenCutoff*maxValue {
			s = 1 / math.Sqrt(v)
		}
		col := mat.Col(nil, j, scaled)
		floats.Scale(s, col)
		scaled.SetCol(j, col)
	}
	var out mat.Dense
	out.Mul(scaled, vectors.T())
	return &out, nil
}
