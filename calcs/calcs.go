// Package calcs computes log-likelihoods, gradients and choice probabilities
// of kernel logit models.
//
// Parameters are passed as one flat vector. The first NumCols·NumAlternatives
// entries hold alpha in row-major order, x[c*A+a] = alpha[c, a]; the nested
// model appends one scale per nest. A nil batch means every sample.
package calcs

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/kernel"
	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// Calcs is the likelihood engine shared by the flat and nested models.
// Implementations never modify the kernel matrix or params.
type Calcs interface {
	// Kernel returns the matrix the engine evaluates.
	Kernel() *kernel.Matrix

	// NumParams returns the length of the parameter vector.
	NumParams() int

	// NumSamples returns the number of samples of the kernel matrix.
	NumSamples() int

	// InitialParams returns zero alpha (and unit nest scales).
	InitialParams() []float64

	// CheckParams reports a parameter vector of the wrong length.
	CheckParams(params []float64) error

	// SplitParams returns alpha as a (NumCols × NumAlternatives) matrix and
	// the nest scales (nil for the flat model). Alpha shares params' storage.
	SplitParams(params []float64) (alpha *mat.Dense, lambd []float64)

	LogLikelihood(params []float64, batch []int) float64
	Gradient(params []float64, batch []int) []float64
	LogLikelihoodAndGradient(params []float64, batch []int) (float64, []float64)

	// Probabilities returns the (n_samples × NumAlternatives) choice probabilities.
	Probabilities(params []float64) *mat.Dense
}

// rows expands a nil batch to every sample.
func rows(batch []int, n int) []int {
	if batch != nil {
		return batch
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	return all
}

func checkLength(op string, params []float64, want int) error {
	if len(params) != want {
		return errors.NewDimensionError(op, want, len(params), 1)
	}
	return nil
}

// alphaColumns copies each column of alpha into its own slice for fast dot
// products against kernel rows.
func alphaColumns(alpha *mat.Dense) [][]float64 {
	_, A := alpha.Dims()
	cols := make([][]float64, A)
	for a := range cols {
		cols[a] = mat.Col(nil, a, alpha)
	}
	return cols
}

// scatterGradient writes per-alternative gradient columns into the flat
// row-major layout of alpha.
func scatterGradient(dst []float64, cols [][]float64) {
	A := len(cols)
	for a, col := range cols {
		for c, v := range col {
			dst[c*A+a] = v
		}
	}
}
