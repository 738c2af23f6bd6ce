// Package kernel builds the per-alternative kernel representation of a
// choice dataset.
//
// Each alternative a gets an (n_samples × n_support) matrix K_a whose entry
// (i, j) is k(x_i^a, s_j^a), where x_i^a are the attributes of sample i for
// alternative a and s_j^a the attributes of support row j. Support rows are
// all training rows, or a landmark subset when Nyström approximation is on.
package kernel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/core/parallel"
	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// rowThreshold is the row count below which kernel blocks are computed sequentially.
const rowThreshold = 64

// Function evaluates a kernel between two attribute vectors of equal length.
type Function interface {
	Eval(x, y []float64) float64
	Name() string
}

type rbf struct{ gamma float64 }

func (k rbf) Eval(x, y []float64) float64 {
	d := floats.Distance(x, y, 2)
	return math.Exp(-k.gamma * d * d)
}
func (rbf) Name() string { return RBF }

type linear struct{}

func (linear) Eval(x, y []float64) float64 { return floats.Dot(x, y) }
func (linear) Name() string                { return Linear }

type polynomial struct {
	gamma  float64
	coef0  float64
	degree int
}

func (k polynomial) Eval(x, y []float64) float64 {
	return math.Pow(k.gamma*floats.Dot(x, y)+k.coef0, float64(k.degree))
}
func (polynomial) Name() string { return Polynomial }

type laplacian struct{ gamma float64 }

func (k laplacian) Eval(x, y []float64) float64 {
	return math.Exp(-k.gamma * floats.Distance(x, y, 1))
}
func (laplacian) Name() string { return Laplacian }

// NewFunction returns the kernel function described by cfg for inputs with
// nFeatures columns. A zero gamma resolves to 1/nFeatures.
func NewFunction(cfg Config, nFeatures int) (Function, error) {
	gamma := cfg.Gamma
	if gamma == 0 && nFeatures > 0 {
		gamma = 1 / float64(nFeatures)
	}
	switch cfg.Name {
	case RBF:
		return rbf{gamma: gamma}, nil
	case Linear:
		return linear{}, nil
	case Polynomial:
		return polynomial{gamma: gamma, coef0: cfg.Coef0, degree: cfg.Degree}, nil
	case Laplacian:
		return laplacian{gamma: gamma}, nil
	default:
		return nil, errors.NewConfigurationErrorf("kernel.NewFunction", "name", "unknown kernel %q", cfg.Name)
	}
}

// Compute returns the (rows(X) × rows(Y)) matrix of kernel values. Rows of
// the result are filled in parallel.
func Compute(fn Function, X, Y mat.Matrix) *mat.Dense {
	n, d := X.Dims()
	m, _ := Y.Dims()
	yRows := make([][]float64, m)
	for j := range yRows {
		yRows[j] = mat.Row(nil, j, Y)
	}
	out := mat.NewDense(n, m, nil)
	parallel.ParallelizeWithThreshold(n, rowThreshold, func(start, end int) {
		x := make([]float64, d)
		row := make([]float64, m)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			for j, y := range yRows {
				row[j] = fn.Eval(x, y)
			}
			out.SetRow(i, row)
		}
	})
	return out
}

// diagonal returns k(x_i, x_i) for every row of X.
func diagonal(fn Function, X mat.Matrix) []float64 {
	n, d := X.Dims()
	out := make([]float64, n)
	x := make([]float64, d)
	for i := range out {
		mat.Row(x, i, X)
		out[i] = fn.Eval(x, x)
	}
	return out
}
