package calcs

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/kernel"
)

// KernelCalcs is the multinomial logit engine.
type KernelCalcs struct {
	K *kernel.Matrix
}

// NewKernelCalcs returns the flat engine for K.
func NewKernelCalcs(K *kernel.Matrix) *KernelCalcs {
	return &KernelCalcs{K: K}
}

func (c *KernelCalcs) Kernel() *kernel.Matrix { return c.K }

func (c *KernelCalcs) NumParams() int { return c.K.NumCols() * c.K.NumAlternatives() }

func (c *KernelCalcs) NumSamples() int { return c.K.NumSamples() }

func (c *KernelCalcs) InitialParams() []float64 { return make([]float64, c.NumParams()) }

func (c *KernelCalcs) CheckParams(params []float64) error {
	return checkLength("KernelCalcs", params, c.NumParams())
}

func (c *KernelCalcs) SplitParams(params []float64) (*mat.Dense, []float64) {
	return mat.NewDense(c.K.NumCols(), c.K.NumAlternatives(), params[:c.NumParams()]), nil
}

// utilities fills u with K_a[i,:]·alpha[:,a] for every alternative.
func utilities(K *kernel.Matrix, cols [][]float64, i int, u []float64) {
	for a := range u {
		u[a] = floats.Dot(K.Block(a).RawRowView(i), cols[a])
	}
}

// softmax writes the stable softmax of u into p and returns log Σ exp(u).
func softmax(u, p []float64) float64 {
	lse := floats.LogSumExp(u)
	for a, v := range u {
		p[a] = math.Exp(v - lse)
	}
	return lse
}

func (c *KernelCalcs) LogLikelihood(params []float64, batch []int) float64 {
	alpha, _ := c.SplitParams(params)
	cols := alphaColumns(alpha)
	u := make([]float64, c.K.NumAlternatives())
	ll := 0.0
	for _, i := range rows(batch, c.K.NumSamples()) {
		utilities(c.K, cols, i, u)
		ll += u[c.K.Choice(i)] - floats.LogSumExp(u)
	}
	return ll
}

func (c *KernelCalcs) Gradient(params []float64, batch []int) []float64 {
	_, g := c.LogLikelihoodAndGradient(params, batch)
	return g
}

// LogLikelihoodAndGradient returns the log-likelihood and its gradient. The
// gradient column of alternative a is K_aᵀ(1[chosen = a] − p_a).
func (c *KernelCalcs) LogLikelihoodAndGradient(params []float64, batch []int) (float64, []float64) {
	alpha, _ := c.SplitParams(params)
	cols := alphaColumns(alpha)
	A := c.K.NumAlternatives()
	C := c.K.NumCols()

	gcols := make([][]float64, A)
	for a := range gcols {
		gcols[a] = make([]float64, C)
	}
	u := make([]float64, A)
	p := make([]float64, A)
	ll := 0.0
	for _, i := range rows(batch, c.K.NumSamples()) {
		utilities(c.K, cols, i, u)
		lse := softmax(u, p)
		chosen := c.K.Choice(i)
		ll += u[chosen] - lse
		for a := 0; a < A; a++ {
			w := -p[a]
			if a == chosen {
				w += 1
			}
			floats.AddScaled(gcols[a], w, c.K.Block(a).RawRowView(i))
		}
	}
	g := make([]float64, c.NumParams())
	scatterGradient(g, gcols)
	return ll, g
}

func (c *KernelCalcs) Probabilities(params []float64) *mat.Dense {
	alpha, _ := c.SplitParams(params)
	cols := alphaColumns(alpha)
	n, A := c.K.NumSamples(), c.K.NumAlternatives()
	out := mat.NewDense(n, A, nil)
	u := make([]float64, A)
	for i := 0; i < n; i++ {
		utilities(c.K, cols, i, u)
		softmax(u, out.RawRowView(i))
	}
	return out
}
