package calcs

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/kernel"
	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// ValidateNests checks that nests partition alternatives: no nest is empty,
// every alternative appears exactly once, and no nest names an unknown
// alternative.
func ValidateNests(nests [][]int, alternatives []int) error {
	const op = "calcs.ValidateNests"
	if len(nests) == 0 {
		return errors.NewConfigurationError(op, "nests", "at least one nest is required")
	}
	known := make(map[int]bool, len(alternatives))
	for _, id := range alternatives {
		known[id] = true
	}
	seen := make(map[int]bool, len(alternatives))
	var duplicates, strangers []int
	for n, nest := range nests {
		if len(nest) == 0 {
			return errors.NewConfigurationErrorf(op, "nests", "nest %d is empty", n)
		}
		for _, id := range nest {
			switch {
			case !known[id]:
				strangers = append(strangers, id)
			case seen[id]:
				duplicates = append(duplicates, id)
			}
			seen[id] = true
		}
	}
	var missing []int
	for _, id := range alternatives {
		if !seen[id] {
			missing = append(missing, id)
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing alternatives "+joinIDs(missing))
	}
	if len(duplicates) > 0 {
		problems = append(problems, "duplicate alternatives "+joinIDs(duplicates))
	}
	if len(strangers) > 0 {
		problems = append(problems, "unknown alternatives "+joinIDs(strangers))
	}
	if len(problems) > 0 {
		return errors.NewConfigurationError(op, "nests", strings.Join(problems, "; "))
	}
	return nil
}

func joinIDs(ids []int) string {
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// NestedKernelCalcs is the nested logit engine. With nest scales λ, for the
// nest n holding alternative a:
//
//	s_n  = log Σ_{b∈n} exp(U_b/λ_n)
//	IV_n = λ_n s_n
//	P(a) = exp(IV_n − log Σ_m exp(IV_m)) · exp(U_a/λ_n − s_n)
//
// Scales are not clipped: λ ≤ 0 yields non-finite values.
type NestedKernelCalcs struct {
	K      *kernel.Matrix
	nests  [][]int // alternative positions
	ids    [][]int // alternative IDs as given
	nestOf []int
}

// NewNestedKernelCalcs validates nests against K's alternatives.
func NewNestedKernelCalcs(K *kernel.Matrix, nests [][]int) (*NestedKernelCalcs, error) {
	if err := ValidateNests(nests, K.Alternatives()); err != nil {
		return nil, err
	}
	index := make(map[int]int, K.NumAlternatives())
	for a, id := range K.Alternatives() {
		index[id] = a
	}
	c := &NestedKernelCalcs{
		K:      K,
		nests:  make([][]int, len(nests)),
		ids:    make([][]int, len(nests)),
		nestOf: make([]int, K.NumAlternatives()),
	}
	for n, nest := range nests {
		c.ids[n] = append([]int(nil), nest...)
		for _, id := range nest {
			a := index[id]
			c.nests[n] = append(c.nests[n], a)
			c.nestOf[a] = n
		}
	}
	return c, nil
}

func (c *NestedKernelCalcs) Kernel() *kernel.Matrix { return c.K }

// Nests returns the nests as alternative IDs.
func (c *NestedKernelCalcs) Nests() [][]int {
	out := make([][]int, len(c.ids))
	for n, nest := range c.ids {
		out[n] = append([]int(nil), nest...)
	}
	return out
}

// NumNests returns the number of nests.
func (c *NestedKernelCalcs) NumNests() int { return len(c.nests) }

func (c *NestedKernelCalcs) numAlpha() int { return c.K.NumCols() * c.K.NumAlternatives() }

func (c *NestedKernelCalcs) NumParams() int { return c.numAlpha() + len(c.nests) }

func (c *NestedKernelCalcs) NumSamples() int { return c.K.NumSamples() }

func (c *NestedKernelCalcs) InitialParams() []float64 {
	x := make([]float64, c.NumParams())
	for n := range c.nests {
		x[c.numAlpha()+n] = 1
	}
	return x
}

func (c *NestedKernelCalcs) CheckParams(params []float64) error {
	return checkLength("NestedKernelCalcs", params, c.NumParams())
}

func (c *NestedKernelCalcs) SplitParams(params []float64) (*mat.Dense, []float64) {
	k := c.numAlpha()
	return mat.NewDense(c.K.NumCols(), c.K.NumAlternatives(), params[:k]), params[k:c.NumParams()]
}

// nestState holds per-sample intermediate values.
type nestState struct {
	u     []float64 // utilities
	cond  []float64 // P(a | nest of a)
	s     []float64 // s_n
	iv    []float64 // IV_n
	pNest []float64 // P(n)
	vbar  []float64 // Σ_{a∈n} P(a|n) U_a
	buf   []float64
	lse   float64 // log Σ_n exp(IV_n)
}

func (c *NestedKernelCalcs) newState() *nestState {
	A, N := c.K.NumAlternatives(), len(c.nests)
	return &nestState{
		u:     make([]float64, A),
		cond:  make([]float64, A),
		s:     make([]float64, N),
		iv:    make([]float64, N),
		pNest: make([]float64, N),
		vbar:  make([]float64, N),
		buf:   make([]float64, A),
	}
}

// evaluate fills st for sample i.
func (c *NestedKernelCalcs) evaluate(cols [][]float64, lambd []float64, i int, st *nestState) {
	utilities(c.K, cols, i, st.u)
	for n, nest := range c.nests {
		scaled := st.buf[:len(nest)]
		for k, a := range nest {
			scaled[k] = st.u[a] / lambd[n]
		}
		st.s[n] = floats.LogSumExp(scaled)
		st.iv[n] = lambd[n] * st.s[n]
		st.vbar[n] = 0
		for k, a := range nest {
			st.cond[a] = math.Exp(scaled[k] - st.s[n])
			st.vbar[n] += st.cond[a] * st.u[a]
		}
	}
	st.lse = softmax(st.iv, st.pNest)
}

func (c *NestedKernelCalcs) LogLikelihood(params []float64, batch []int) float64 {
	alpha, lambd := c.SplitParams(params)
	cols := alphaColumns(alpha)
	st := c.newState()
	ll := 0.0
	for _, i := range rows(batch, c.K.NumSamples()) {
		c.evaluate(cols, lambd, i, st)
		chosen := c.K.Choice(i)
		k := c.nestOf[chosen]
		ll += st.u[chosen]/lambd[k] + (lambd[k]-1)*st.s[k] - st.lse
	}
	return ll
}

func (c *NestedKernelCalcs) Gradient(params []float64, batch []int) []float64 {
	_, g := c.LogLikelihoodAndGradient(params, batch)
	return g
}

// LogLikelihoodAndGradient returns the log-likelihood and its gradient with
// respect to alpha and the nest scales. For sample i with chosen alternative
// c in nest k:
//
//	∂ℓ/∂U_a = 1[a=c]/λ_k + 1[a∈k](1 − 1/λ_k) P(a|k) − P(a)
//	∂ℓ/∂λ_n = 1[n=k](−U_c/λ_k² + s_k − (λ_k − 1) V̄_k/λ_k²) − P(n)(s_n − V̄_n/λ_n)
//
// where V̄_n = Σ_{a∈n} P(a|n) U_a.
func (c *NestedKernelCalcs) LogLikelihoodAndGradient(params []float64, batch []int) (float64, []float64) {
	alpha, lambd := c.SplitParams(params)
	cols := alphaColumns(alpha)
	A, C, N := c.K.NumAlternatives(), c.K.NumCols(), len(c.nests)

	gcols := make([][]float64, A)
	for a := range gcols {
		gcols[a] = make([]float64, C)
	}
	glambd := make([]float64, N)
	st := c.newState()
	ll := 0.0
	for _, i := range rows(batch, c.K.NumSamples()) {
		c.evaluate(cols, lambd, i, st)
		chosen := c.K.Choice(i)
		k := c.nestOf[chosen]
		lk := lambd[k]
		ll += st.u[chosen]/lk + (lk-1)*st.s[k] - st.lse

		for a := 0; a < A; a++ {
			n := c.nestOf[a]
			w := -st.pNest[n] * st.cond[a]
			if n == k {
				w += (1 - 1/lk) * st.cond[a]
			}
			if a == chosen {
				w += 1 / lk
			}
			floats.AddScaled(gcols[a], w, c.K.Block(a).RawRowView(i))
		}
		for n := 0; n < N; n++ {
			glambd[n] -= st.pNest[n] * (st.s[n] - st.vbar[n]/lambd[n])
		}
		glambd[k] += -st.u[chosen]/(lk*lk) + st.s[k] - (lk-1)*st.vbar[k]/(lk*lk)
	}

	g := make([]float64, c.NumParams())
	scatterGradient(g[:c.numAlpha()], gcols)
	copy(g[c.numAlpha():], glambd)
	return ll, g
}

func (c *NestedKernelCalcs) Probabilities(params []float64) *mat.Dense {
	alpha, lambd := c.SplitParams(params)
	cols := alphaColumns(alpha)
	n, A := c.K.NumSamples(), c.K.NumAlternatives()
	out := mat.NewDense(n, A, nil)
	st := c.newState()
	for i := 0; i < n; i++ {
		c.evaluate(cols, lambd, i, st)
		row := out.RawRowView(i)
		for a := 0; a < A; a++ {
			row[a] = st.pNest[c.nestOf[a]] * st.cond[a]
		}
	}
	return out
}
