package optimizer

import "slices"

// MemoizeJac caches a fused value-and-gradient function so that Func and Grad
// called at the same point and batch evaluate it once.
type MemoizeJac struct {
	fn func(x []float64, batch []int) (float64, []float64)

	valid     bool
	lastX     []float64
	lastBatch []int
	allRows   bool
	value     float64
	grad      []float64
	calls     int
}

// NewMemoizeJac wraps fn.
func NewMemoizeJac(fn func(x []float64, batch []int) (float64, []float64)) *MemoizeJac {
	return &MemoizeJac{fn: fn}
}

// Evaluate returns the value and gradient at (x, batch), recomputing only when
// x or batch differ from the cached call. The gradient must not be modified.
func (m *MemoizeJac) Evaluate(x []float64, batch []int) (float64, []float64) {
	if !m.valid || !slices.Equal(x, m.lastX) || m.allRows != (batch == nil) || !slices.Equal(batch, m.lastBatch) {
		m.value, m.grad = m.fn(x, batch)
		m.calls++
		m.valid = true
		m.lastX = append(m.lastX[:0], x...)
		m.lastBatch = append(m.lastBatch[:0], batch...)
		m.allRows = batch == nil
	}
	return m.value, m.grad
}

// Func returns the cached value at (x, batch).
func (m *MemoizeJac) Func(x []float64, batch []int) float64 {
	v, _ := m.Evaluate(x, batch)
	return v
}

// Grad returns the cached gradient at (x, batch).
func (m *MemoizeJac) Grad(x []float64, batch []int) []float64 {
	_, g := m.Evaluate(x, batch)
	return g
}

// Calls returns the number of times the wrapped function ran.
func (m *MemoizeJac) Calls() int { return m.calls }

// Problem exposes the cache as a Problem for Minimize.
func (m *MemoizeJac) Problem() Problem {
	return Problem{Func: m.Func, Grad: m.Grad}
}
