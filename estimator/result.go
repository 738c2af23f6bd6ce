package estimator

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Result is the record of one estimation run.
type Result struct {
	// Alpha is the (NumCols × NumAlternatives) weight matrix.
	Alpha *mat.Dense `json:"-"`
	// Lambd holds the nest scales of a nested model.
	Lambd []float64 `json:"lambd,omitempty"`

	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Fun         float64   `json:"fun"`
	Jac         []float64 `json:"-"`
	NIterations int       `json:"n_iterations"`
	// History holds one objective value per reporting checkpoint.
	History     []float64     `json:"history,omitempty"`
	ElapsedTime time.Duration `json:"elapsed_time"`

	Pmle       string  `json:"pmle"`
	PmleLambda float64 `json:"pmle_lambda"`
	Method     string  `json:"method"`

	LogLikelihoodAtZero  float64 `json:"log_likelihood_at_zero"`
	InitialLogLikelihood float64 `json:"initial_log_likelihood"`
	FinalLogLikelihood   float64 `json:"final_log_likelihood"`
	McFaddenR2           float64 `json:"mcfadden_r2"`

	// Warnings raised during the run. They never change the outcome.
	Warnings []error `json:"-"`
}

// Params returns alpha flattened row-major followed by the nest scales.
func (r *Result) Params() []float64 {
	out := append([]float64(nil), r.Alpha.RawMatrix().Data...)
	return append(out, r.Lambd...)
}
