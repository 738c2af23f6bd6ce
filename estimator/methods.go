package estimator

import (
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/gklr/optimizer"
)

// Optimization methods. SGD runs in package optimizer; the others delegate to
// gonum/optimize on the full sample. L-BFGS-B runs as L-BFGS: bounds are not
// enforced.
const (
	MethodSGD     = optimizer.MethodSGD
	MethodLBFGSB  = "L-BFGS-B"
	MethodLBFGS   = "L-BFGS"
	MethodBFGS    = "BFGS"
	MethodCG      = "CG"
	MethodGD      = "GD"
	DefaultMethod = MethodLBFGSB
)

// SupportedMethods lists the accepted method names.
var SupportedMethods = []string{MethodSGD, MethodLBFGSB, MethodLBFGS, MethodBFGS, MethodCG, MethodGD}

func gonumMethod(name string) (optimize.Method, bool) {
	switch name {
	case MethodLBFGSB, MethodLBFGS:
		return &optimize.LBFGS{}, true
	case MethodBFGS:
		return &optimize.BFGS{}, true
	case MethodCG:
		return &optimize.CG{}, true
	case MethodGD:
		return &optimize.GradientDescent{}, true
	default:
		return nil, false
	}
}

// historyRecorder implements optimize.Recorder, keeping the objective value
// every printEvery major iterations.
type historyRecorder struct {
	printEvery int
	record     func(iteration int, f float64)
}

func (r *historyRecorder) Init() error { return nil }

func (r *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	if it := stats.MajorIterations - 1; it%r.printEvery == 0 {
		r.record(it, loc.F)
	}
	return nil
}

// runGonum minimizes the full-sample objective with a gonum method.
func (e *KernelEstimator) runGonum(method optimize.Method, f func(x []float64, batch []int) (float64, []float64), x0 []float64, record func(int, float64)) *optimizer.Result {
	memo := optimizer.NewMemoizeJac(f)
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return memo.Func(x, nil)
		},
		Grad: func(grad, x []float64) {
			copy(grad, memo.Grad(x, nil))
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: e.settings.GTol,
		MajorIterations:   e.settings.MaxIter,
	}
	if e.settings.PrintEvery > 0 {
		settings.Recorder = &historyRecorder{printEvery: e.settings.PrintEvery, record: record}
	}

	res, err := optimize.Minimize(p, x0, settings, method)
	out := &optimizer.Result{Success: err == nil}
	if res == nil {
		out.X = append([]float64(nil), x0...)
		out.Fun, out.Jac = memo.Evaluate(out.X, nil)
		out.Message = err.Error()
		return out
	}
	out.X = res.X
	out.Fun = res.F
	out.Jac = res.Gradient
	out.NIterations = res.MajorIterations
	out.Success = err == nil && !res.Status.Early()
	out.Message = res.Status.String()
	if err != nil {
		out.Message = err.Error()
	}
	return out
}
