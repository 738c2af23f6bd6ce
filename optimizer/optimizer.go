// Package optimizer implements mini-batch stochastic gradient descent for
// objectives that can be evaluated on a subset of samples.
package optimizer

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
)

// MethodSGD is the only method implemented natively.
const MethodSGD = "SGD"

// SupportedMethods lists the methods accepted by Minimize.
var SupportedMethods = []string{MethodSGD}

// Termination messages.
const (
	MessageConverged = "Optimization terminated successfully. Gradient tolerance reached."
	MessageMaxIter   = "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
)

// Problem is a differentiable objective evaluated on a batch of sample
// indices. A nil batch means every sample.
type Problem struct {
	Func func(x []float64, batch []int) float64
	Grad func(x []float64, batch []int) []float64
}

// Settings configures Minimize.
type Settings struct {
	Method       string
	LearningRate float64
	// MiniBatchSize 0 means NSamples (full batch).
	MiniBatchSize int
	NSamples      int
	GTol          float64
	// MaxIter is the maximum number of epochs.
	MaxIter int
	// PrintEvery > 0 reports the average mini-batch loss every PrintEvery epochs.
	PrintEvery int
	Seed       int64
	Logger     log.Logger
	// Recorder receives the average loss of every reporting epoch.
	Recorder func(epoch int, loss float64)
}

// DefaultSettings returns full-batch SGD settings for nSamples samples.
func DefaultSettings(nSamples int) Settings {
	return Settings{
		Method:       MethodSGD,
		LearningRate: 1e-3,
		NSamples:     nSamples,
		GTol:         1e-6,
		MaxIter:      1000,
	}
}

// Result is the outcome of Minimize.
type Result struct {
	X           []float64
	Fun         float64
	Jac         []float64
	NIterations int
	Success     bool
	Message     string
}

// Validate rejects settings that cannot run. It has no side effects.
func (s Settings) Validate() error {
	const op = "optimizer.Minimize"
	switch {
	case s.Method != "" && s.Method != MethodSGD:
		return errors.NewConfigurationErrorf(op, "method",
			"%q is not a valid optimization method, valid methods are: %s", s.Method, strings.Join(SupportedMethods, ", "))
	case !(s.LearningRate > 0):
		return errors.NewConfigurationErrorf(op, "learning_rate", "must be greater than zero, got %g", s.LearningRate)
	case s.NSamples <= 0:
		return errors.NewConfigurationErrorf(op, "n_samples",
			"must be greater than zero and match the number of rows in the dataset, got %d", s.NSamples)
	case s.MiniBatchSize < 0:
		return errors.NewConfigurationErrorf(op, "mini_batch_size", "must be greater than zero, got %d", s.MiniBatchSize)
	case s.MiniBatchSize > s.NSamples:
		return errors.NewConfigurationErrorf(op, "mini_batch_size",
			"must be less than or equal to the number of samples (%d), got %d", s.NSamples, s.MiniBatchSize)
	case !(s.GTol > 0):
		return errors.NewConfigurationErrorf(op, "gtol", "must be greater than zero, got %g", s.GTol)
	case s.MaxIter <= 0:
		return errors.NewConfigurationErrorf(op, "maxiter", "the maximum number of epochs must be greater than zero, got %d", s.MaxIter)
	case s.PrintEvery < 0:
		return errors.NewConfigurationErrorf(op, "print_every", "must be >= 0, got %d", s.PrintEvery)
	}
	return nil
}

// Minimize runs mini-batch gradient descent from x0.
//
// Each epoch e shuffles the samples with seed Seed+e, splits the permutation
// into contiguous mini-batches and applies x ← x − LearningRate·∇f(x; batch)
// per batch. The run stops successfully after an epoch whose last step has
// every component within GTol, and unsuccessfully after MaxIter epochs. Only
// the last step of the epoch is checked, which is a weak convergence signal.
func Minimize(p Problem, x0 []float64, s Settings) (*Result, error) {
	const op = "optimizer.Minimize"
	if p.Func == nil {
		return nil, errors.NewConfigurationError(op, "func", "the objective function must be provided")
	}
	if p.Grad == nil {
		return nil, errors.NewConfigurationError(op, "grad", "the gradient of the objective function must be provided")
	}
	if len(x0) == 0 {
		return nil, errors.NewConfigurationError(op, "x0", "the initial point must not be empty")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger := s.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	batchSize := s.MiniBatchSize
	if batchSize == 0 {
		batchSize = s.NSamples
	}

	x := append([]float64(nil), x0...)
	var g []float64
	step := make([]float64, len(x))
	converged := false
	epochs := 0
	for epoch := 0; epoch < s.MaxIter; epoch++ {
		batches := RandomMiniBatches(s.NSamples, batchSize, s.Seed+int64(epoch))
		report := s.PrintEvery > 0 && epoch%s.PrintEvery == 0
		lossTotal := 0.0
		for _, batch := range batches {
			if report {
				lossTotal += p.Func(x, batch)
			}
			g = p.Grad(x, batch)
			if len(g) != len(x) {
				return nil, errors.NewDimensionError(op, len(x), len(g), 1)
			}
			for j := range step {
				step[j] = -s.LearningRate * g[j]
			}
			floats.Add(x, step)
		}
		epochs = epoch + 1

		if report {
			loss := lossTotal / float64(len(batches))
			if s.Recorder != nil {
				s.Recorder(epoch, loss)
			}
			logger.Info(fmt.Sprintf("Epoch: %d/%d - Loss: %.4f", epoch, s.MaxIter, loss),
				log.EpochKey, epoch,
				log.LossKey, loss,
			)
		}
		if withinTolerance(step, s.GTol) {
			converged = true
			break
		}
	}

	res := &Result{
		X:           x,
		Fun:         p.Func(x, nil),
		Jac:         append([]float64(nil), g...),
		NIterations: epochs,
		Success:     converged,
		Message:     MessageConverged,
	}
	if !converged {
		res.Message = MessageMaxIter
	}
	logger.Debug("Optimization finished",
		log.OperationKey, log.OperationMinimize,
		log.IterationKey, res.NIterations,
		log.LossKey, res.Fun,
		"success", res.Success,
	)
	return res, nil
}

func withinTolerance(step []float64, tol float64) bool {
	for _, v := range step {
		if !(math.Abs(v) <= tol) {
			return false
		}
	}
	return true
}
