// Package estimator fits kernel logit models by minimizing the penalized
// negative log-likelihood
//
//	f(x; B) = −ℓ(x; B) + pmle_lambda · |B|/n · R(x)
//
// over mini-batches B. One epoch of mini-batches applies the penalty once.
package estimator

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/calcs"
	"github.com/YuminosukeSato/gklr/optimizer"
	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
)

// Option configures an estimator.
type Option func(*options)

type options struct {
	pmle        string
	pmleLambda  float64
	method      string
	settings    optimizer.Settings
	hasSettings bool
	logger      log.Logger
}

// WithPmle sets the penalization method ("None" or "Tikhonov").
func WithPmle(name string) Option {
	return func(o *options) { o.pmle = name }
}

// WithPmleLambda sets the penalization coefficient.
func WithPmleLambda(v float64) Option {
	return func(o *options) { o.pmleLambda = v }
}

// WithMethod sets the optimization method.
func WithMethod(name string) Option {
	return func(o *options) { o.method = name }
}

// WithOptimizerSettings sets learning rate, batching, tolerances and
// reporting. NSamples and Method are filled in by the estimator.
func WithOptimizerSettings(s optimizer.Settings) Option {
	return func(o *options) {
		o.settings = s
		o.hasSettings = true
	}
}

// WithLogger injects the logger. Without one, warnings go to errors.Warn.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// KernelEstimator fits the parameters of a Calcs engine.
type KernelEstimator struct {
	calcs    calcs.Calcs
	penalty  penalty
	method   string
	settings optimizer.Settings
	logger   log.Logger
	injected bool
	name     string
}

// New returns an estimator for c. All configuration errors are reported here.
func New(c calcs.Calcs, opts ...Option) (*KernelEstimator, error) {
	return newEstimator(c, "KernelEstimator", opts)
}

func newEstimator(c calcs.Calcs, name string, opts []Option) (*KernelEstimator, error) {
	const op = "estimator.New"
	if c == nil {
		return nil, errors.NewConfigurationError(op, "calcs", "a likelihood engine is required")
	}
	o := options{
		pmle:   PmleTikhonov,
		method: DefaultMethod,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasSettings {
		o.settings = optimizer.DefaultSettings(c.NumSamples())
	}

	alpha, _ := c.SplitParams(c.InitialParams())
	r, cols := alpha.Dims()
	pen, err := newPenalty(o.pmle, o.pmleLambda, r*cols)
	if err != nil {
		return nil, err
	}

	e := &KernelEstimator{
		calcs:    c,
		penalty:  pen,
		method:   o.method,
		settings: o.settings,
		logger:   o.logger,
		injected: o.logger != nil,
		name:     name,
	}
	if e.method == "" {
		e.method = DefaultMethod
	}
	if e.logger == nil {
		e.logger = log.GetLoggerWithName("estimator")
	}
	e.logger = e.logger.With(log.ModelNameKey, name)
	e.settings.NSamples = c.NumSamples()
	e.settings.Logger = e.logger

	if err := e.validateMethod(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *KernelEstimator) validateMethod() error {
	const op = "estimator.New"
	if e.method == MethodSGD {
		e.settings.Method = MethodSGD
		return e.settings.Validate()
	}
	if _, ok := gonumMethod(e.method); !ok {
		return errors.NewConfigurationErrorf(op, "method",
			"%q is not a valid optimization method, valid methods are: %s", e.method, strings.Join(SupportedMethods, ", "))
	}
	switch {
	case !(e.settings.GTol > 0):
		return errors.NewConfigurationErrorf(op, "gtol", "must be greater than zero, got %g", e.settings.GTol)
	case e.settings.MaxIter <= 0:
		return errors.NewConfigurationErrorf(op, "maxiter", "must be greater than zero, got %d", e.settings.MaxIter)
	case e.settings.PrintEvery < 0:
		return errors.NewConfigurationErrorf(op, "print_every", "must be >= 0, got %d", e.settings.PrintEvery)
	}
	return nil
}

// Method returns the optimization method.
func (e *KernelEstimator) Method() string { return e.method }

// Calcs returns the likelihood engine.
func (e *KernelEstimator) Calcs() calcs.Calcs { return e.calcs }

// Objective returns the penalized negative log-likelihood and its gradient on
// batch (nil for every sample).
func (e *KernelEstimator) Objective(params []float64, batch []int) (float64, []float64) {
	ll, grad := e.calcs.LogLikelihoodAndGradient(params, batch)
	weight := 1.0
	if batch != nil {
		weight = float64(len(batch)) / float64(e.calcs.NumSamples())
	}
	for j := range grad {
		grad[j] = -grad[j]
	}
	e.penalty.addGradient(grad, params, weight)
	return -ll + e.penalty.value(params, weight), grad
}

// Minimize fits the parameters starting from x0. A nil x0 starts from zero
// alpha and unit nest scales.
func (e *KernelEstimator) Minimize(x0 []float64) (*Result, error) {
	if x0 == nil {
		x0 = e.calcs.InitialParams()
	}
	if err := e.calcs.CheckParams(x0); err != nil {
		return nil, err
	}

	llZero := e.calcs.LogLikelihood(e.calcs.InitialParams(), nil)
	llInit := e.calcs.LogLikelihood(x0, nil)
	e.logger.Info("The estimation is going to start",
		log.OperationKey, log.OperationMinimize,
		log.MethodKey, e.method,
		log.PenalizationKey, e.penalty.method,
		log.RegularizationKey, e.penalty.lambda,
		log.ParametersKey, e.calcs.NumParams(),
		log.SamplesKey, e.calcs.NumSamples(),
		"log_likelihood_at_zero", llZero,
		"initial_log_likelihood", llInit,
	)

	var history []float64
	record := func(_ int, loss float64) { history = append(history, loss) }

	start := time.Now()
	var res *optimizer.Result
	if method, ok := gonumMethod(e.method); ok {
		res = e.runGonum(method, e.Objective, x0, record)
	} else {
		settings := e.settings
		userRecorder := settings.Recorder
		settings.Recorder = func(epoch int, loss float64) {
			record(epoch, loss)
			if userRecorder != nil {
				userRecorder(epoch, loss)
			}
		}
		memo := optimizer.NewMemoizeJac(e.Objective)
		var err error
		if res, err = optimizer.Minimize(memo.Problem(), x0, settings); err != nil {
			return nil, err
		}
	}
	elapsed := time.Since(start)

	x := append([]float64(nil), res.X...)
	alpha, lambd := e.calcs.SplitParams(x)
	result := &Result{
		Alpha:                mat.DenseCopyOf(alpha),
		Lambd:                append([]float64(nil), lambd...),
		Success:              res.Success,
		Message:              res.Message,
		Fun:                  res.Fun,
		Jac:                  res.Jac,
		NIterations:          res.NIterations,
		History:              history,
		ElapsedTime:          elapsed,
		Pmle:                 e.penalty.method,
		PmleLambda:           e.penalty.lambda,
		Method:               e.method,
		LogLikelihoodAtZero:  llZero,
		InitialLogLikelihood: llInit,
	}
	result.FinalLogLikelihood = e.calcs.LogLikelihood(x, nil)
	result.McFaddenR2 = 1 - result.FinalLogLikelihood/llZero

	if !result.Success {
		e.warn(result, errors.NewConvergenceWarning(e.method, result.NIterations, result.Message))
	}
	op := e.name + ".Minimize"
	for _, w := range []error{
		errors.CheckScalar(op, result.Fun, result.NIterations),
		errors.CheckNumericalStability(op, x, result.NIterations),
		errors.CheckPositive(op, result.Lambd, result.NIterations),
	} {
		if w != nil {
			e.warn(result, w)
		}
	}

	e.logger.Info("The kernel model has been estimated",
		log.OperationKey, log.OperationMinimize,
		log.DurationMsKey, elapsed.Milliseconds(),
		log.IterationKey, result.NIterations,
		log.LogLikelihoodKey, result.FinalLogLikelihood,
		log.R2ScoreKey, result.McFaddenR2,
		"success", result.Success,
	)
	return result, nil
}

// warn records w on the result and reports it to the injected logger, or to
// errors.Warn when none was injected.
func (e *KernelEstimator) warn(r *Result, w error) {
	r.Warnings = append(r.Warnings, w)
	if e.injected {
		e.logger.Warn(w.Error(), "warning", w)
		return
	}
	errors.Warn(w)
}

// NestedKernelEstimator fits a nested logit model: alpha followed by one
// scale per nest.
type NestedKernelEstimator struct {
	*KernelEstimator
	nested *calcs.NestedKernelCalcs
}

// NewNested returns an estimator for the nested engine c.
func NewNested(c *calcs.NestedKernelCalcs, opts ...Option) (*NestedKernelEstimator, error) {
	if c == nil {
		return nil, errors.NewConfigurationError("estimator.NewNested", "calcs", "a nested likelihood engine is required")
	}
	e, err := newEstimator(c, "NestedKernelEstimator", opts)
	if err != nil {
		return nil, err
	}
	e.logger = e.logger.With(log.NestsKey, c.NumNests())
	e.settings.Logger = e.logger
	return &NestedKernelEstimator{KernelEstimator: e, nested: c}, nil
}

// Nests returns the nests as alternative IDs.
func (e *NestedKernelEstimator) Nests() [][]int { return e.nested.Nests() }
