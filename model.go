package gklr

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/calcs"
	"github.com/YuminosukeSato/gklr/config"
	"github.com/YuminosukeSato/gklr/core/dataset"
	"github.com/YuminosukeSato/gklr/core/model"
	"github.com/YuminosukeSato/gklr/estimator"
	"github.com/YuminosukeSato/gklr/kernel"
	"github.com/YuminosukeSato/gklr/metrics"
	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
)

// Kernel selectors for GetKernel and ClearKernel.
const (
	KernelTrain = "train"
	KernelTest  = "test"
	KernelBoth  = "both"
)

// Model types written into weight snapshots.
const (
	ModelTypeFlat   = "KernelModel"
	ModelTypeNested = "NestedKernelModel"
)

// Option configures a KernelModel.
type Option func(*KernelModel)

// WithConfig sets the model configuration. The config is copied.
func WithConfig(cfg *config.Config) Option {
	return func(m *KernelModel) {
		if cfg != nil {
			m.cfg = cfg.Clone()
		}
	}
}

// WithLogger injects the logger used by the model and everything it builds.
func WithLogger(l log.Logger) Option {
	return func(m *KernelModel) {
		m.logger = l
		m.injected = l != nil
	}
}

// FitOptions overrides the estimation settings of the config for one Fit
// call. Zero values keep the config values.
type FitOptions struct {
	// InitParams is the starting point: the flattened alpha followed by the
	// nest scales for nested models. Nil starts from zero alpha and unit scales.
	InitParams []float64
	Pmle       string
	PmleLambda *float64
	Method     string
}

// KernelModel owns at most one train and one test kernel matrix and the
// parameters fitted on the train kernel. It is not safe for concurrent use.
type KernelModel struct {
	id       string
	cfg      *config.Config
	logger   log.Logger
	injected bool
	state    *model.StateManager

	train *kernel.Matrix
	test  *kernel.Matrix

	// train settings, used as defaults by SetKernelTest
	choiceColumn string
	attributes   map[int][]string
	kernelCfg    kernel.Config

	nests   [][]int
	params  []float64
	results *estimator.Result
	metrics map[string]float64
	fitUsed config.Estimation

	// alternative IDs of the fitted parameters; they outlive ClearKernel
	fitAlternatives []int
}

// NewKernelModel returns a model with the default config unless WithConfig
// is given. The config is checked here.
func NewKernelModel(opts ...Option) (*KernelModel, error) {
	m := &KernelModel{
		id:    uuid.NewString(),
		cfg:   config.Default(),
		state: model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.GetLoggerWithName("gklr")
	}
	m.logger = m.logger.With(log.EstimatorIDKey, m.id)
	if err := m.cfg.CheckValues(); err != nil {
		return nil, err
	}
	m.logger.Debug("KernelModel initialized", log.ModelNameKey, m.modelType())
	return m, nil
}

// ID returns the identifier attached to every log record of the model.
func (m *KernelModel) ID() string { return m.id }

// Config returns a copy of the model configuration.
func (m *KernelModel) Config() *config.Config { return m.cfg.Clone() }

func (m *KernelModel) modelType() string {
	if m.cfg.Nested() {
		return ModelTypeNested
	}
	return ModelTypeFlat
}

// SetKernelTrain builds the train kernel matrix. Both kernels and any fitted
// parameters are cleared first, so a failure leaves no train kernel behind.
// Empty arguments take the config values.
func (m *KernelModel) SetKernelTrain(X *dataset.Dataset, choiceColumn string, attributes map[int][]string, kernelCfg *kernel.Config) error {
	m.clear(KernelBoth)
	m.state.Reset()
	m.params, m.results, m.nests, m.metrics, m.fitAlternatives = nil, nil, nil, nil, nil

	if choiceColumn == "" {
		choiceColumn = m.cfg.ChoiceColumn
	}
	if attributes == nil {
		attributes = m.cfg.Attributes
	}
	cfg := m.cfg.Kernel
	if kernelCfg != nil {
		cfg = *kernelCfg
	}

	start := time.Now()
	K, err := kernel.NewMatrix(X, choiceColumn, attributes, cfg, nil, kernel.WithLogger(m.logger))
	if err != nil {
		return err
	}
	m.train = K
	m.choiceColumn = choiceColumn
	m.attributes = K.Attributes()
	m.kernelCfg = cfg

	m.logger.Info("The kernel matrix for the train set has been created",
		log.PhaseKey, log.PhaseTraining,
		log.OperationKey, log.OperationSetKernel,
		log.SamplesKey, K.NumSamples(),
		log.AlternativesKey, K.NumAlternatives(),
		log.SupportPointsKey, K.NumCols(),
		log.DataSizeKey, K.SizeBytes(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// SetKernelTest builds the test kernel matrix against the train kernel.
// Empty arguments take the train values. Approximation settings are removed
// from the kernel config: the test kernel reuses the train landmarks.
func (m *KernelModel) SetKernelTest(Z *dataset.Dataset, choiceColumn string, attributes map[int][]string, kernelCfg *kernel.Config) error {
	const op = "KernelModel.SetKernelTest"
	if m.train == nil {
		return errors.NewPreconditionError(op, "SetKernelTrain")
	}
	m.clear(KernelTest)

	if choiceColumn == "" {
		choiceColumn = m.choiceColumn
	}
	if attributes == nil {
		attributes = m.attributes
	}
	cfg := m.kernelCfg
	if kernelCfg != nil {
		cfg = *kernelCfg
	}
	cfg = cfg.TestConfig()

	start := time.Now()
	K, err := kernel.NewMatrix(Z, choiceColumn, attributes, cfg, m.train, kernel.WithLogger(m.logger))
	if err != nil {
		return err
	}
	m.test = K

	m.logger.Info("The kernel matrix for the test set has been created",
		log.PhaseKey, log.PhaseTesting,
		log.OperationKey, log.OperationSetKernel,
		log.SamplesKey, K.NumSamples(),
		log.SupportPointsKey, K.NumCols(),
		log.DataSizeKey, K.SizeBytes(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// GetKernel returns the selected kernel matrices. For KernelTrain or
// KernelTest the other return value is nil.
func (m *KernelModel) GetKernel(which string) (train, test *kernel.Matrix, err error) {
	switch which {
	case KernelTrain:
		return m.train, nil, nil
	case KernelTest:
		return nil, m.test, nil
	case KernelBoth:
		return m.train, m.test, nil
	}
	return nil, nil, errors.NewValidationError("dataset", "must be one of train, test, both", which)
}

// ClearKernel drops the selected kernel matrices. Fitted parameters are kept.
func (m *KernelModel) ClearKernel(which string) error {
	switch which {
	case KernelTrain, KernelTest, KernelBoth:
		m.clear(which)
		return nil
	}
	return errors.NewValidationError("dataset", "must be one of train, test, both", which)
}

func (m *KernelModel) clear(which string) {
	if which == KernelTrain || which == KernelBoth {
		m.train = nil
	}
	if which == KernelTest || which == KernelBoth {
		m.test = nil
	}
}

// calcsFor returns the likelihood engine for K: nested when nests is set.
func calcsFor(K *kernel.Matrix, nests [][]int) (calcs.Calcs, error) {
	if len(nests) == 0 {
		return calcs.NewKernelCalcs(K), nil
	}
	return calcs.NewNestedKernelCalcs(K, nests)
}

// Fit estimates the model on the train kernel. The flat or nested engine is
// chosen once from the config nests. Panics raised by the numerical code are
// returned as *errors.PanicError.
func (m *KernelModel) Fit(opts FitOptions) (err error) {
	const op = "KernelModel.Fit"
	defer errors.Recover(&err, op)
	if m.train == nil {
		return errors.NewPreconditionError(op, "SetKernelTrain")
	}

	used := m.cfg.Estimation
	if opts.Pmle != "" {
		used.Pmle = opts.Pmle
	}
	if opts.PmleLambda != nil {
		used.PmleLambda = *opts.PmleLambda
	}
	if opts.Method != "" {
		used.Method = opts.Method
	}

	nests := m.cfg.Clone().Nests
	c, err := calcsFor(m.train, nests)
	if err != nil {
		return err
	}
	estOpts := []estimator.Option{
		estimator.WithPmle(used.Pmle),
		estimator.WithPmleLambda(used.PmleLambda),
		estimator.WithMethod(used.Method),
		estimator.WithOptimizerSettings(m.cfg.OptimizerSettings(c.NumSamples())),
	}
	if m.injected {
		estOpts = append(estOpts, estimator.WithLogger(m.logger))
	}

	var res *estimator.Result
	if nc, ok := c.(*calcs.NestedKernelCalcs); ok {
		e, err := estimator.NewNested(nc, estOpts...)
		if err != nil {
			return err
		}
		if res, err = e.Minimize(opts.InitParams); err != nil {
			return err
		}
	} else {
		e, err := estimator.New(c, estOpts...)
		if err != nil {
			return err
		}
		if res, err = e.Minimize(opts.InitParams); err != nil {
			return err
		}
	}

	m.results = res
	m.params = res.Params()
	m.nests = nests
	m.fitUsed = used
	m.fitAlternatives = m.train.Alternatives()
	m.state.SetFitted(c.NumSamples(), m.train.NumAlternatives(), len(m.params))

	m.metrics = map[string]float64{
		"log_likelihood_at_zero": res.LogLikelihoodAtZero,
		"initial_log_likelihood": res.InitialLogLikelihood,
		"final_log_likelihood":   res.FinalLogLikelihood,
		"mcfadden_r2":            res.McFaddenR2,
	}
	proba := c.Probabilities(m.params)
	if loss, err := metrics.LogLoss(proba, m.train.Choices()); err == nil {
		m.metrics["train_log_loss"] = loss
	}

	m.logger.Info("Fit completed",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, m.modelType(),
		log.MethodKey, used.Method,
		log.LogLikelihoodKey, res.FinalLogLikelihood,
		log.R2ScoreKey, res.McFaddenR2,
		log.DurationMsKey, res.ElapsedTime.Milliseconds(),
	)
	return nil
}

// kernelFor returns the train or test kernel, with a PreconditionError for a
// missing one.
func (m *KernelModel) kernelFor(op string, train bool) (*kernel.Matrix, error) {
	if train {
		if m.train == nil {
			return nil, errors.NewPreconditionError(op, "SetKernelTrain")
		}
		return m.train, nil
	}
	if m.test == nil {
		return nil, errors.NewPreconditionError(op, "SetKernelTest")
	}
	return m.test, nil
}

// PredictProba returns the (n_samples × n_alternatives) choice probabilities
// on the train kernel (train == true) or on the test kernel.
func (m *KernelModel) PredictProba(train bool) (*mat.Dense, error) {
	const op = "KernelModel.PredictProba"
	if err := m.state.RequireFitted(op); err != nil {
		return nil, err
	}
	K, err := m.kernelFor(op, train)
	if err != nil {
		return nil, err
	}
	c, err := calcsFor(K, m.nests)
	if err != nil {
		return nil, err
	}
	if err := c.CheckParams(m.params); err != nil {
		return nil, err
	}
	return c.Probabilities(m.params), nil
}

// PredictLogProba returns the natural logarithm of PredictProba.
func (m *KernelModel) PredictLogProba(train bool) (*mat.Dense, error) {
	proba, err := m.PredictProba(train)
	if err != nil {
		return nil, err
	}
	proba.Apply(func(_, _ int, v float64) float64 { return math.Log(v) }, proba)
	return proba, nil
}

// Predict returns the most probable alternative ID for every sample.
func (m *KernelModel) Predict(train bool) ([]int, error) {
	proba, err := m.PredictProba(train)
	if err != nil {
		return nil, err
	}
	ids := m.fitAlternatives
	r, c := proba.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		best := 0
		for a := 1; a < c; a++ {
			if proba.At(i, a) > proba.At(i, best) {
				best = a
			}
		}
		out[i] = ids[best]
	}
	return out, nil
}

// Score returns the mean accuracy of Predict on the test kernel.
func (m *KernelModel) Score() (float64, error) {
	const op = "KernelModel.Score"
	if m.test == nil {
		return 0, errors.NewPreconditionError(op, "SetKernelTest")
	}
	pred, err := m.Predict(false)
	if err != nil {
		return 0, err
	}
	acc, err := metrics.Accuracy(m.test.ChoiceIDs(), pred)
	if err != nil {
		return 0, err
	}
	m.logger.Info("Test set scored",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseTesting,
		log.AccuracyKey, acc,
	)
	return acc, nil
}

// Results returns the estimation result of the last Fit.
func (m *KernelModel) Results() (*estimator.Result, error) {
	if m.results == nil {
		return nil, errors.NewPreconditionError("KernelModel.Results", "Fit")
	}
	return m.results, nil
}
