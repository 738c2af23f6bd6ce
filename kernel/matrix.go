package kernel

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/core/dataset"
	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
	"github.com/YuminosukeSato/gklr/preprocessing"
)

// Matrix is the kernel representation of a choice dataset: one
// (n_samples × n_support) block per alternative. A Matrix is read-only after
// construction.
type Matrix struct {
	choiceColumn string
	attributes   map[int][]string
	cfg          Config

	alternatives []int
	altIndex     map[int]int
	values       []*mat.Dense
	choices      []int
	nSamples     int
	test         bool

	// state reused by test matrices built against this one
	supportRows []int
	support     []*mat.Dense
	scalers     []preprocessing.Scaler
	functions   []Function
	projections []*mat.Dense
}

// Option configures NewMatrix.
type Option func(*options)

type options struct {
	logger log.Logger
}

// WithLogger sets the logger used during construction.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewMatrix builds the kernel matrix of data. When reference is nil the
// matrix is a train matrix: alternatives are the sorted distinct values of
// the choice column, and landmarks and compression are computed from data.
// Otherwise it is a test matrix evaluated against the reference's support
// rows with the reference's scalers and projections.
func NewMatrix(data *dataset.Dataset, choiceColumn string, attributes map[int][]string, cfg Config, reference *Matrix, opts ...Option) (*Matrix, error) {
	o := options{logger: log.GetLoggerWithName("kernel")}
	for _, opt := range opts {
		opt(&o)
	}
	const op = "kernel.NewMatrix"
	test := reference != nil
	if err := cfg.Validate(test); err != nil {
		return nil, err
	}
	if data == nil || data.NumRows() == 0 {
		return nil, errors.NewConfigurationError(op, "data", "dataset has no rows")
	}
	if !data.HasColumn(choiceColumn) {
		return nil, errors.NewConfigurationErrorf(op, "choice_column", "column %q not found in dataset", choiceColumn)
	}
	ids, err := data.IntColumn(choiceColumn)
	if err != nil {
		return nil, errors.NewConfigurationErrorf(op, "choice_column", "%v", err)
	}

	start := time.Now()
	K := &Matrix{
		choiceColumn: choiceColumn,
		attributes:   copyAttributes(attributes),
		cfg:          cfg,
		nSamples:     data.NumRows(),
		test:         test,
	}
	if test {
		K.alternatives = reference.alternatives
		K.altIndex = reference.altIndex
	} else {
		K.alternatives = uniqueSorted(ids)
		K.altIndex = make(map[int]int, len(K.alternatives))
		for a, id := range K.alternatives {
			K.altIndex[id] = a
		}
	}

	K.choices = make([]int, len(ids))
	for i, id := range ids {
		a, ok := K.altIndex[id]
		if !ok {
			return nil, errors.NewConfigurationErrorf(op, "choice_column",
				"alternative %d at row %d was not observed in the training data", id, i)
		}
		K.choices[i] = a
	}

	blocks, err := K.attributeBlocks(data, reference, o.logger)
	if err != nil {
		return nil, err
	}

	if test {
		K.supportRows = reference.supportRows
		K.support = reference.support
		K.scalers = reference.scalers
		K.functions = reference.functions
		K.projections = reference.projections
		for a, X := range blocks {
			if K.scalers[a] != nil {
				if X, err = K.scalers[a].Transform(X); err != nil {
					return nil, err
				}
			}
			blocks[a] = X
		}
	} else if err := K.fitSupport(blocks); err != nil {
		return nil, err
	}

	K.values = make([]*mat.Dense, len(blocks))
	for a, X := range blocks {
		values := Compute(K.functions[a], X, K.support[a])
		if K.projections != nil {
			var projected mat.Dense
			projected.Mul(values, K.projections[a])
			values = &projected
		}
		K.values[a] = values
	}

	phase := log.PhaseTraining
	if test {
		phase = log.PhaseTesting
	}
	o.logger.Debug("Kernel matrix created",
		log.PhaseKey, phase,
		log.KernelNameKey, cfg.Name,
		log.SamplesKey, K.nSamples,
		log.AlternativesKey, len(K.alternatives),
		log.SupportPointsKey, K.NumCols(),
		log.DataSizeKey, K.SizeBytes(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return K, nil
}

// attributeBlocks checks the attribute map against the alternatives and
// extracts one unscaled block per alternative.
func (K *Matrix) attributeBlocks(data *dataset.Dataset, reference *Matrix, logger log.Logger) ([]*mat.Dense, error) {
	const op = "kernel.NewMatrix"
	var extra []int
	for id, cols := range K.attributes {
		if len(cols) == 0 {
			return nil, errors.NewConfigurationErrorf(op, "attributes", "alternative %d has no attribute columns", id)
		}
		if _, ok := K.altIndex[id]; !ok {
			extra = append(extra, id)
		}
	}
	if len(extra) > 0 {
		sort.Ints(extra)
		logger.Warn("Attributes given for alternatives not observed in the choice column are ignored",
			"alternatives", extra)
	}

	blocks := make([]*mat.Dense, len(K.alternatives))
	for a, id := range K.alternatives {
		cols, ok := K.attributes[id]
		if !ok || len(cols) == 0 {
			return nil, errors.NewConfigurationErrorf(op, "attributes", "alternative %d has no attribute columns", id)
		}
		for _, c := range cols {
			if !data.HasColumn(c) {
				return nil, errors.NewConfigurationErrorf(op, "attributes",
					"column %q of alternative %d not found in dataset", c, id)
			}
		}
		if reference != nil {
			if want := len(reference.attributes[id]); want != len(cols) {
				return nil, errors.NewConfigurationErrorf(op, "attributes",
					"alternative %d has %d attribute columns, the training kernel used %d", id, len(cols), want)
			}
		}
		X, err := data.Select(cols)
		if err != nil {
			return nil, err
		}
		blocks[a] = X
	}
	return blocks, nil
}

// fitSupport fits scalers, kernel functions, landmarks and compression
// projections from the training blocks. blocks are scaled in place.
func (K *Matrix) fitSupport(blocks []*mat.Dense) error {
	const op = "kernel.NewMatrix"
	nAlt := len(blocks)
	K.scalers = make([]preprocessing.Scaler, nAlt)
	K.functions = make([]Function, nAlt)
	for a, X := range blocks {
		scaler, err := preprocessing.NewScaler(K.cfg.Scaling)
		if err != nil {
			return err
		}
		if scaler != nil {
			if X, err = scaler.FitTransform(X); err != nil {
				return err
			}
			blocks[a] = X
		}
		K.scalers[a] = scaler
		_, d := X.Dims()
		if K.functions[a], err = NewFunction(K.cfg, d); err != nil {
			return err
		}
	}

	if !K.cfg.Nystrom {
		K.support = blocks
		return nil
	}

	m := K.cfg.Landmarks
	if m >= K.nSamples {
		return errors.NewConfigurationErrorf(op, "landmarks",
			"number of landmarks (%d) must be smaller than the number of samples (%d)", m, K.nSamples)
	}
	rnd := newRand(K.cfg.Seed)
	if K.cfg.Sampling == SamplingRLS {
		K.supportRows = rlsLandmarks(blocks, K.functions, m, K.cfg.rlsLambda(), rnd)
	} else {
		K.supportRows = uniformLandmarks(K.nSamples, m, rnd)
	}

	K.support = make([]*mat.Dense, nAlt)
	for a, X := range blocks {
		K.support[a] = rowsOf(X, K.supportRows)
	}
	if !K.cfg.Compression {
		return nil
	}
	K.projections = make([]*mat.Dense, nAlt)
	for a := range blocks {
		kmm := Compute(K.functions[a], K.support[a], K.support[a])
		W, err := inverseSqrt(kmm)
		if err != nil {
			return err
		}
		K.projections[a] = W
	}
	return nil
}

// NumCols returns the width of every per-alternative block.
func (K *Matrix) NumCols() int {
	_, c := K.values[0].Dims()
	return c
}

// NumAlternatives returns the number of alternatives.
func (K *Matrix) NumAlternatives() int { return len(K.alternatives) }

// Alternatives returns the sorted alternative IDs.
func (K *Matrix) Alternatives() []int { return append([]int(nil), K.alternatives...) }

// NumSamples returns the number of rows of every block.
func (K *Matrix) NumSamples() int { return K.nSamples }

// Get returns the block of the alternative at position index in Alternatives.
// The returned matrix must not be modified.
func (K *Matrix) Get(index int) (*mat.Dense, error) {
	if index < 0 || index >= len(K.values) {
		return nil, errors.NewValidationError("index", "alternative index out of range", index)
	}
	return K.values[index], nil
}

// GetByAlternative returns the block of alternative id.
func (K *Matrix) GetByAlternative(id int) (*mat.Dense, error) {
	a, ok := K.altIndex[id]
	if !ok {
		return nil, errors.NewValidationError("alternative", "unknown alternative", id)
	}
	return K.values[a], nil
}

// Block returns the block at position a without bounds reporting. It is
// meant for hot loops that already iterate over [0, NumAlternatives()).
func (K *Matrix) Block(a int) *mat.Dense { return K.values[a] }

// Choices returns, per sample, the position in Alternatives of the chosen
// alternative.
func (K *Matrix) Choices() []int { return append([]int(nil), K.choices...) }

// Choice returns the encoded choice of sample i.
func (K *Matrix) Choice(i int) int { return K.choices[i] }

// ChoiceIDs returns the chosen alternative IDs.
func (K *Matrix) ChoiceIDs() []int {
	out := make([]int, len(K.choices))
	for i, a := range K.choices {
		out[i] = K.alternatives[a]
	}
	return out
}

// SupportRows returns the training rows used as landmarks, or nil for an
// exact kernel.
func (K *Matrix) SupportRows() []int { return append([]int(nil), K.supportRows...) }

// Config returns the kernel configuration used to build K.
func (K *Matrix) Config() Config { return K.cfg }

// ChoiceColumn returns the choice column name.
func (K *Matrix) ChoiceColumn() string { return K.choiceColumn }

// Attributes returns a copy of the attribute map.
func (K *Matrix) Attributes() map[int][]string { return copyAttributes(K.attributes) }

// IsTest reports whether K was built against a reference matrix.
func (K *Matrix) IsTest() bool { return K.test }

// SizeBytes returns the size of the kernel values in bytes.
func (K *Matrix) SizeBytes() int {
	size := 0
	for _, v := range K.values {
		r, c := v.Dims()
		size += r * c * 8
	}
	return size
}

func uniqueSorted(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	var out []int
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func copyAttributes(attributes map[int][]string) map[int][]string {
	out := make(map[int][]string, len(attributes))
	for id, cols := range attributes {
		out[id] = append([]string(nil), cols...)
	}
	return out
}
