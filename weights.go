package gklr

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/core/model"
	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
)

// Weights returns a snapshot of the fitted parameters.
func (m *KernelModel) Weights() (*model.ModelWeights, error) {
	const op = "KernelModel.Weights"
	if err := m.state.RequireFitted(op); err != nil {
		return nil, err
	}
	_, nAlternatives, _ := m.state.GetDimensions()
	nAlpha := len(m.params) - len(m.nests)
	w := &model.ModelWeights{
		ModelType:       ModelTypeFlat,
		Version:         model.WeightsVersion,
		Alternatives:    append([]int(nil), m.fitAlternatives...),
		Alpha:           append([]float64(nil), m.params[:nAlpha]...),
		AlphaRows:       nAlpha / nAlternatives,
		AlphaCols:       nAlternatives,
		Hyperparameters: m.cfg.Hyperparameters(),
		Metrics:         make(map[string]float64, len(m.metrics)),
		IsFitted:        true,
	}
	if len(m.nests) > 0 {
		w.ModelType = ModelTypeNested
		w.Lambd = append([]float64(nil), m.params[nAlpha:]...)
		for _, nest := range m.nests {
			w.Nests = append(w.Nests, append([]int(nil), nest...))
		}
	}
	w.Hyperparameters["pmle"] = m.fitUsed.Pmle
	w.Hyperparameters["pmle_lambda"] = m.fitUsed.PmleLambda
	w.Hyperparameters["method"] = m.fitUsed.Method
	for k, v := range m.metrics {
		w.Metrics[k] = v
	}
	return w, nil
}

// SaveWeights writes the fitted parameters to path, as gob for a .gob
// extension and as JSON otherwise.
func (m *KernelModel) SaveWeights(path string) error {
	w, err := m.Weights()
	if err != nil {
		return err
	}
	return model.SaveWeights(w, path)
}

// LoadWeights restores fitted parameters on the current train kernel. The
// snapshot must be consistent (see model.ModelWeights.Validate) and match
// the train kernel alternatives and support size.
func (m *KernelModel) LoadWeights(w *model.ModelWeights) error {
	const op = "KernelModel.LoadWeights"
	if w == nil {
		return errors.NewValidationError("weights", "nil snapshot", nil)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if !w.IsFitted {
		return errors.NewValidationError("is_fitted", "snapshot holds no fitted parameters", false)
	}
	if m.train == nil {
		return errors.NewPreconditionError(op, "SetKernelTrain")
	}
	alts := m.train.Alternatives()
	if !sort.IntsAreSorted(w.Alternatives) || !equalInts(alts, w.Alternatives) {
		return errors.NewValidationError("alternatives", "do not match the train kernel", w.Alternatives)
	}
	if w.AlphaRows != m.train.NumCols() {
		return errors.NewDimensionError(op, m.train.NumCols(), w.AlphaRows, 0)
	}
	c, err := calcsFor(m.train, w.Nests)
	if err != nil {
		return err
	}
	params := append(append([]float64(nil), w.Alpha...), w.Lambd...)
	if err := c.CheckParams(params); err != nil {
		return err
	}

	m.params = params
	m.nests = nil
	for _, nest := range w.Nests {
		m.nests = append(m.nests, append([]int(nil), nest...))
	}
	m.fitAlternatives = alts
	m.results = nil
	m.metrics = make(map[string]float64, len(w.Metrics))
	for k, v := range w.Metrics {
		m.metrics[k] = v
	}
	m.fitUsed.Pmle, _ = w.Hyperparameters["pmle"].(string)
	m.fitUsed.PmleLambda, _ = w.Hyperparameters["pmle_lambda"].(float64)
	m.fitUsed.Method, _ = w.Hyperparameters["method"].(string)
	m.state.SetFitted(c.NumSamples(), len(alts), len(params))

	m.logger.Info("Weights loaded",
		log.ModelNameKey, w.ModelType,
		log.ParametersKey, len(params),
		log.NestsKey, len(w.Nests),
	)
	return nil
}

// Alpha returns the fitted (n_support × n_alternatives) weight matrix.
func (m *KernelModel) Alpha() (*mat.Dense, error) {
	w, err := m.Weights()
	if err != nil {
		return nil, err
	}
	return mat.NewDense(w.AlphaRows, w.AlphaCols, w.Alpha), nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
