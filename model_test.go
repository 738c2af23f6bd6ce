package gklr

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gklr/config"
	"github.com/YuminosukeSato/gklr/core/dataset"
	"github.com/YuminosukeSato/gklr/core/model"
	"github.com/YuminosukeSato/gklr/estimator"
	"github.com/YuminosukeSato/gklr/kernel"
	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
)

var testAttributes = map[int][]string{1: {"x1"}, 2: {"x2"}, 3: {"x3"}}

// choiceData draws n samples whose choice maximizes 3·x_a plus Gumbel noise.
// With noise set, the attributes are replaced by values unrelated to the
// choice.
func choiceData(t *testing.T, n int, seed uint64, noise bool) *dataset.Dataset {
	t.Helper()
	rnd := rand.New(rand.NewPCG(seed, seed+1))
	cols := map[string][]float64{"choice": make([]float64, n)}
	names := []string{"x1", "x2", "x3"}
	for _, name := range names {
		cols[name] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		best, bestU := 0, math.Inf(-1)
		for a, name := range names {
			x := rnd.NormFloat64()
			u := 3*x - math.Log(-math.Log(rnd.Float64()))
			if u > bestU {
				best, bestU = a, u
			}
			cols[name][i] = x
		}
		cols["choice"][i] = float64(best + 1)
	}
	if noise {
		for _, name := range names {
			for i := range cols[name] {
				cols[name][i] = rnd.NormFloat64()
			}
		}
	}
	data, err := dataset.FromColumns(cols)
	require.NoError(t, err)
	return data
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ChoiceColumn = "choice"
	cfg.Attributes = testAttributes
	cfg.Estimation.PmleLambda = 0.01
	return cfg
}

func newTestModel(t *testing.T, cfg *config.Config) *KernelModel {
	t.Helper()
	m, err := NewKernelModel(WithConfig(cfg), WithLogger(log.NewNopLogger()))
	require.NoError(t, err)
	return m
}

func TestNewKernelModelChecksConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Estimation.Method = "Newton"
	_, err := NewKernelModel(WithConfig(cfg))
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))

	m, err := NewKernelModel()
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID())
	assert.Equal(t, config.Default(), m.Config())
}

func TestPreconditions(t *testing.T) {
	m := newTestModel(t, testConfig())

	err := m.Fit(FitOptions{})
	require.True(t, errors.IsPreconditionError(err))
	assert.Contains(t, err.Error(), "First you must call SetKernelTrain")

	err = m.SetKernelTest(choiceData(t, 10, 1, false), "", nil, nil)
	require.True(t, errors.IsPreconditionError(err))

	_, err = m.PredictProba(true)
	require.True(t, errors.IsPreconditionError(err))
	assert.Contains(t, err.Error(), "Fit")

	_, err = m.Results()
	assert.True(t, errors.IsPreconditionError(err))
	_, err = m.Weights()
	assert.True(t, errors.IsPreconditionError(err))

	_, err = m.Score()
	require.True(t, errors.IsPreconditionError(err))
	assert.Contains(t, err.Error(), "SetKernelTest")

	require.NoError(t, m.SetKernelTrain(choiceData(t, 30, 2, false), "", nil, nil))
	require.NoError(t, m.Fit(FitOptions{}))

	_, err = m.Predict(false)
	require.True(t, errors.IsPreconditionError(err))
	assert.Contains(t, err.Error(), "SetKernelTest")
}

func TestSignalBeatsNoise(t *testing.T) {
	fit := func(noise bool) float64 {
		cfg := testConfig()
		cfg.Estimation.PmleLambda = 0.1
		m := newTestModel(t, cfg)
		require.NoError(t, m.SetKernelTrain(choiceData(t, 80, 3, noise), "", nil, nil))
		require.NoError(t, m.Fit(FitOptions{}))
		res, err := m.Results()
		require.NoError(t, err)
		return res.McFaddenR2
	}
	signal := fit(false)
	noise := fit(true)
	assert.Greater(t, signal, noise)
	assert.Greater(t, signal, 0.0)
}

func TestPredictAndScore(t *testing.T) {
	m := newTestModel(t, testConfig())
	require.NoError(t, m.SetKernelTrain(choiceData(t, 80, 4, false), "", nil, nil))
	require.NoError(t, m.Fit(FitOptions{}))
	require.NoError(t, m.SetKernelTest(choiceData(t, 40, 5, false), "", nil, nil))

	proba, err := m.PredictProba(false)
	require.NoError(t, err)
	r, c := proba.Dims()
	require.Equal(t, []int{40, 3}, []int{r, c})
	for i := 0; i < r; i++ {
		sum := 0.0
		for a := 0; a < c; a++ {
			sum += proba.At(i, a)
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}

	logProba, err := m.PredictLogProba(false)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(proba.At(0, 1)), logProba.At(0, 1), 1e-12)

	pred, err := m.Predict(false)
	require.NoError(t, err)
	require.Len(t, pred, 40)
	for _, id := range pred {
		assert.Contains(t, []int{1, 2, 3}, id)
	}

	score, err := m.Score()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.4)
	assert.LessOrEqual(t, score, 1.0)

	trainProba, err := m.PredictProba(true)
	require.NoError(t, err)
	tr, _ := trainProba.Dims()
	assert.Equal(t, 80, tr)
}

func TestFitOptionsOverrideConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Optimizer.MaxIter = 50
	cfg.Optimizer.LearningRate = 0.01
	m := newTestModel(t, cfg)
	require.NoError(t, m.SetKernelTrain(choiceData(t, 30, 6, false), "", nil, nil))

	lambda := 0.5
	require.NoError(t, m.Fit(FitOptions{Method: estimator.MethodSGD, Pmle: estimator.PmleNone, PmleLambda: &lambda}))
	res, err := m.Results()
	require.NoError(t, err)
	assert.Equal(t, estimator.MethodSGD, res.Method)
	assert.Equal(t, estimator.PmleNone, res.Pmle)
	assert.Equal(t, 0.5, res.PmleLambda)

	w, err := m.Weights()
	require.NoError(t, err)
	assert.Equal(t, estimator.MethodSGD, w.Hyperparameters["method"])

	err = m.Fit(FitOptions{InitParams: []float64{1, 2, 3}})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestKernelLifecycle(t *testing.T) {
	m := newTestModel(t, testConfig())
	require.NoError(t, m.SetKernelTrain(choiceData(t, 20, 7, false), "", nil, nil))
	require.NoError(t, m.SetKernelTest(choiceData(t, 10, 8, false), "", nil, nil))

	train, test, err := m.GetKernel(KernelBoth)
	require.NoError(t, err)
	require.NotNil(t, train)
	require.NotNil(t, test)
	assert.True(t, test.IsTest())

	_, _, err = m.GetKernel("validation")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Error(t, m.ClearKernel("validation"))

	require.NoError(t, m.ClearKernel(KernelTest))
	train, test, err = m.GetKernel(KernelBoth)
	require.NoError(t, err)
	assert.NotNil(t, train)
	assert.Nil(t, test)

	// a failed train kernel leaves nothing behind
	err = m.SetKernelTrain(choiceData(t, 20, 9, false), "missing", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
	train, _, err = m.GetKernel(KernelTrain)
	require.NoError(t, err)
	assert.Nil(t, train)
}

func TestTestKernelReusesLandmarks(t *testing.T) {
	cfg := testConfig()
	cfg.Kernel.Nystrom = true
	cfg.Kernel.Landmarks = 15
	cfg.Kernel.Compression = true
	cfg.Kernel.Seed = 3
	m := newTestModel(t, cfg)
	require.NoError(t, m.SetKernelTrain(choiceData(t, 50, 10, false), "", nil, nil))
	require.NoError(t, m.SetKernelTest(choiceData(t, 12, 11, false), "", nil, nil))

	train, test, err := m.GetKernel(KernelBoth)
	require.NoError(t, err)
	assert.Equal(t, 15, train.NumCols())
	assert.Equal(t, 15, test.NumCols())
	assert.Equal(t, train.SupportRows(), test.SupportRows())
	assert.False(t, test.Config().Nystrom)
	assert.False(t, test.Config().Compression)

	require.NoError(t, m.Fit(FitOptions{}))
	_, err = m.Score()
	assert.NoError(t, err)
}

func TestUnseenTestAlternative(t *testing.T) {
	m := newTestModel(t, testConfig())
	require.NoError(t, m.SetKernelTrain(choiceData(t, 20, 12, false), "", nil, nil))

	Z, err := dataset.New([]string{"choice", "x1", "x2", "x3"}, [][]float64{{4, 0, 0, 0}})
	require.NoError(t, err)
	err = m.SetKernelTest(Z, "", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}

func TestNestedWeightsRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Nests = [][]int{{1, 2}, {3}}
	cfg.Estimation.Method = estimator.MethodBFGS
	cfg.Estimation.PmleLambda = 0.1
	data := choiceData(t, 40, 13, false)

	m := newTestModel(t, cfg)
	require.NoError(t, m.SetKernelTrain(data, "", nil, nil))
	require.NoError(t, m.Fit(FitOptions{}))

	w, err := m.Weights()
	require.NoError(t, err)
	assert.Equal(t, ModelTypeNested, w.ModelType)
	assert.Len(t, w.Lambd, 2)
	assert.Equal(t, [][]int{{1, 2}, {3}}, w.Nests)
	assert.Equal(t, []int{1, 2, 3}, w.Alternatives)
	assert.Equal(t, 40, w.AlphaRows)
	assert.Contains(t, w.Metrics, "train_log_loss")

	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, m.SaveWeights(path))
	loaded, err := model.LoadWeights(path)
	require.NoError(t, err)

	restored := newTestModel(t, cfg)
	require.NoError(t, restored.SetKernelTrain(data, "", nil, nil))
	require.NoError(t, restored.LoadWeights(loaded))

	want, err := m.PredictProba(true)
	require.NoError(t, err)
	got, err := restored.PredictProba(true)
	require.NoError(t, err)
	r, c := want.Dims()
	for i := 0; i < r; i++ {
		for a := 0; a < c; a++ {
			assert.InDelta(t, want.At(i, a), got.At(i, a), 1e-12)
		}
	}
	_, err = restored.Results()
	assert.True(t, errors.IsPreconditionError(err))
}

func TestLoadWeightsRejectsLegacyLambdaKey(t *testing.T) {
	cfg := testConfig()
	cfg.Nests = [][]int{{1, 2}, {3}}
	m := newTestModel(t, cfg)
	require.NoError(t, m.SetKernelTrain(choiceData(t, 20, 14, false), "", nil, nil))
	require.NoError(t, m.Fit(FitOptions{}))

	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, m.SaveWeights(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	legacy := append([]byte(`{"lambda": [1, 1], `), data[1:]...)
	w := &model.ModelWeights{}
	require.NoError(t, w.FromJSON(legacy))
	err = m.LoadWeights(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lambd")
}

func TestLoadWeightsShapeMismatch(t *testing.T) {
	m := newTestModel(t, testConfig())
	require.NoError(t, m.SetKernelTrain(choiceData(t, 20, 15, false), "", nil, nil))
	require.NoError(t, m.Fit(FitOptions{}))
	w, err := m.Weights()
	require.NoError(t, err)

	other := newTestModel(t, testConfig())
	require.NoError(t, other.SetKernelTrain(choiceData(t, 25, 16, false), "", nil, nil))
	err = other.LoadWeights(w)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	cfg := kernel.DefaultConfig()
	require.NoError(t, other.SetKernelTrain(choiceData(t, 20, 17, false), "", nil, &cfg))
	assert.NoError(t, other.LoadWeights(w))
	alpha, err := other.Alpha()
	require.NoError(t, err)
	r, c := alpha.Dims()
	assert.Equal(t, []int{20, 3}, []int{r, c})
}

func TestFittedParamsSurviveClearKernel(t *testing.T) {
	cfg := testConfig()
	cfg.Nests = [][]int{{1, 2}, {3}}
	cfg.Estimation.Method = estimator.MethodBFGS
	cfg.Estimation.PmleLambda = 0.1
	data := choiceData(t, 30, 15, false)
	m := newTestModel(t, cfg)
	require.NoError(t, m.SetKernelTrain(data, "", nil, nil))
	require.NoError(t, m.Fit(FitOptions{}))
	want, err := m.Weights()
	require.NoError(t, err)

	require.NoError(t, m.ClearKernel(KernelBoth))

	w, err := m.Weights()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, w.Alternatives)
	assert.Equal(t, want.Alpha, w.Alpha)
	assert.Equal(t, want.Lambd, w.Lambd)

	alpha, err := m.Alpha()
	require.NoError(t, err)
	r, c := alpha.Dims()
	assert.Equal(t, 30, r)
	assert.Equal(t, 3, c)

	dir := t.TempDir()
	for _, name := range []string{"weights.json", "weights.gob"} {
		path := filepath.Join(dir, name)
		require.NoError(t, m.SaveWeights(path))
		loaded, err := model.LoadWeights(path)
		require.NoError(t, err)
		assert.Equal(t, want.Alpha, loaded.Alpha)
		assert.Equal(t, want.Nests, loaded.Nests)
	}

	// predictions need a kernel again
	_, err = m.Predict(true)
	assert.True(t, errors.IsPreconditionError(err))

	restored := newTestModel(t, cfg)
	require.NoError(t, restored.SetKernelTrain(data, "", nil, nil))
	require.NoError(t, restored.LoadWeights(w))
	require.NoError(t, restored.ClearKernel(KernelTrain))
	got, err := restored.Weights()
	require.NoError(t, err)
	assert.Equal(t, w.Alternatives, got.Alternatives)
}

func TestNestsIgnoreUnobservedAttributeKeys(t *testing.T) {
	cfg := testConfig()
	cfg.Attributes = map[int][]string{1: {"x1"}, 2: {"x2"}, 3: {"x3"}, 4: {"x1"}}
	cfg.Nests = [][]int{{1, 2}, {3}}
	cfg.Estimation.Method = estimator.MethodBFGS
	cfg.Estimation.PmleLambda = 0.1

	m := newTestModel(t, cfg)
	require.NoError(t, m.SetKernelTrain(choiceData(t, 30, 16, false), "", nil, nil))
	require.NoError(t, m.Fit(FitOptions{}))
	w, err := m.Weights()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, w.Alternatives)
	assert.Len(t, w.Lambd, 2)
}
