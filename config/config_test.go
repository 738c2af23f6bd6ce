package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gklr/kernel"
	"github.com/YuminosukeSato/gklr/pkg/errors"
)

const sampleYAML = `
choice_column: choice
attributes:
  1: [price_1, time_1]
  2: [price_2, time_2]
  3: [price_3, time_3]
kernel:
  name: rbf
  gamma: 0.1
  nystrom: true
  landmarks: 50
  sampling: rls
nests:
  - [1, 2]
  - [3]
estimation:
  pmle: Tikhonov
  pmle_lambda: 0.01
  method: SGD
optimizer:
  learning_rate: 0.01
  mini_batch_size: 32
  maxiter: 200
  print_every: 10
  seed: 7
`

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.CheckValues())
	assert.Equal(t, "L-BFGS-B", cfg.Estimation.Method)
	assert.Equal(t, "Tikhonov", cfg.Estimation.Pmle)
	assert.Equal(t, 0.0, cfg.Estimation.PmleLambda)
	assert.Equal(t, kernel.RBF, cfg.Kernel.Name)
	assert.False(t, cfg.Nested())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "choice", cfg.ChoiceColumn)
	assert.Equal(t, []string{"price_3", "time_3"}, cfg.Attributes[3])
	assert.Equal(t, 0.1, cfg.Kernel.Gamma)
	assert.Equal(t, kernel.SamplingRLS, cfg.Kernel.Sampling)
	assert.True(t, cfg.Nested())
	assert.Equal(t, "SGD", cfg.Estimation.Method)
	assert.Equal(t, 32, cfg.Optimizer.MiniBatchSize)
	// unset fields keep their defaults
	assert.Equal(t, 1e-6, cfg.Optimizer.GTol)
	assert.Equal(t, 3, cfg.Kernel.Degree)

	s := cfg.OptimizerSettings(100)
	assert.Equal(t, 100, s.NSamples)
	assert.Equal(t, int64(7), s.Seed)
	assert.Equal(t, 10, s.PrintEvery)
}

func TestSaveAndLoad(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCheckValues(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(c *Config)
		param string
	}{
		{"unknown method", func(c *Config) { c.Estimation.Method = "Newton" }, "Estimation.Method"},
		{"unknown pmle", func(c *Config) { c.Estimation.Pmle = "Lasso" }, "Estimation.Pmle"},
		{"negative pmle lambda", func(c *Config) { c.Estimation.PmleLambda = -1 }, "Estimation.PmleLambda"},
		{"zero learning rate", func(c *Config) { c.Optimizer.LearningRate = 0 }, "Optimizer.LearningRate"},
		{"zero maxiter", func(c *Config) { c.Optimizer.MaxIter = 0 }, "Optimizer.MaxIter"},
		{"unknown kernel", func(c *Config) { c.Kernel.Name = "sigmoid" }, "Kernel.Name"},
		{"empty attribute list", func(c *Config) { c.Attributes = map[int][]string{1: {}} }, "Attributes[1]"},
		{"compression without nystrom", func(c *Config) { c.Kernel.Compression = true }, "compression"},
		{"nystrom without landmarks", func(c *Config) { c.Kernel.Nystrom = true }, "landmarks"},
		{"mini batches without SGD", func(c *Config) { c.Optimizer.MiniBatchSize = 10 }, "mini_batch_size"},
		{"empty nest", func(c *Config) { c.Nests = [][]int{{1}, {}} }, "Nests[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.CheckValues()
			require.Error(t, err)
			var ce *errors.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.param, ce.Param)
		})
	}
}

func TestCheckValuesNestsAgainstAttributes(t *testing.T) {
	cfg := Default()
	cfg.Attributes = map[int][]string{1: {"a"}, 2: {"b"}, 3: {"c"}}
	cfg.Nests = [][]int{{1, 2}, {2, 3}}

	err := cfg.CheckValues()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate alternatives [2]")

	cfg.Nests = [][]int{{1, 2}, {3}}
	assert.NoError(t, cfg.CheckValues())

	// coverage is checked against the observed alternatives at Fit
	cfg.Attributes[4] = []string{"d"}
	assert.NoError(t, cfg.CheckValues())

	cfg.Nests = [][]int{{1, 2}, {3, 5}}
	err = cfg.CheckValues()
	var ce *errors.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "nests", ce.Param)
	assert.Contains(t, ce.Reason, "[5]")
}

func TestHyperparameters(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.SetHyperparameter("gamma", 2))
	require.NoError(t, cfg.SetHyperparameter("method", "SGD"))
	require.NoError(t, cfg.SetHyperparameter("mini_batch_size", 16.0))
	require.NoError(t, cfg.SetHyperparameter("seed", 11))
	require.NoError(t, cfg.SetHyperparameter("nests", [][]int{{1}, {2, 3}}))

	v, err := cfg.GetHyperparameter("gamma")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	v, err = cfg.GetHyperparameter("mini_batch_size")
	require.NoError(t, err)
	assert.Equal(t, 16, v)
	assert.Equal(t, int64(11), cfg.Kernel.Seed)
	assert.Equal(t, int64(11), cfg.Optimizer.Seed)
	assert.True(t, cfg.Nested())

	all := cfg.Hyperparameters()
	for _, name := range HyperparameterNames {
		assert.Contains(t, all, name)
	}
}

func TestHyperparameterErrors(t *testing.T) {
	cfg := Default()

	_, err := cfg.GetHyperparameter("alpha")
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))

	assert.Error(t, cfg.SetHyperparameter("alpha", 1.0))
	assert.Error(t, cfg.SetHyperparameter("gamma", "big"))
	assert.Error(t, cfg.SetHyperparameter("maxiter", 1.5))
	assert.Error(t, cfg.SetHyperparameter("nystrom", 1))
	assert.Error(t, cfg.SetHyperparameter("nests", []int{1, 2}))
	assert.Equal(t, Default(), cfg)
}

func TestClone(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	c := cfg.Clone()
	c.Attributes[1][0] = "changed"
	c.Nests[0][0] = 9
	assert.Equal(t, "price_1", cfg.Attributes[1][0])
	assert.Equal(t, 1, cfg.Nests[0][0])
}
