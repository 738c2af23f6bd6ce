// Package config holds the hyperparameters of a kernel logit model: the data
// layout, the kernel, the estimation settings and the optimizer settings.
// Configs are plain values loaded from YAML and checked with CheckValues
// before any kernel is built.
package config

import (
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/gklr/calcs"
	"github.com/YuminosukeSato/gklr/estimator"
	"github.com/YuminosukeSato/gklr/kernel"
	"github.com/YuminosukeSato/gklr/optimizer"
	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// Estimation selects the penalized objective and the optimization method.
type Estimation struct {
	Pmle       string  `yaml:"pmle" json:"pmle" validate:"omitempty,oneof=None Tikhonov"`
	PmleLambda float64 `yaml:"pmle_lambda" json:"pmle_lambda" validate:"gte=0"`
	Method     string  `yaml:"method" json:"method" validate:"required,oneof=SGD L-BFGS-B L-BFGS BFGS CG GD"`
}

// Optimizer holds the iteration settings shared by every method. LearningRate,
// MiniBatchSize and Seed only apply to SGD.
type Optimizer struct {
	LearningRate  float64 `yaml:"learning_rate" json:"learning_rate" validate:"gt=0"`
	MiniBatchSize int     `yaml:"mini_batch_size" json:"mini_batch_size" validate:"gte=0"`
	GTol          float64 `yaml:"gtol" json:"gtol" validate:"gt=0"`
	MaxIter       int     `yaml:"maxiter" json:"maxiter" validate:"gt=0"`
	PrintEvery    int     `yaml:"print_every" json:"print_every" validate:"gte=0"`
	Seed          int64   `yaml:"seed" json:"seed"`
}

// Config is the full model configuration. A non-empty Nests selects the
// nested logit model.
type Config struct {
	ChoiceColumn string           `yaml:"choice_column" json:"choice_column"`
	Attributes   map[int][]string `yaml:"attributes" json:"attributes" validate:"omitempty,dive,min=1,dive,required"`
	Kernel       kernel.Config    `yaml:"kernel" json:"kernel"`
	Nests        [][]int          `yaml:"nests,omitempty" json:"nests,omitempty" validate:"omitempty,dive,min=1"`
	Estimation   Estimation       `yaml:"estimation" json:"estimation"`
	Optimizer    Optimizer        `yaml:"optimizer" json:"optimizer"`
}

var validate = validator.New()

// Default returns the default configuration: an exact RBF kernel, Tikhonov
// penalization with a zero coefficient, and L-BFGS-B.
func Default() *Config {
	s := optimizer.DefaultSettings(1)
	return &Config{
		Kernel: kernel.DefaultConfig(),
		Estimation: Estimation{
			Pmle:   estimator.PmleTikhonov,
			Method: estimator.DefaultMethod,
		},
		Optimizer: Optimizer{
			LearningRate: s.LearningRate,
			GTol:         s.GTol,
			MaxIter:      s.MaxIter,
		},
	}
}

// Load reads a YAML file on top of Default and checks the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and checks the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.CheckValues(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}
	return nil
}

// Nested reports whether the config describes a nested logit model.
func (c *Config) Nested() bool { return len(c.Nests) > 0 }

// CheckValues validates the struct rules and the cross-field rules. Nests
// are checked against the attribute keys when both are set; the kernel
// matrix checks them again against the observed alternatives.
func (c *Config) CheckValues() error {
	const op = "config.CheckValues"
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewConfigurationErrorf(op, fieldName(fe),
				"failed on the '%s' rule (got %v)", ruleText(fe), fe.Value())
		}
		return errors.Wrap(err, "config validation")
	}
	if err := c.Kernel.Validate(false); err != nil {
		return err
	}
	if len(c.Nests) > 0 {
		if err := c.checkNests(); err != nil {
			return err
		}
	}
	if c.Optimizer.MiniBatchSize > 0 && c.Estimation.Method != estimator.MethodSGD {
		return errors.NewConfigurationErrorf(op, "mini_batch_size",
			"mini-batches are only used by %s, got method %s", estimator.MethodSGD, c.Estimation.Method)
	}
	return nil
}

// checkNests rejects empty nests, alternatives listed twice and alternatives
// without attribute columns. Coverage of the observed alternatives is checked
// at Fit by calcs.NewNestedKernelCalcs.
func (c *Config) checkNests() error {
	seen := make(map[int]bool)
	var ids []int
	for _, nest := range c.Nests {
		for _, id := range nest {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	if err := calcs.ValidateNests(c.Nests, ids); err != nil {
		return err
	}
	if len(c.Attributes) == 0 {
		return nil
	}
	var bare []int
	for _, id := range ids {
		if len(c.Attributes[id]) == 0 {
			bare = append(bare, id)
		}
	}
	if len(bare) > 0 {
		return errors.NewConfigurationErrorf("config.CheckValues", "nests",
			"alternatives %v have no attribute columns", bare)
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// OptimizerSettings returns the optimizer settings for nSamples samples.
func (c *Config) OptimizerSettings(nSamples int) optimizer.Settings {
	return optimizer.Settings{
		Method:        c.Estimation.Method,
		LearningRate:  c.Optimizer.LearningRate,
		MiniBatchSize: c.Optimizer.MiniBatchSize,
		NSamples:      nSamples,
		GTol:          c.Optimizer.GTol,
		MaxIter:       c.Optimizer.MaxIter,
		PrintEvery:    c.Optimizer.PrintEvery,
		Seed:          c.Optimizer.Seed,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Attributes != nil {
		out.Attributes = make(map[int][]string, len(c.Attributes))
		for id, cols := range c.Attributes {
			out.Attributes[id] = append([]string(nil), cols...)
		}
	}
	if c.Nests != nil {
		out.Nests = make([][]int, len(c.Nests))
		for i, nest := range c.Nests {
			out.Nests[i] = append([]int(nil), nest...)
		}
	}
	return &out
}
