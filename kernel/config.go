package kernel

import (
	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/preprocessing"
)

// Kernel function names.
const (
	RBF        = "rbf"
	Linear     = "linear"
	Polynomial = "polynomial"
	Laplacian  = "laplacian"
)

// Landmark sampling strategies.
const (
	SamplingUniform = "uniform"
	SamplingRLS     = "rls"
)

// DefaultRLSLambda is the ridge parameter used for leverage scores when none is set.
const DefaultRLSLambda = 1e-3

// Config holds the kernel function, its parameters and the train-only
// approximation settings.
type Config struct {
	Name   string  `yaml:"name" json:"name" validate:"required,oneof=rbf linear polynomial laplacian"`
	Gamma  float64 `yaml:"gamma" json:"gamma" validate:"gte=0"` // 0 means 1/n_features
	Degree int     `yaml:"degree" json:"degree" validate:"gte=0"`
	Coef0  float64 `yaml:"coef0" json:"coef0"`

	Nystrom     bool    `yaml:"nystrom" json:"nystrom"`
	Landmarks   int     `yaml:"landmarks" json:"landmarks" validate:"gte=0"`
	Sampling    string  `yaml:"sampling" json:"sampling" validate:"omitempty,oneof=uniform rls"`
	RLSLambda   float64 `yaml:"rls_lambda" json:"rls_lambda" validate:"gte=0"`
	Compression bool    `yaml:"compression" json:"compression"`
	Seed        int64   `yaml:"seed" json:"seed"`

	Scaling string `yaml:"scaling" json:"scaling" validate:"omitempty,oneof=none standard minmax"`
}

// DefaultConfig returns an exact RBF kernel with gamma = 1/n_features.
func DefaultConfig() Config {
	return Config{
		Name:     RBF,
		Degree:   3,
		Coef0:    1,
		Sampling: SamplingUniform,
		Scaling:  preprocessing.ScalingNone,
	}
}

// Approximated reports whether the config requests landmark sampling.
func (c Config) Approximated() bool {
	return c.Nystrom
}

// TestConfig returns a copy with the train-only approximation settings removed.
func (c Config) TestConfig() Config {
	c.Nystrom = false
	c.Compression = false
	c.Landmarks = 0
	return c
}

// Validate checks the config on its own. Landmark counts against the sample
// size are checked by NewMatrix.
func (c Config) Validate(test bool) error {
	const op = "kernel.Config.Validate"
	switch c.Name {
	case RBF, Linear, Laplacian:
	case Polynomial:
		if c.Degree < 1 {
			return errors.NewConfigurationErrorf(op, "degree", "must be >= 1 for the polynomial kernel, got %d", c.Degree)
		}
	default:
		return errors.NewConfigurationErrorf(op, "name",
			"unknown kernel %q, supported: rbf, linear, polynomial, laplacian", c.Name)
	}
	if c.Gamma < 0 {
		return errors.NewConfigurationErrorf(op, "gamma", "must be >= 0, got %g", c.Gamma)
	}
	if _, err := preprocessing.NewScaler(c.Scaling); err != nil {
		return err
	}
	if test && (c.Nystrom || c.Compression) {
		return errors.NewConfigurationError(op, "nystrom",
			"approximation is a train-only operation and cannot be used for a test kernel")
	}
	if c.Compression && !c.Nystrom {
		return errors.NewConfigurationError(op, "compression", "compression requires nystrom")
	}
	if !c.Nystrom {
		return nil
	}
	if c.Landmarks <= 0 {
		return errors.NewConfigurationErrorf(op, "landmarks", "must be > 0 when nystrom is enabled, got %d", c.Landmarks)
	}
	switch c.Sampling {
	case "", SamplingUniform, SamplingRLS:
	default:
		return errors.NewConfigurationErrorf(op, "sampling", "unknown sampling %q, supported: uniform, rls", c.Sampling)
	}
	if c.RLSLambda < 0 {
		return errors.NewConfigurationErrorf(op, "rls_lambda", "must be >= 0, got %g", c.RLSLambda)
	}
	return nil
}

func (c Config) rlsLambda() float64 {
	if c.RLSLambda > 0 {
		return c.RLSLambda
	}
	return DefaultRLSLambda
}
