package config

import (
	"sort"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// HyperparameterNames lists the names accepted by GetHyperparameter and
// SetHyperparameter.
var HyperparameterNames = []string{
	"choice_column", "kernel", "gamma", "degree", "coef0", "nystrom", "landmarks",
	"sampling", "rls_lambda", "compression", "seed", "scaling", "nests",
	"pmle", "pmle_lambda", "method", "learning_rate", "mini_batch_size",
	"gtol", "maxiter", "print_every",
}

// GetHyperparameter returns the value stored under name.
func (c *Config) GetHyperparameter(name string) (interface{}, error) {
	switch name {
	case "choice_column":
		return c.ChoiceColumn, nil
	case "kernel":
		return c.Kernel.Name, nil
	case "gamma":
		return c.Kernel.Gamma, nil
	case "degree":
		return c.Kernel.Degree, nil
	case "coef0":
		return c.Kernel.Coef0, nil
	case "nystrom":
		return c.Kernel.Nystrom, nil
	case "landmarks":
		return c.Kernel.Landmarks, nil
	case "sampling":
		return c.Kernel.Sampling, nil
	case "rls_lambda":
		return c.Kernel.RLSLambda, nil
	case "compression":
		return c.Kernel.Compression, nil
	case "seed":
		return c.Optimizer.Seed, nil
	case "scaling":
		return c.Kernel.Scaling, nil
	case "nests":
		return c.Clone().Nests, nil
	case "pmle":
		return c.Estimation.Pmle, nil
	case "pmle_lambda":
		return c.Estimation.PmleLambda, nil
	case "method":
		return c.Estimation.Method, nil
	case "learning_rate":
		return c.Optimizer.LearningRate, nil
	case "mini_batch_size":
		return c.Optimizer.MiniBatchSize, nil
	case "gtol":
		return c.Optimizer.GTol, nil
	case "maxiter":
		return c.Optimizer.MaxIter, nil
	case "print_every":
		return c.Optimizer.PrintEvery, nil
	}
	return nil, errors.NewValidationError(name, "unknown hyperparameter", name)
}

// SetHyperparameter stores value under name. Integer values are accepted for
// float hyperparameters. The config is not re-checked: call CheckValues after
// a series of updates. The seed is shared by landmark sampling and SGD.
func (c *Config) SetHyperparameter(name string, value interface{}) error {
	next := *c
	var err error
	switch name {
	case "choice_column":
		next.ChoiceColumn, err = asString(name, value)
	case "kernel":
		next.Kernel.Name, err = asString(name, value)
	case "gamma":
		next.Kernel.Gamma, err = asFloat(name, value)
	case "degree":
		next.Kernel.Degree, err = asInt(name, value)
	case "coef0":
		next.Kernel.Coef0, err = asFloat(name, value)
	case "nystrom":
		next.Kernel.Nystrom, err = asBool(name, value)
	case "landmarks":
		next.Kernel.Landmarks, err = asInt(name, value)
	case "sampling":
		next.Kernel.Sampling, err = asString(name, value)
	case "rls_lambda":
		next.Kernel.RLSLambda, err = asFloat(name, value)
	case "compression":
		next.Kernel.Compression, err = asBool(name, value)
	case "seed":
		var seed int
		if seed, err = asInt(name, value); err == nil {
			next.Optimizer.Seed = int64(seed)
			next.Kernel.Seed = int64(seed)
		}
	case "scaling":
		next.Kernel.Scaling, err = asString(name, value)
	case "nests":
		nests, ok := value.([][]int)
		if !ok {
			return errors.NewValidationError(name, "expected [][]int", value)
		}
		next.Nests = (&Config{Nests: nests}).Clone().Nests
	case "pmle":
		next.Estimation.Pmle, err = asString(name, value)
	case "pmle_lambda":
		next.Estimation.PmleLambda, err = asFloat(name, value)
	case "method":
		next.Estimation.Method, err = asString(name, value)
	case "learning_rate":
		next.Optimizer.LearningRate, err = asFloat(name, value)
	case "mini_batch_size":
		next.Optimizer.MiniBatchSize, err = asInt(name, value)
	case "gtol":
		next.Optimizer.GTol, err = asFloat(name, value)
	case "maxiter":
		next.Optimizer.MaxIter, err = asInt(name, value)
	case "print_every":
		next.Optimizer.PrintEvery, err = asInt(name, value)
	default:
		return errors.NewValidationError(name, "unknown hyperparameter", value)
	}
	if err != nil {
		return err
	}
	*c = next
	return nil
}

// Hyperparameters returns every hyperparameter by name, as stored in the
// fitted weights.
func (c *Config) Hyperparameters() map[string]interface{} {
	out := make(map[string]interface{}, len(HyperparameterNames))
	for _, name := range HyperparameterNames {
		v, _ := c.GetHyperparameter(name)
		out[name] = v
	}
	if len(c.Attributes) > 0 {
		ids := make([]int, 0, len(c.Attributes))
		for id := range c.Attributes {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		out["alternatives"] = ids
	}
	return out
}

func asString(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "expected a string", v)
	}
	return s, nil
}

func asBool(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "expected a bool", v)
	}
	return b, nil
}

func asInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "expected an integer", v)
}

func asFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "expected a number", v)
}
