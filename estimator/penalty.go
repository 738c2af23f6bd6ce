package estimator

import (
	"strings"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// Penalization methods.
const (
	PmleNone     = "None"
	PmleTikhonov = "Tikhonov"
)

// SupportedPmle lists the accepted penalization names ("" means None).
var SupportedPmle = []string{PmleNone, PmleTikhonov}

// penalty evaluates pmleLambda·R(params) and its gradient. For Tikhonov
// R = ½‖alpha‖² + ½Σ(λ_n − 1)², where the nest scales are the params from
// index nAlpha on.
type penalty struct {
	method string
	lambda float64
	nAlpha int
}

func newPenalty(method string, lambda float64, nAlpha int) (penalty, error) {
	const op = "estimator.New"
	switch method {
	case "", PmleNone:
		method = PmleNone
	case PmleTikhonov:
	default:
		return penalty{}, errors.NewConfigurationErrorf(op, "pmle",
			"%q is not a valid penalization method, valid methods are: %s", method, strings.Join(SupportedPmle, ", "))
	}
	if !(lambda >= 0) {
		return penalty{}, errors.NewConfigurationErrorf(op, "pmle_lambda", "must be >= 0, got %g", lambda)
	}
	return penalty{method: method, lambda: lambda, nAlpha: nAlpha}, nil
}

func (p penalty) active() bool {
	return p.method == PmleTikhonov && p.lambda > 0
}

// value returns weight·pmleLambda·R(params).
func (p penalty) value(params []float64, weight float64) float64 {
	if !p.active() {
		return 0
	}
	r := 0.0
	for j, v := range params {
		if j >= p.nAlpha {
			v -= 1
		}
		r += v * v
	}
	return 0.5 * p.lambda * weight * r
}

// addGradient adds the penalty gradient to grad.
func (p penalty) addGradient(grad, params []float64, weight float64) {
	if !p.active() {
		return
	}
	s := p.lambda * weight
	for j, v := range params {
		if j >= p.nAlpha {
			v -= 1
		}
		grad[j] += s * v
	}
}
