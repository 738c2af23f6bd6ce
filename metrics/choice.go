// Package metrics provides goodness-of-fit measures for discrete choice
// models.
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// Accuracy は予測された選択肢が観測された選択肢と一致する割合を計算する
func Accuracy(yTrue, yPred []int) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValidationError("y_true", "empty vector", n)
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("Accuracy", n, len(yPred), 0)
	}
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(n), nil
}

// McFaddenR2 returns 1 − llFinal/llZero.
func McFaddenR2(llFinal, llZero float64) (float64, error) {
	if !(llZero < 0) {
		return 0, errors.NewValidationError("log_likelihood_at_zero", "must be negative", llZero)
	}
	return 1 - llFinal/llZero, nil
}

// LogLikelihood sums log p[i, choices[i]] where choices holds column
// indices of proba.
func LogLikelihood(proba mat.Matrix, choices []int) (float64, error) {
	r, c := proba.Dims()
	if r == 0 {
		return 0, errors.NewValidationError("proba", "empty matrix", r)
	}
	if len(choices) != r {
		return 0, errors.NewDimensionError("LogLikelihood", r, len(choices), 0)
	}
	ll := 0.0
	for i, k := range choices {
		if k < 0 || k >= c {
			return 0, errors.NewValidationError("choices", "index out of range", k)
		}
		ll += errors.StabilizeLog(proba.At(i, k))
	}
	return ll, nil
}

// LogLoss は選択された選択肢の平均負対数尤度（交差エントロピー）を計算する
func LogLoss(proba mat.Matrix, choices []int) (float64, error) {
	ll, err := LogLikelihood(proba, choices)
	if err != nil {
		return 0, err
	}
	return -ll / float64(len(choices)), nil
}
