package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []int
		yPred   []int
		want    float64
		wantErr bool
	}{
		{"perfect", []int{1, 2, 3}, []int{1, 2, 3}, 1, false},
		{"half", []int{1, 2, 3, 1}, []int{1, 3, 3, 2}, 0.5, false},
		{"none", []int{1, 1}, []int{2, 2}, 0, false},
		{"empty", nil, nil, 0, true},
		{"length mismatch", []int{1, 2}, []int{1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accuracy(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestMcFaddenR2(t *testing.T) {
	r2, err := McFaddenR2(-50, -100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r2, 1e-12)

	r2, err = McFaddenR2(-100, -100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)

	_, err = McFaddenR2(-1, 0)
	assert.Error(t, err)
}

func TestLogLoss(t *testing.T) {
	proba := mat.NewDense(2, 3, []float64{
		0.5, 0.25, 0.25,
		0.1, 0.1, 0.8,
	})
	got, err := LogLoss(proba, []int{0, 2})
	require.NoError(t, err)
	assert.InDelta(t, -(math.Log(0.5)+math.Log(0.8))/2, got, 1e-12)

	ll, err := LogLikelihood(proba, []int{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.25)+math.Log(0.1), ll, 1e-12)

	zero := mat.NewDense(1, 2, []float64{0, 1})
	got, err = LogLoss(zero, []int{0})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(1e-15), got, 1e-9)

	_, err = LogLoss(proba, []int{0})
	assert.Error(t, err)
	_, err = LogLoss(proba, []int{0, 3})
	assert.Error(t, err)
}
