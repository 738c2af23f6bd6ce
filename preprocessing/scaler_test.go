package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	var sum float64
	for i := 0; i < 4; i++ {
		sum += out.At(i, 0)
		assert.Equal(t, 0.0, out.At(i, 1))
	}
	assert.InDelta(t, 0, sum, 1e-12)

	// fitted statistics are reused on new data
	test, err := s.Transform(mat.NewDense(1, 2, []float64{2.5, 11}))
	require.NoError(t, err)
	assert.InDelta(t, 0, test.At(0, 0), 1e-12)
	assert.InDelta(t, 1, test.At(0, 1), 1e-12)
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{-2, 0, 2})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))

	_, err = m.Transform(mat.NewDense(1, 2, nil))
	assert.Error(t, err)
}

func TestScalerRequiresFit(t *testing.T) {
	_, err := NewStandardScalerDefault().Transform(mat.NewDense(1, 1, nil))
	require.Error(t, err)
	assert.True(t, errors.IsPreconditionError(err))
}

func TestNewScaler(t *testing.T) {
	s, err := NewScaler("none")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewScaler(ScalingStandard)
	require.NoError(t, err)
	assert.IsType(t, &StandardScaler{}, s)

	s, err = NewScaler(ScalingMinMax)
	require.NoError(t, err)
	assert.IsType(t, &MinMaxScaler{}, s)

	_, err = NewScaler("robust")
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}
