// Package preprocessing scales attribute blocks before kernel evaluation.
// Scalers are fitted on the training attributes of one alternative and
// reused unchanged for the test matrix.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/gklr/core/model"
	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// Scaling names accepted by NewScaler.
const (
	ScalingNone     = "none"
	ScalingStandard = "standard"
	ScalingMinMax   = "minmax"
)

// Scaler is a column-wise transform fitted on training data.
type Scaler interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
	FitTransform(X mat.Matrix) (*mat.Dense, error)
}

// NewScaler returns the scaler registered under name. "none" and "" return
// nil, nil: callers skip scaling.
func NewScaler(name string) (Scaler, error) {
	switch name {
	case "", ScalingNone:
		return nil, nil
	case ScalingStandard:
		return NewStandardScalerDefault(), nil
	case ScalingMinMax:
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewConfigurationErrorf("preprocessing.NewScaler", "scaling",
			"unknown scaling %q, supported: none, standard, minmax", name)
	}
}

// StandardScaler はデータを平均0、標準偏差1に変換するスケーラー
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差）
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd && std >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetFitted(r, 0, c)
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("StandardScaler.Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}
	result := mat.DenseCopyOf(X)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, result)
		floats.Sub(row, s.Mean)
		floats.Div(row, s.Scale)
		result.SetRow(i, row)
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return "StandardScaler(fitted=false)"
	}
	return fmt.Sprintf("StandardScaler(n_features=%d)", s.NFeatures)
}

// MinMaxScaler はデータを指定範囲（デフォルト [0, 1]）に変換するスケーラー
type MinMaxScaler struct {
	state *model.StateManager

	Min          []float64
	Scale        []float64
	DataMin      []float64
	DataMax      []float64
	FeatureRange [2]float64
	NFeatures    int
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		state:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定 [0, 1] でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit は訓練データから各列の最小値と最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "min must be smaller than max", m.FeatureRange)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Min = make([]float64, c)
	m.Scale = make([]float64, c)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m.DataMin[j] = floats.Min(col)
		m.DataMax[j] = floats.Max(col)
		dataRange := m.DataMax[j] - m.DataMin[j]
		if math.Abs(dataRange) < 1e-8 {
			dataRange = 1
		}
		m.Scale[j] = width / dataRange
		m.Min[j] = m.FeatureRange[0] - m.DataMin[j]*m.Scale[j]
	}

	m.state.SetFitted(r, 0, c)
	return nil
}

// Transform は学習済みのスケールでデータを変換する
func (m *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.state.RequireFitted("MinMaxScaler.Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}
	result := mat.DenseCopyOf(X)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, result)
		floats.Mul(row, m.Scale)
		floats.Add(row, m.Min)
		result.SetRow(i, row)
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.2f, %.2f])", m.FeatureRange[0], m.FeatureRange[1])
}
