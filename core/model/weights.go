package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// WeightsVersion is written into every snapshot.
const WeightsVersion = "1.0"

// ModelWeights はフィット済みモデルのパラメータのスナップショットです（シリアライゼーション用）。
type ModelWeights struct {
	// ModelType は "KernelModel" または "NestedKernelModel"
	ModelType string `json:"model_type"`

	// Version はスナップショットのフォーマットバージョン
	Version string `json:"version"`

	// Alternatives は学習時に観測された選択肢ID（昇順）
	Alternatives []int `json:"alternatives"`

	// Alpha は (Rows × Cols) の重み行列を行優先で平坦化したもの
	Alpha     []float64 `json:"alpha"`
	AlphaRows int       `json:"alpha_rows"`
	AlphaCols int       `json:"alpha_cols"`

	// Lambd はネストごとのスケールパラメータ（ネストモデルのみ）
	Lambd []float64 `json:"lambd,omitempty"`
	Nests [][]int   `json:"nests,omitempty"`

	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	Metrics         map[string]float64     `json:"metrics,omitempty"`

	IsFitted bool `json:"is_fitted"`

	// legacyKeys records keys found by FromJSON that Validate must reject.
	legacyKeys []string
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	mw.legacyKeys = nil
	if _, ok := raw["lambda"]; ok {
		mw.legacyKeys = append(mw.legacyKeys, "lambda")
	}
	return nil
}

// Validate checks the snapshot for internal consistency.
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if len(mw.legacyKeys) > 0 {
		return errors.NewValidationError(mw.legacyKeys[0], "unsupported key, nest scales are stored under 'lambd'", mw.legacyKeys[0])
	}
	if !mw.IsFitted {
		if len(mw.Alpha) > 0 {
			return errors.NewValidationError("alpha", "unfitted model should not have weights", len(mw.Alpha))
		}
		return nil
	}
	if len(mw.Alpha) == 0 {
		return errors.NewValidationError("alpha", "fitted model must have weights", 0)
	}
	if mw.AlphaRows*mw.AlphaCols != len(mw.Alpha) {
		return errors.NewDimensionError("ModelWeights.Validate", mw.AlphaRows*mw.AlphaCols, len(mw.Alpha), 1)
	}
	if mw.AlphaCols != len(mw.Alternatives) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Alternatives), mw.AlphaCols, 1)
	}
	if len(mw.Nests) > 0 || len(mw.Lambd) > 0 {
		if len(mw.Lambd) != len(mw.Nests) {
			return errors.NewValidationError("lambd",
				"number of nest scales must equal the number of nests", len(mw.Lambd))
		}
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		AlphaRows:       mw.AlphaRows,
		AlphaCols:       mw.AlphaCols,
		IsFitted:        mw.IsFitted,
		Alternatives:    append([]int(nil), mw.Alternatives...),
		Alpha:           append([]float64(nil), mw.Alpha...),
		Lambd:           append([]float64(nil), mw.Lambd...),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metrics:         make(map[string]float64, len(mw.Metrics)),
		legacyKeys:      append([]string(nil), mw.legacyKeys...),
	}
	for _, nest := range mw.Nests {
		clone.Nests = append(clone.Nests, append([]int(nil), nest...))
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metrics {
		clone.Metrics[k] = v
	}
	return clone
}
