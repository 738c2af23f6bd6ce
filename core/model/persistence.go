package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// GobExt selects the binary gob format in SaveWeights and LoadWeights.
// Every other extension is JSON.
const GobExt = ".gob"

func init() {
	// nests are stored as [][]int inside the hyperparameter map
	gob.Register([][]int(nil))
}

func isGob(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), GobExt)
}

// SaveWeights validates w and writes it to filename, as gob when the
// extension is GobExt and as indented JSON otherwise.
//
// 使用例:
//
//	w, _ := km.Weights()
//	err := model.SaveWeights(w, "weights.json")
func SaveWeights(w *ModelWeights, filename string) (err error) {
	if err := w.Validate(); err != nil {
		return err
	}
	if isGob(filename) {
		f, err := os.Create(filename)
		if err != nil {
			return errors.Wrapf(err, "create %s", filename)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = errors.Wrapf(cerr, "close %s", filename)
			}
		}()
		return SaveModelToWriter(w, f)
	}
	data, err := w.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode model weights")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	return nil
}

// LoadWeights reads a snapshot written by SaveWeights and validates it.
func LoadWeights(filename string) (*ModelWeights, error) {
	w := &ModelWeights{}
	if isGob(filename) {
		f, err := os.Open(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", filename)
		}
		defer f.Close()
		if err := LoadModelFromReader(w, f); err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", filename)
		}
		if err := w.FromJSON(data); err != nil {
			return nil, err
		}
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// SaveModelToWriter はモデルをgobでio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからgobでモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
