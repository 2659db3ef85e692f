package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// SaveModel gob-encodes model into filename.
//
//	forest := ensemble.NewRandomForestRegressor()
//	// ... fit ...
//	err := model.SaveModel(forest, "model.gob")
func SaveModel(model interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close file")
		}
	}()
	return SaveModelToWriter(model, file)
}

// LoadModel decodes filename into model, which must be a pointer.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return LoadModelFromReader(model, file)
}

// SaveModelToWriter gob-encodes model into w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader decodes a model from r into model, which must be a pointer.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
