package classifier

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/kamiai/kamiai/internal/errors"
)

// Dataset is the serializable form of a classifier: label to ordered vectors.
type Dataset map[string][][]float32

// Validate checks that every vector is finite and has the same length, and
// returns that length (0 for an empty dataset).
func (ds Dataset) Validate() (int, error) {
	dim := 0
	for label, vecs := range ds {
		if label == "" {
			return 0, errors.ValidationError("dataset contains an empty label")
		}
		for i, vec := range vecs {
			if len(vec) == 0 {
				return 0, errors.Newf("dataset label %q vector %d is empty", label, i).
					Component("classifier").
					Category(errors.CategoryValidation).
					Build()
			}
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim {
				return 0, errors.New(fmt.Errorf("%w: label %q vector %d has %d values, want %d",
					ErrDimensionMismatch, label, i, len(vec), dim)).
					Component("classifier").
					Category(errors.CategoryValidation).
					Build()
			}
			for _, v := range vec {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					return 0, errors.Newf("dataset label %q vector %d holds a non-finite value", label, i).
						Component("classifier").
						Category(errors.CategoryValidation).
						Build()
				}
			}
		}
	}
	return dim, nil
}

// Len returns the total number of vectors.
func (ds Dataset) Len() int {
	n := 0
	for _, vecs := range ds {
		n += len(vecs)
	}
	return n
}

// Marshal encodes the dataset as JSON. float32 values survive a
// Marshal/ParseDataset round trip bit for bit.
func (ds Dataset) Marshal() ([]byte, error) {
	if ds == nil {
		ds = Dataset{}
	}
	return json.Marshal(ds)
}

// ParseDataset decodes and validates a dataset produced by Marshal.
// Empty input yields an empty dataset.
func ParseDataset(data []byte) (Dataset, error) {
	ds := Dataset{}
	if len(data) == 0 {
		return ds, nil
	}
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, errors.New(fmt.Errorf("decode dataset: %w", err)).
			Component("classifier").
			Category(errors.CategoryFileParsing).
			Build()
	}
	if _, err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
