// Package classifier implements an incremental k-nearest-neighbor classifier
// over embedding vectors.
package classifier

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/kamiai/kamiai/internal/errors"
)

// Metric selects the distance function shared by training and inference.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean" // squared euclidean distance
)

// Options configures a Classifier.
type Options struct {
	K      int
	Metric Metric
}

// DefaultOptions returns k=1 with cosine distance.
func DefaultOptions() Options {
	return Options{K: 1, Metric: MetricCosine}
}

// Prediction is the outcome of a Predict call. Confidences covers every
// known label and sums to 1.
type Prediction struct {
	Label       string             `json:"winningLabel"`
	Confidences map[string]float64 `json:"confidenceByLabel"`
}

// ErrDimensionMismatch is returned when a vector's length differs from the stored ones.
var ErrDimensionMismatch = errors.NewStd("embedding dimension mismatch")

type example struct {
	vec  []float32
	norm float64
}

// Classifier stores labeled embeddings and predicts by majority vote of the
// k nearest stored examples. It is safe for concurrent use.
type Classifier struct {
	mu      sync.RWMutex
	opts    Options
	classes map[string][]example
	dim     int
}

// New returns an empty classifier. Invalid options fall back to the defaults.
func New(opts Options) *Classifier {
	if opts.K < 1 {
		opts.K = 1
	}
	if opts.Metric != MetricEuclidean {
		opts.Metric = MetricCosine
	}
	return &Classifier{
		opts:    opts,
		classes: make(map[string][]example),
	}
}

// Options returns the classifier configuration.
func (c *Classifier) Options() Options {
	return c.opts
}

// AddExample appends a copy of vec to label, creating the label if needed.
func (c *Classifier) AddExample(label string, vec []float32) error {
	if label == "" {
		return errors.ValidationError("label must not be empty")
	}
	if len(vec) == 0 {
		return errors.ValidationError("embedding must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dim != 0 && len(vec) != c.dim {
		return errors.New(fmt.Errorf("%w: have %d, want %d", ErrDimensionMismatch, len(vec), c.dim)).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}
	c.dim = len(vec)
	c.classes[label] = append(c.classes[label], newExample(vec))
	return nil
}

func newExample(vec []float32) example {
	owned := slices.Clone(vec)
	return example{vec: owned, norm: l2norm(owned)}
}

type neighbor struct {
	label string
	dist  float64
}

// Predict returns nil when no examples are stored.
func (c *Classifier) Predict(vec []float32) (*Prediction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.classes) == 0 {
		return nil, nil
	}
	if len(vec) != c.dim {
		return nil, errors.New(fmt.Errorf("%w: have %d, want %d", ErrDimensionMismatch, len(vec), c.dim)).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	queryNorm := l2norm(vec)
	var neighbors []neighbor
	for label, examples := range c.classes {
		for i := range examples {
			neighbors = append(neighbors, neighbor{label: label, dist: c.distance(vec, queryNorm, &examples[i])})
		}
	}

	slices.SortFunc(neighbors, func(a, b neighbor) int {
		if d := cmp.Compare(a.dist, b.dist); d != 0 {
			return d
		}
		return cmp.Compare(a.label, b.label)
	})

	k := min(c.opts.K, len(neighbors))
	votes := make(map[string]int, len(c.classes))
	nearest := make(map[string]float64, len(c.classes))
	for _, n := range neighbors[:k] {
		if votes[n.label] == 0 {
			nearest[n.label] = n.dist
		}
		votes[n.label]++
	}

	pred := &Prediction{Confidences: make(map[string]float64, len(c.classes))}
	for label := range c.classes {
		pred.Confidences[label] = float64(votes[label]) / float64(k)
	}

	// Most votes wins; ties go to the label with the closest example, then name.
	best, bestVotes := "", 0
	for _, label := range slices.Sorted(maps.Keys(votes)) {
		v := votes[label]
		if v > bestVotes || (v == bestVotes && nearest[label] < nearest[best]) {
			best, bestVotes = label, v
		}
	}
	pred.Label = best

	return pred, nil
}

func (c *Classifier) distance(query []float32, queryNorm float64, ex *example) float64 {
	switch c.opts.Metric {
	case MetricEuclidean:
		var sum float64
		for i, v := range query {
			d := float64(v) - float64(ex.vec[i])
			sum += d * d
		}
		return sum
	default:
		if queryNorm == 0 || ex.norm == 0 {
			return 1
		}
		var dot float64
		for i, v := range query {
			dot += float64(v) * float64(ex.vec[i])
		}
		return 1 - dot/(queryNorm*ex.norm)
	}
}

func l2norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// NumClasses returns the number of labels with at least one example.
func (c *Classifier) NumClasses() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.classes)
}

// ClassExampleCount returns the number of stored examples per label.
func (c *Classifier) ClassExampleCount() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int, len(c.classes))
	for label, examples := range c.classes {
		counts[label] = len(examples)
	}
	return counts
}

// ClearClass removes every example of label.
func (c *Classifier) ClearClass(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.classes, label)
	if len(c.classes) == 0 {
		c.dim = 0
	}
}

// Clear removes every example.
func (c *Classifier) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.classes = make(map[string][]example)
	c.dim = 0
}

// Dataset returns a deep copy of the stored examples.
func (c *Classifier) Dataset() Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ds := make(Dataset, len(c.classes))
	for label, examples := range c.classes {
		vecs := make([][]float32, len(examples))
		for i := range examples {
			vecs[i] = slices.Clone(examples[i].vec)
		}
		ds[label] = vecs
	}
	return ds
}

// SetDataset replaces all stored examples with ds. On error the classifier is unchanged.
func (c *Classifier) SetDataset(ds Dataset) error {
	dim, err := ds.Validate()
	if err != nil {
		return err
	}

	classes := make(map[string][]example, len(ds))
	for label, vecs := range ds {
		if len(vecs) == 0 {
			continue
		}
		examples := make([]example, len(vecs))
		for i, vec := range vecs {
			examples[i] = newExample(vec)
		}
		classes[label] = examples
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.classes = classes
	c.dim = dim
	if len(classes) == 0 {
		c.dim = 0
	}
	return nil
}
