package classifier

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/errors"
)

func sumConfidences(p *Prediction) float64 {
	var sum float64
	for _, v := range p.Confidences {
		sum += v
	}
	return sum
}

func TestPredictWithoutExamplesReturnsNil(t *testing.T) {
	c := New(DefaultOptions())

	pred, err := c.Predict([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestPredictNearestNeighbor(t *testing.T) {
	for _, metric := range []Metric{MetricCosine, MetricEuclidean} {
		t.Run(string(metric), func(t *testing.T) {
			c := New(Options{K: 1, Metric: metric})
			require.NoError(t, c.AddExample("cat", []float32{1, 0, 0}))
			require.NoError(t, c.AddExample("dog", []float32{0, 1, 0}))
			require.NoError(t, c.AddExample("bird", []float32{0, 0, 1}))

			pred, err := c.Predict([]float32{0.1, 0.9, 0.05})
			require.NoError(t, err)
			require.NotNil(t, pred)

			assert.Equal(t, "dog", pred.Label)
			assert.Len(t, pred.Confidences, 3)
			assert.InDelta(t, 1.0, sumConfidences(pred), 1e-9)
			assert.InDelta(t, 1.0, pred.Confidences["dog"], 1e-9)
			assert.Zero(t, pred.Confidences["cat"])
		})
	}
}

func TestPredictMajorityVoteWithK(t *testing.T) {
	c := New(Options{K: 3, Metric: MetricEuclidean})
	require.NoError(t, c.AddExample("a", []float32{0, 0}))
	require.NoError(t, c.AddExample("b", []float32{1, 0}))
	require.NoError(t, c.AddExample("b", []float32{1.1, 0}))
	require.NoError(t, c.AddExample("a", []float32{10, 10}))

	pred, err := c.Predict([]float32{0.6, 0})
	require.NoError(t, err)

	assert.Equal(t, "b", pred.Label)
	assert.InDelta(t, 2.0/3.0, pred.Confidences["b"], 1e-9)
	assert.InDelta(t, 1.0/3.0, pred.Confidences["a"], 1e-9)
}

func TestKLargerThanExampleCount(t *testing.T) {
	c := New(Options{K: 10, Metric: MetricCosine})
	require.NoError(t, c.AddExample("only", []float32{1, 1}))

	pred, err := c.Predict([]float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, "only", pred.Label)
	assert.InDelta(t, 1.0, pred.Confidences["only"], 1e-9)
}

func TestConfidencesAlwaysSumToOne(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := New(Options{K: 5, Metric: MetricCosine})
	labels := []string{"red", "green", "blue", "yellow"}
	for i := range 40 {
		vec := make([]float32, 8)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		require.NoError(t, c.AddExample(labels[i%len(labels)], vec))
	}

	for range 20 {
		query := make([]float32, 8)
		for j := range query {
			query[j] = rng.Float32()
		}
		pred, err := c.Predict(query)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sumConfidences(pred), 1e-9)
		assert.Len(t, pred.Confidences, len(labels))
		assert.Contains(t, labels, pred.Label)
	}
}

func TestAddExampleRejectsDimensionMismatch(t *testing.T) {
	c := New(DefaultOptions())
	require.NoError(t, c.AddExample("a", []float32{1, 2}))

	err := c.AddExample("a", []float32{1, 2, 3})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = c.Predict([]float32{1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestAddExampleValidation(t *testing.T) {
	c := New(DefaultOptions())
	err := c.AddExample("", []float32{1})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = c.AddExample("a", nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestAddExampleCopiesInput(t *testing.T) {
	c := New(DefaultOptions())
	vec := []float32{1, 2}
	require.NoError(t, c.AddExample("a", vec))
	vec[0] = 99

	assert.Equal(t, float32(1), c.Dataset()["a"][0][0])
}

func TestClassExampleCountAndClear(t *testing.T) {
	c := New(DefaultOptions())
	require.NoError(t, c.AddExample("a", []float32{1, 0}))
	require.NoError(t, c.AddExample("a", []float32{1, 1}))
	require.NoError(t, c.AddExample("b", []float32{0, 1}))

	assert.Equal(t, 2, c.NumClasses())
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, c.ClassExampleCount())

	c.ClearClass("a")
	assert.Equal(t, map[string]int{"b": 1}, c.ClassExampleCount())

	c.ClearClass("b")
	assert.Zero(t, c.NumClasses())
	// dimension resets once empty
	require.NoError(t, c.AddExample("c", []float32{1, 2, 3}))

	c.Clear()
	assert.Zero(t, c.NumClasses())
}

func TestDatasetRoundTripIsLossless(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 9))
	src := New(Options{K: 3, Metric: MetricEuclidean})
	for i := range 12 {
		vec := make([]float32, 16)
		for j := range vec {
			vec[j] = (rng.Float32() - 0.5) * float32(math.Pow(10, float64(j%6)-3))
		}
		require.NoError(t, src.AddExample([]string{"x", "y", "z"}[i%3], vec))
	}

	data, err := src.Dataset().Marshal()
	require.NoError(t, err)

	ds, err := ParseDataset(data)
	require.NoError(t, err)

	dst := New(Options{K: 3, Metric: MetricEuclidean})
	require.NoError(t, dst.SetDataset(ds))
	assert.Equal(t, src.Dataset(), dst.Dataset())

	query := make([]float32, 16)
	for j := range query {
		query[j] = rng.Float32() - 0.5
	}
	want, err := src.Predict(query)
	require.NoError(t, err)
	got, err := dst.Predict(query)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetDatasetRejectsInvalidAndKeepsState(t *testing.T) {
	c := New(DefaultOptions())
	require.NoError(t, c.AddExample("keep", []float32{1, 2}))

	err := c.SetDataset(Dataset{"a": {{1, 2}}, "b": {{1, 2, 3}}})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, map[string]int{"keep": 1}, c.ClassExampleCount())

	err = c.SetDataset(Dataset{"nan": {{float32(math.NaN())}}})
	require.Error(t, err)
	assert.Equal(t, map[string]int{"keep": 1}, c.ClassExampleCount())
}

func TestParseDatasetEdgeCases(t *testing.T) {
	ds, err := ParseDataset(nil)
	require.NoError(t, err)
	assert.Empty(t, ds)

	_, err = ParseDataset([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestConcurrentAddAndPredict(t *testing.T) {
	c := New(Options{K: 3, Metric: MetricCosine})
	require.NoError(t, c.AddExample("seed", []float32{1, 1, 1}))

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_ = c.AddExample([]string{"a", "b"}[(w+i)%2], []float32{float32(i), 1, float32(w)})
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				pred, err := c.Predict([]float32{1, 2, 3})
				assert.NoError(t, err)
				assert.NotNil(t, pred)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 401, c.Dataset().Len())
}
