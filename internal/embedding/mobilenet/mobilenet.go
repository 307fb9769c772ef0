// Package mobilenet runs a frozen TFLite image feature extractor.
package mobilenet

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/tphakala/go-tflite"

	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
)

// Options configures the extractor.
type Options struct {
	ModelPath string
	Threads   int // 0 = physical cores
}

// Extractor wraps a TFLite interpreter whose single output is the feature vector.
type Extractor struct {
	mu      sync.Mutex
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
	width   int
	height  int
	dim     int
	closed  bool
}

var _ embedding.Extractor = (*Extractor)(nil)

// New loads the model file and allocates the interpreter.
func New(ctx context.Context, opts Options) (*Extractor, error) {
	start := time.Now()
	log := GetLogger()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(opts.ModelPath)
	if err != nil {
		return nil, errors.New(fmt.Errorf("read feature extractor model: %w", err)).
			Component("embedding").
			Category(errors.CategoryModelLoad).
			FileContext(opts.ModelPath, 0).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("embedding").
			Category(errors.CategoryModelInit).
			FileContext(opts.ModelPath, int64(len(modelData))).
			Build()
	}

	threads := determineThreadCount(opts.Threads)
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("tflite error", logger.String("message", msg))
	}, nil)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("embedding").
			Category(errors.CategoryModelInit).
			Build()
	}

	ex := &Extractor{model: model, options: options, interp: interp}

	if status := interp.AllocateTensors(); status != tflite.OK {
		ex.release()
		return nil, errors.New(fmt.Errorf("tensor allocation failed: %v", status)).
			Component("embedding").
			Category(errors.CategoryModelInit).
			Build()
	}

	if err := ex.readShapes(); err != nil {
		ex.release()
		return nil, errors.New(err).
			Component("embedding").
			Category(errors.CategoryModelInit).
			Build()
	}

	log.Info("feature extractor loaded",
		logger.String("model", opts.ModelPath),
		logger.Int("threads", threads),
		logger.Int("input_width", ex.width),
		logger.Int("input_height", ex.height),
		logger.Int("embedding_dim", ex.dim),
		logger.Duration("elapsed", time.Since(start)))

	return ex, nil
}

// readShapes expects an NHWC float input and a [1, D] (or [1,1,1,D]) float output.
func (e *Extractor) readShapes() error {
	input := e.interp.GetInputTensor(0)
	if input == nil {
		return fmt.Errorf("cannot get input tensor")
	}
	if input.NumDims() != 4 || input.Dim(3) != 3 {
		return fmt.Errorf("unexpected input shape: want [1,H,W,3], got %d dims", input.NumDims())
	}
	if input.Type() != tflite.Float32 {
		return fmt.Errorf("unsupported input tensor type %v", input.Type())
	}
	e.height = input.Dim(1)
	e.width = input.Dim(2)

	output := e.interp.GetOutputTensor(0)
	if output == nil {
		return fmt.Errorf("cannot get output tensor")
	}
	e.dim = output.Dim(output.NumDims() - 1)
	if e.dim <= 0 {
		return fmt.Errorf("feature extractor output is empty")
	}
	return nil
}

// Extract implements embedding.Extractor. Calls are serialized on the interpreter.
func (e *Extractor) Extract(ctx context.Context, frame image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New(fmt.Errorf("feature extractor is closed")).
			Component("embedding").
			Category(errors.CategoryState).
			Build()
	}

	input := e.interp.GetInputTensor(0)
	if err := embedding.FillTensor(frame, e.width, e.height, input.Float32s()); err != nil {
		return nil, errors.New(err).
			Component("embedding").
			Category(errors.CategoryInference).
			Build()
	}

	if status := e.interp.Invoke(); status != tflite.OK {
		return nil, errors.New(fmt.Errorf("tensor invoke failed: %v", status)).
			Component("embedding").
			Category(errors.CategoryInference).
			Build()
	}

	// The interpreter reuses its output buffer, so hand out a copy.
	output := e.interp.GetOutputTensor(0)
	features := make([]float32, e.dim)
	copy(features, output.Float32s())
	return features, nil
}

// Dim implements embedding.Extractor.
func (e *Extractor) Dim() int { return e.dim }

// Close releases the interpreter. Further Extract calls fail.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.release()
	e.closed = true
	return nil
}

func (e *Extractor) release() {
	if e.interp != nil {
		e.interp.Delete()
		e.interp = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}

// determineThreadCount picks interpreter threads: configured value capped at
// the CPU count, or the physical core count when unset.
func determineThreadCount(configured int) int {
	systemCPUCount := runtime.NumCPU()

	if configured <= 0 {
		if physical := cpuid.CPU.PhysicalCores; physical > 0 {
			return min(physical, systemCPUCount)
		}
		return systemCPUCount
	}

	return min(configured, systemCPUCount)
}
