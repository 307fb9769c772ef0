package session

import (
	"context"
	"image"

	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/embedding"
)

// Handle refers to one session generation. Once the manager switches module
// or resets, the handle is stale: mutating calls become no-ops and reads
// return empty results.
type Handle struct {
	mgr        *Manager
	gen        uint64
	module     ModuleType
	extractor  embedding.Extractor
	classifier *classifier.Classifier
}

// Valid reports whether the handle still refers to the Ready session.
func (h *Handle) Valid() bool {
	return h != nil &&
		h.mgr.generation.Load() == h.gen &&
		h.mgr.IsReady()
}

// Module returns the module type the handle was created for.
func (h *Handle) Module() ModuleType {
	if h == nil {
		return ""
	}
	return h.module
}

// AddExample embeds frame and stores it under label. It does nothing when
// the handle is stale.
func (h *Handle) AddExample(ctx context.Context, frame image.Image, label string) error {
	if !h.Valid() {
		return nil
	}
	vec, err := h.extractor.Extract(ctx, frame)
	if err != nil {
		if !h.Valid() {
			return nil
		}
		return err
	}
	if !h.Valid() {
		return nil
	}
	return h.classifier.AddExample(label, vec)
}

// Predict classifies frame. It returns nil without error when the handle is
// stale, when no examples exist, or when the session was replaced while the
// frame was being processed.
func (h *Handle) Predict(ctx context.Context, frame image.Image) (*classifier.Prediction, error) {
	if !h.Valid() || h.classifier.NumClasses() == 0 {
		return nil, nil
	}
	vec, err := h.extractor.Extract(ctx, frame)
	if !h.Valid() {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pred, err := h.classifier.Predict(vec)
	if !h.Valid() {
		return nil, nil
	}
	return pred, err
}

// Dataset exports the stored examples. A stale handle yields an empty dataset.
func (h *Handle) Dataset() classifier.Dataset {
	if !h.Valid() {
		return classifier.Dataset{}
	}
	return h.classifier.Dataset()
}

// SetDataset replaces the stored examples. A stale handle ignores the call.
func (h *Handle) SetDataset(ds classifier.Dataset) error {
	if !h.Valid() {
		return nil
	}
	return h.classifier.SetDataset(ds)
}

// ClearClass removes every example of label.
func (h *Handle) ClearClass(label string) {
	if h.Valid() {
		h.classifier.ClearClass(label)
	}
}

// ClassExampleCount returns stored examples per label.
func (h *Handle) ClassExampleCount() map[string]int {
	if !h.Valid() {
		return map[string]int{}
	}
	return h.classifier.ClassExampleCount()
}

// NumClasses returns the number of labels with examples.
func (h *Handle) NumClasses() int {
	if !h.Valid() {
		return 0
	}
	return h.classifier.NumClasses()
}
