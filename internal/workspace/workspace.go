// Package workspace is the training workspace of the vision module: the
// model name, its classes and their sample counters, and the bridge between
// the live classifier and saved models.
package workspace

import (
	"context"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kamiai/kamiai/internal/appstate"
	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
	"github.com/kamiai/kamiai/internal/observability/metrics"
	"github.com/kamiai/kamiai/internal/session"
)

// Palette is the class color rotation.
var Palette = []string{
	"#D4AF37", // gold
	"#22c55e", // green
	"#3b82f6", // blue
	"#ef4444", // red
	"#a855f7", // purple
	"#f97316", // orange
	"#06b6d4", // cyan
	"#ec4899", // pink
}

// DefaultModelName names a fresh workspace.
const DefaultModelName = "Untitled Agent"

// Achievement thresholds.
const (
	multitaskerClasses = 10
	dataHoarderSamples = 500
)

// ErrClassNotFound is returned for operations on an unknown class id.
var ErrClassNotFound = errors.NewStd("class not found")

// ErrNotReady is returned when an operation needs a loaded module.
var ErrNotReady = errors.NewStd("module not ready")

// Class is one trainable class. SampleCount counts the examples added in this
// workspace since it was created or loaded.
type Class struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SampleCount int    `json:"sampleCount"`
	Color       string `json:"color"`
}

// State is a snapshot of the workspace.
type State struct {
	ModelID   string  `json:"modelId,omitempty"`
	ModelName string  `json:"modelName"`
	Classes   []Class `json:"classes"`
}

// Sessions gives access to the active module session.
type Sessions interface {
	Current() *session.Handle
}

// Achiever unlocks achievements.
type Achiever interface {
	Unlock(ctx context.Context, id string) (bool, error)
}

// Options configures a Workspace.
type Options struct {
	// KeepSamples buffers raw training frames and saves them with the model.
	KeepSamples bool
	Metrics     *metrics.VisionMetrics
	// Achievements may be nil.
	Achievements Achiever
	// Now defaults to time.Now.
	Now func() time.Time
}

type pendingSample struct {
	id        string
	classID   string
	data      []byte
	timestamp int64
}

// Workspace is safe for concurrent use.
type Workspace struct {
	sessions Sessions
	repo     datastore.Repository
	opts     Options
	log      logger.Logger

	mu          sync.Mutex
	modelID     string
	modelName   string
	classes     []Class
	samples     []pendingSample
	lastClassID int64
	lastModelID int64
}

// New returns a workspace with the two default classes.
func New(sessions Sessions, repo datastore.Repository, opts Options) *Workspace {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Workspace{
		sessions: sessions,
		repo:     repo,
		opts:     opts,
		log:      GetLogger(),
	}
	w.resetLocked()
	return w
}

func defaultClasses() []Class {
	return []Class{
		{ID: "class_1", Name: "Class 1", Color: Palette[0]},
		{ID: "class_2", Name: "Class 2", Color: Palette[1]},
	}
}

// Reset returns the workspace to its initial state.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Workspace) resetLocked() {
	w.modelID = ""
	w.modelName = DefaultModelName
	w.classes = defaultClasses()
	w.samples = nil
}

// State returns a copy of the workspace.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		ModelID:   w.modelID,
		ModelName: w.modelName,
		Classes:   slices.Clone(w.classes),
	}
}

// SetModelName renames the model being trained.
func (w *Workspace) SetModelName(name string) error {
	if name == "" {
		return validationError("model name is required", "modelName")
	}
	w.mu.Lock()
	w.modelName = name
	w.mu.Unlock()
	return nil
}

// AddClass appends a class. An empty name becomes "Class N".
func (w *Workspace) AddClass(ctx context.Context, name string) Class {
	w.mu.Lock()
	n := len(w.classes)
	if name == "" {
		name = fmt.Sprintf("Class %d", n+1)
	}
	c := Class{
		ID:    w.nextClassIDLocked(),
		Name:  name,
		Color: Palette[n%len(Palette)],
	}
	w.classes = append(w.classes, c)
	total := len(w.classes)
	w.mu.Unlock()

	if total >= multitaskerClasses {
		w.unlock(ctx, appstate.AchievementMultitasker)
	}
	return c
}

// nextClassIDLocked returns class_<ms>, bumped past the previous id when two
// classes are created within the same millisecond.
func (w *Workspace) nextClassIDLocked() string {
	ms := w.opts.Now().UnixMilli()
	if ms <= w.lastClassID {
		ms = w.lastClassID + 1
	}
	w.lastClassID = ms
	return fmt.Sprintf("class_%d", ms)
}

func (w *Workspace) nextModelIDLocked() string {
	ms := w.opts.Now().UnixMilli()
	if ms <= w.lastModelID {
		ms = w.lastModelID + 1
	}
	w.lastModelID = ms
	return fmt.Sprintf("model_%d", ms)
}

func (w *Workspace) indexLocked(id string) int {
	return slices.IndexFunc(w.classes, func(c Class) bool { return c.ID == id })
}

// RemoveClass deletes the class and its examples from the classifier.
func (w *Workspace) RemoveClass(id string) error {
	w.mu.Lock()
	i := w.indexLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return classNotFound(id)
	}
	w.classes = slices.Delete(w.classes, i, i+1)
	w.samples = slices.DeleteFunc(w.samples, func(s pendingSample) bool { return s.classID == id })
	w.mu.Unlock()

	w.sessions.Current().ClearClass(id)
	return nil
}

// RenameClass changes a class name.
func (w *Workspace) RenameClass(id, name string) error {
	if name == "" {
		return validationError("class name is required", "name")
	}
	return w.updateClass(id, func(c *Class) { c.Name = name })
}

// SetClassColor changes a class color.
func (w *Workspace) SetClassColor(id, color string) error {
	if color == "" {
		return validationError("class color is required", "color")
	}
	return w.updateClass(id, func(c *Class) { c.Color = color })
}

func (w *Workspace) updateClass(id string, fn func(*Class)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(id)
	if i < 0 {
		return classNotFound(id)
	}
	fn(&w.classes[i])
	return nil
}

// AddSample decodes frame, adds it as an example of classID and bumps the
// class counter. It reports false without error when no module is ready or
// the session changed while the frame was processed.
func (w *Workspace) AddSample(ctx context.Context, classID string, frame []byte) (bool, error) {
	w.mu.Lock()
	known := w.indexLocked(classID) >= 0
	w.mu.Unlock()
	if !known {
		return false, classNotFound(classID)
	}

	h := w.sessions.Current()
	if !h.Valid() {
		return false, nil
	}

	img, err := embedding.DecodeFrame(frame)
	if err != nil {
		w.recordFailure(metrics.OpAddExample, err)
		return false, err
	}

	start := time.Now()
	if err := h.AddExample(ctx, img, classID); err != nil {
		w.recordFailure(metrics.OpAddExample, err)
		w.unlock(ctx, appstate.AchievementFirstError)
		return false, err
	}
	if !h.Valid() {
		return false, nil
	}
	if w.opts.Metrics != nil {
		w.opts.Metrics.RecordExtract(string(h.Module()), time.Since(start).Seconds())
		w.opts.Metrics.RecordOperation(metrics.OpAddExample, metrics.StatusSuccess)
		w.opts.Metrics.SetStoredExamples(total(h.ClassExampleCount()))
	}

	w.mu.Lock()
	i := w.indexLocked(classID)
	if i < 0 {
		// removed while the frame was being embedded
		w.mu.Unlock()
		h.ClearClass(classID)
		return false, nil
	}
	w.classes[i].SampleCount++
	count := w.classes[i].SampleCount
	if w.opts.KeepSamples {
		w.samples = append(w.samples, pendingSample{
			id:        uuid.NewString(),
			classID:   classID,
			data:      slices.Clone(frame),
			timestamp: w.opts.Now().UnixMilli(),
		})
	}
	w.mu.Unlock()

	if count == dataHoarderSamples {
		w.unlock(ctx, appstate.AchievementDataHoarder)
	}
	return true, nil
}

// Predict classifies frame with the active session. A nil result without
// error means no module is ready, no examples exist, or the session changed.
func (w *Workspace) Predict(ctx context.Context, frame image.Image) (*classifier.Prediction, error) {
	h := w.sessions.Current()
	if !h.Valid() {
		return nil, nil
	}

	start := time.Now()
	pred, err := h.Predict(ctx, frame)
	if err != nil {
		w.recordFailure(metrics.OpPredict, err)
		w.unlock(ctx, appstate.AchievementFirstError)
		return nil, err
	}
	if pred == nil {
		return nil, nil
	}
	if w.opts.Metrics != nil {
		w.opts.Metrics.RecordPrediction(string(h.Module()), pred.Label, time.Since(start).Seconds())
	}

	conf := pred.Confidences[pred.Label]
	switch {
	case conf >= 1:
		w.unlock(ctx, appstate.AchievementPerfectPrecision)
	case conf >= 0.665 && conf < 0.675:
		w.unlock(ctx, appstate.AchievementThe67)
	}
	return pred, nil
}

// Save stores the workspace as a new model with the classifier dataset and,
// when enabled, the buffered raw frames.
func (w *Workspace) Save(ctx context.Context) (*datastore.SavedModel, error) {
	h := w.sessions.Current()
	module := session.ModuleVision
	if h.Valid() {
		module = h.Module()
	}
	data, err := h.Dataset().Marshal()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	m := &datastore.SavedModel{
		ID:                w.nextModelIDLocked(),
		Name:              w.modelName,
		Type:              string(module),
		Classes:           classInfos(w.classes),
		SerializedDataset: string(data),
	}
	samples := slices.Clone(w.samples)
	w.mu.Unlock()

	if err := w.repo.SaveModel(ctx, m); err != nil {
		return nil, err
	}
	for _, s := range samples {
		if err := w.repo.SaveSample(ctx, &datastore.TrainingSample{
			ID:        s.id,
			ModelID:   m.ID,
			ClassID:   s.classID,
			Data:      s.data,
			Timestamp: s.timestamp,
		}); err != nil {
			return nil, err
		}
	}

	w.mu.Lock()
	w.modelID = m.ID
	w.mu.Unlock()

	w.log.Info("model saved",
		logger.String("model_id", m.ID),
		logger.String("name", m.Name),
		logger.Int("classes", len(m.Classes)),
		logger.Int("samples", len(samples)))
	w.unlock(ctx, appstate.AchievementFirstModel)
	return m, nil
}

// Load replaces the workspace with a saved model. Sample counters start at
// zero; the classifier receives the saved dataset, which requires a ready
// session of the model's module.
func (w *Workspace) Load(ctx context.Context, id string) (*datastore.SavedModel, error) {
	m, err := w.repo.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	ds, err := classifier.ParseDataset([]byte(m.SerializedDataset))
	if err != nil {
		return nil, err
	}

	h := w.sessions.Current()
	if ds.Len() > 0 {
		if !h.Valid() || string(h.Module()) != m.Type {
			return nil, errors.New(fmt.Errorf("%w: load %s model %s", ErrNotReady, m.Type, m.ID)).
				Component("workspace").
				Category(errors.CategoryState).
				Context("model_id", m.ID).
				Build()
		}
	}
	if h.Valid() {
		if err := h.SetDataset(ds); err != nil {
			return nil, err
		}
	}

	var samples []pendingSample
	if w.opts.KeepSamples {
		stored, err := w.repo.GetSamplesByModel(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, s := range stored {
			samples = append(samples, pendingSample{id: s.ID, classID: s.ClassID, data: s.Data, timestamp: s.Timestamp})
		}
	}

	classes := make([]Class, len(m.Classes))
	for i, c := range m.Classes {
		classes[i] = Class{ID: c.ID, Name: c.Name, Color: c.Color}
	}

	w.mu.Lock()
	w.modelID = m.ID
	w.modelName = m.Name
	w.classes = classes
	w.samples = samples
	w.mu.Unlock()

	if w.opts.Metrics != nil {
		w.opts.Metrics.SetStoredExamples(ds.Len())
	}
	w.log.Info("model loaded",
		logger.String("model_id", m.ID),
		logger.Int("examples", ds.Len()))
	return m, nil
}

// Models lists saved models, newest first.
func (w *Workspace) Models(ctx context.Context) ([]*datastore.SavedModel, error) {
	return w.repo.GetAllModels(ctx)
}

// Delete removes a saved model and its samples.
func (w *Workspace) Delete(ctx context.Context, id string) error {
	if err := w.repo.DeleteModel(ctx, id); err != nil {
		return err
	}
	w.mu.Lock()
	if w.modelID == id {
		w.modelID = ""
	}
	w.mu.Unlock()
	return nil
}

func (w *Workspace) unlock(ctx context.Context, id string) {
	if w.opts.Achievements == nil {
		return
	}
	if _, err := w.opts.Achievements.Unlock(ctx, id); err != nil {
		w.log.Warn("failed to unlock achievement", logger.String("id", id), logger.Error(err))
	}
}

func (w *Workspace) recordFailure(op string, err error) {
	if w.opts.Metrics != nil {
		w.opts.Metrics.RecordFailure(op, err)
	}
}

func classInfos(classes []Class) []datastore.ClassInfo {
	out := make([]datastore.ClassInfo, len(classes))
	for i, c := range classes {
		out[i] = datastore.ClassInfo{ID: c.ID, Name: c.Name, Color: c.Color}
	}
	return out
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

func classNotFound(id string) error {
	return errors.New(ErrClassNotFound).
		Component("workspace").
		Category(errors.CategoryNotFound).
		Context("class_id", id).
		Build()
}

func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("workspace").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
