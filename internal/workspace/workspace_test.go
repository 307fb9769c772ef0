package workspace

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/appstate"
	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/session"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngOf(t *testing.T, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(c)))
	return buf.Bytes()
}

// recorder collects unlocked achievement ids.
type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) Unlock(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return true, nil
}

func (r *recorder) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.ids {
		if x == id {
			return true
		}
	}
	return false
}

type fixture struct {
	ws   *Workspace
	mgr  *session.Manager
	repo *datastore.Store
	ach  *recorder
}

func newFixture(t *testing.T, keepSamples bool) *fixture {
	t.Helper()
	dbm, err := datastore.NewSQLiteManager(datastore.Config{Path: filepath.Join(t.TempDir(), "kamiai.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbm.Close() })
	repo := datastore.NewStore(dbm, nil)

	mgr := session.NewManager(session.Options{
		Classifier: classifier.DefaultOptions(),
		Loaders: map[session.ModuleType]session.LoaderFunc{
			session.ModuleVision: func(context.Context) (embedding.Extractor, error) {
				return embedding.NewGridExtractor(2), nil
			},
		},
	})

	clock := time.UnixMilli(1_700_000_000_000)
	ach := &recorder{}
	ws := New(mgr, repo, Options{
		KeepSamples:  keepSamples,
		Achievements: ach,
		Now:          func() time.Time { return clock },
	})
	return &fixture{ws: ws, mgr: mgr, repo: repo, ach: ach}
}

func (f *fixture) ready(t *testing.T) {
	t.Helper()
	_, err := f.mgr.Init(context.Background(), session.ModuleVision)
	require.NoError(t, err)
}

func TestDefaultState(t *testing.T) {
	f := newFixture(t, false)
	st := f.ws.State()

	assert.Equal(t, "Untitled Agent", st.ModelName)
	assert.Empty(t, st.ModelID)
	require.Len(t, st.Classes, 2)
	assert.Equal(t, Class{ID: "class_1", Name: "Class 1", Color: "#D4AF37"}, st.Classes[0])
	assert.Equal(t, Class{ID: "class_2", Name: "Class 2", Color: "#22c55e"}, st.Classes[1])
}

func TestAddClassNamingAndPalette(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	c3 := f.ws.AddClass(ctx, "")
	c4 := f.ws.AddClass(ctx, "Mug")

	assert.Equal(t, "Class 3", c3.Name)
	assert.Equal(t, "#3b82f6", c3.Color)
	assert.Equal(t, "class_1700000000000", c3.ID)
	assert.Equal(t, "Mug", c4.Name)
	assert.Equal(t, "#ef4444", c4.Color)
	assert.NotEqual(t, c3.ID, c4.ID, "ids stay unique within one millisecond")

	for range 6 {
		f.ws.AddClass(ctx, "")
	}
	assert.True(t, f.ach.has(appstate.AchievementMultitasker))
	assert.Equal(t, Palette[9%len(Palette)], f.ws.State().Classes[9].Color)
}

func TestRenameRecolorRemove(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.ws.RenameClass("class_1", "Cup"))
	require.NoError(t, f.ws.SetClassColor("class_1", "#ec4899"))
	st := f.ws.State()
	assert.Equal(t, "Cup", st.Classes[0].Name)
	assert.Equal(t, "#ec4899", st.Classes[0].Color)

	err := f.ws.RenameClass("nope", "x")
	assert.ErrorIs(t, err, ErrClassNotFound)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))

	require.NoError(t, f.ws.RemoveClass("class_2"))
	assert.Len(t, f.ws.State().Classes, 1)
	assert.ErrorIs(t, f.ws.RemoveClass("class_2"), ErrClassNotFound)
}

func TestAddSampleRequiresReadySession(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	added, err := f.ws.AddSample(ctx, "class_1", pngOf(t, red))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Zero(t, f.ws.State().Classes[0].SampleCount)

	_, err = f.ws.AddSample(ctx, "ghost", pngOf(t, red))
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestTrainAndPredict(t *testing.T) {
	f := newFixture(t, false)
	f.ready(t)
	ctx := context.Background()

	for range 3 {
		added, err := f.ws.AddSample(ctx, "class_1", pngOf(t, red))
		require.NoError(t, err)
		require.True(t, added)
	}
	added, err := f.ws.AddSample(ctx, "class_2", pngOf(t, green))
	require.NoError(t, err)
	require.True(t, added)

	st := f.ws.State()
	assert.Equal(t, 3, st.Classes[0].SampleCount)
	assert.Equal(t, 1, st.Classes[1].SampleCount)

	pred, err := f.ws.Predict(ctx, solid(red))
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, "class_1", pred.Label)
	assert.InDelta(t, 1.0, pred.Confidences["class_1"], 1e-9)
	assert.InDelta(t, 0.0, pred.Confidences["class_2"], 1e-9)
	assert.True(t, f.ach.has(appstate.AchievementPerfectPrecision))
}

func TestCupVersusEmptyFromEncodedFrames(t *testing.T) {
	f := newFixture(t, false)
	f.ready(t)
	ctx := context.Background()

	require.NoError(t, f.ws.RenameClass("class_1", "Cup"))
	require.NoError(t, f.ws.RenameClass("class_2", "Empty"))
	for i := range 5 {
		cup := color.RGBA{R: uint8(190 + 12*i), G: uint8(60 + 8*i), B: uint8(20 + 4*i), A: 255}
		empty := color.RGBA{R: uint8(20 + 6*i), G: uint8(70 + 10*i), B: uint8(180 + 14*i), A: 255}
		added, err := f.ws.AddSample(ctx, "class_1", pngOf(t, cup))
		require.NoError(t, err)
		require.True(t, added)
		added, err = f.ws.AddSample(ctx, "class_2", pngOf(t, empty))
		require.NoError(t, err)
		require.True(t, added)
	}

	pred, err := f.ws.Predict(ctx, solid(color.RGBA{R: 215, G: 70, B: 35, A: 255}))
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, "class_1", pred.Label)
	assert.Greater(t, pred.Confidences["class_1"], pred.Confidences["class_2"])

	st := f.ws.State()
	assert.Equal(t, "Cup", st.Classes[0].Name)
	assert.Equal(t, 5, st.Classes[0].SampleCount)
	assert.Equal(t, 5, st.Classes[1].SampleCount)
}

func TestAddSampleRejectsGarbage(t *testing.T) {
	f := newFixture(t, false)
	f.ready(t)

	added, err := f.ws.AddSample(context.Background(), "class_1", []byte("not an image"))
	assert.Error(t, err)
	assert.False(t, added)
	assert.Zero(t, f.ws.State().Classes[0].SampleCount)
}

func TestRemoveClassClearsExamples(t *testing.T) {
	f := newFixture(t, false)
	f.ready(t)
	ctx := context.Background()

	_, err := f.ws.AddSample(ctx, "class_1", pngOf(t, red))
	require.NoError(t, err)
	_, err = f.ws.AddSample(ctx, "class_2", pngOf(t, green))
	require.NoError(t, err)

	require.NoError(t, f.ws.RemoveClass("class_1"))
	assert.Equal(t, map[string]int{"class_2": 1}, f.mgr.Current().ClassExampleCount())

	pred, err := f.ws.Predict(ctx, solid(red))
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, "class_2", pred.Label)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := newFixture(t, true)
	f.ready(t)
	ctx := context.Background()

	require.NoError(t, f.ws.SetModelName("Cups"))
	_, err := f.ws.AddSample(ctx, "class_1", pngOf(t, red))
	require.NoError(t, err)
	_, err = f.ws.AddSample(ctx, "class_2", pngOf(t, green))
	require.NoError(t, err)

	saved, err := f.ws.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "model_1700000000000", saved.ID)
	assert.Equal(t, "vision", saved.Type)
	assert.True(t, f.ach.has(appstate.AchievementFirstModel))
	assert.Equal(t, saved.ID, f.ws.State().ModelID)

	samples, err := f.repo.GetSamplesByModel(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	byClass := map[string][]byte{}
	for _, smp := range samples {
		byClass[smp.ClassID] = smp.Data
	}
	assert.Equal(t, pngOf(t, red), byClass["class_1"])

	// A new session starts empty; loading restores classes and examples.
	f.mgr.Reset()
	f.ready(t)
	f.ws.Reset()
	assert.Zero(t, f.mgr.Current().NumClasses())

	loaded, err := f.ws.Load(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cups", loaded.Name)

	st := f.ws.State()
	assert.Equal(t, "Cups", st.ModelName)
	require.Len(t, st.Classes, 2)
	for _, c := range st.Classes {
		assert.Zero(t, c.SampleCount, "counters restart on load")
	}
	assert.Equal(t, map[string]int{"class_1": 1, "class_2": 1}, f.mgr.Current().ClassExampleCount())

	pred, err := f.ws.Predict(ctx, solid(green))
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, "class_2", pred.Label)
}

func TestSaveTwiceInSameMillisecondCreatesTwoModels(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a, err := f.ws.Save(ctx)
	require.NoError(t, err)
	b, err := f.ws.Save(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	models, err := f.ws.Models(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestLoadDatasetNeedsReadySession(t *testing.T) {
	f := newFixture(t, false)
	f.ready(t)
	ctx := context.Background()

	_, err := f.ws.AddSample(ctx, "class_1", pngOf(t, red))
	require.NoError(t, err)
	saved, err := f.ws.Save(ctx)
	require.NoError(t, err)

	f.mgr.Reset()
	_, err = f.ws.Load(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestDelete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	saved, err := f.ws.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, f.ws.Delete(ctx, saved.ID))
	assert.Empty(t, f.ws.State().ModelID)

	_, err = f.ws.Load(ctx, saved.ID)
	assert.ErrorIs(t, err, datastore.ErrModelNotFound)
	assert.ErrorIs(t, f.ws.Delete(ctx, saved.ID), datastore.ErrModelNotFound)
}
