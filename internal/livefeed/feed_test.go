package livefeed

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/session"
	"github.com/kamiai/kamiai/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}

type fakeWorkspace struct {
	mu           sync.Mutex
	pred         *classifier.Prediction
	predictCalls int
	samples      []string
	addErr       error

	// when set, Predict signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeWorkspace) Predict(ctx context.Context, _ image.Image) (*classifier.Prediction, error) {
	f.mu.Lock()
	f.predictCalls++
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	return f.pred, nil
}

func (f *fakeWorkspace) AddSample(_ context.Context, classID string, _ []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return false, f.addErr
	}
	f.samples = append(f.samples, classID)
	return true, nil
}

func (f *fakeWorkspace) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.predictCalls, len(f.samples)
}

type recordingSink struct {
	mu    sync.Mutex
	preds []*classifier.Prediction
}

func (r *recordingSink) PublishPrediction(_ context.Context, p *classifier.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preds = append(r.preds, p)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.preds)
}

func readySessions(t *testing.T) *session.Manager {
	t.Helper()
	mgr := session.NewManager(session.Options{
		Classifier: classifier.DefaultOptions(),
		Loaders: map[session.ModuleType]session.LoaderFunc{
			session.ModuleVision: func(context.Context) (embedding.Extractor, error) {
				return embedding.NewGridExtractor(2), nil
			},
		},
	})
	_, err := mgr.Init(t.Context(), session.ModuleVision)
	require.NoError(t, err)
	return mgr
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// startFeed runs f until the test ends.
func startFeed(t *testing.T, f *Feed) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	require.Eventually(t, func() bool { return f.Status().Running }, time.Second, time.Millisecond)
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

var winning = &classifier.Prediction{
	Label:       "class_1",
	Confidences: map[string]float64{"class_1": 1},
}

func TestPredictLoopDeliversFreshResults(t *testing.T) {
	ws := &fakeWorkspace{pred: winning}
	sink := &recordingSink{}
	f := New(ws, readySessions(t), Options{FPS: 60, Sinks: []Sink{sink}})
	startFeed(t, f)

	seq := f.PushFrame(pngFrame(t))
	f.SetLive(true)

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	res, ok := f.Latest()
	require.True(t, ok)
	assert.Equal(t, "class_1", res.Prediction.Label)
	assert.Equal(t, seq, res.FrameSeq)

	// the same frame is never predicted twice
	time.Sleep(100 * time.Millisecond)
	calls, _ := ws.calls()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, sink.count())
}

func TestPredictLoopIdleWhenNotLive(t *testing.T) {
	ws := &fakeWorkspace{pred: winning}
	f := New(ws, readySessions(t), Options{FPS: 60})
	startFeed(t, f)

	f.PushFrame(pngFrame(t))
	time.Sleep(100 * time.Millisecond)

	calls, _ := ws.calls()
	assert.Zero(t, calls)
	_, ok := f.Latest()
	assert.False(t, ok)
}

func TestPredictLoopDiscardsStaleResults(t *testing.T) {
	tests := []struct {
		name   string
		staled func(f *Feed, mgr *session.Manager)
	}{
		{"session reset", func(_ *Feed, mgr *session.Manager) { mgr.Reset() }},
		{"live turned off", func(f *Feed, _ *session.Manager) { f.SetLive(false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := &fakeWorkspace{
				pred:    winning,
				entered: make(chan struct{}, 1),
				release: make(chan struct{}),
			}
			sink := &recordingSink{}
			mgr := readySessions(t)
			f := New(ws, mgr, Options{FPS: 60, Sinks: []Sink{sink}})
			startFeed(t, f)

			f.PushFrame(pngFrame(t))
			f.SetLive(true)
			<-ws.entered

			tt.staled(f, mgr)
			close(ws.release)

			time.Sleep(50 * time.Millisecond)
			_, ok := f.Latest()
			assert.False(t, ok)
			assert.Zero(t, sink.count())
		})
	}
}

func TestCaptureLoopAddsEachFrameOnce(t *testing.T) {
	ws := &fakeWorkspace{}
	f := New(ws, readySessions(t), Options{CaptureInterval: 5 * time.Millisecond})
	startFeed(t, f)

	f.PushFrame(pngFrame(t))
	time.Sleep(30 * time.Millisecond)
	_, samples := ws.calls()
	assert.Zero(t, samples, "nothing is captured without a held class")

	f.Hold("class_1")
	assert.Equal(t, "class_1", f.Held())
	require.Eventually(t, func() bool {
		_, n := ws.calls()
		return n == 1
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	_, samples = ws.calls()
	assert.Equal(t, 1, samples)

	f.PushFrame(pngFrame(t))
	require.Eventually(t, func() bool {
		_, n := ws.calls()
		return n == 2
	}, time.Second, time.Millisecond)

	f.Release()
	assert.Empty(t, f.Held())
}

func TestCaptureReleasesRemovedClass(t *testing.T) {
	ws := &fakeWorkspace{addErr: errors.New(workspace.ErrClassNotFound).Build()}
	f := New(ws, readySessions(t), Options{CaptureInterval: 5 * time.Millisecond})
	startFeed(t, f)

	f.Hold("class_gone")
	f.PushFrame(pngFrame(t))
	require.Eventually(t, func() bool { return f.Held() == "" }, time.Second, time.Millisecond)
}

func TestRunTwiceFails(t *testing.T) {
	f := New(&fakeWorkspace{}, readySessions(t), Options{})
	startFeed(t, f)

	err := f.Run(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestNewClampsOptions(t *testing.T) {
	f := New(&fakeWorkspace{}, readySessions(t), Options{FPS: 500})
	assert.Equal(t, MaxFPS, f.opts.FPS)
	assert.Equal(t, DefaultCaptureInterval, f.opts.CaptureInterval)

	f = New(&fakeWorkspace{}, readySessions(t), Options{})
	assert.Equal(t, DefaultFPS, f.opts.FPS)
}
