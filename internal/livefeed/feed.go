// Package livefeed runs the live prediction and training capture loops over
// the newest camera frame.
package livefeed

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
	"github.com/kamiai/kamiai/internal/observability/metrics"
	"github.com/kamiai/kamiai/internal/session"
	"github.com/kamiai/kamiai/internal/workspace"
)

// Defaults for Options.
const (
	DefaultFPS             = 30
	MaxFPS                 = 60
	DefaultCaptureInterval = 100 * time.Millisecond
)

// Workspace is what the loops drive.
type Workspace interface {
	Predict(ctx context.Context, frame image.Image) (*classifier.Prediction, error)
	AddSample(ctx context.Context, classID string, frame []byte) (bool, error)
}

// Sessions exposes the active module session.
type Sessions interface {
	Current() *session.Handle
}

// Sink receives every fresh prediction.
type Sink interface {
	PublishPrediction(ctx context.Context, pred *classifier.Prediction) error
}

// Options configures a Feed.
type Options struct {
	FPS             int
	CaptureInterval time.Duration
	Metrics         *metrics.VisionMetrics
	Sinks           []Sink
}

// Result is the last accepted prediction.
type Result struct {
	Prediction *classifier.Prediction `json:"prediction"`
	FrameSeq   uint64                 `json:"frameSeq"`
	At         time.Time              `json:"at"`
}

// Status is a snapshot of the feed.
type Status struct {
	Live          bool    `json:"live"`
	Running       bool    `json:"running"`
	HeldClass     string  `json:"heldClass,omitempty"`
	DroppedFrames uint64  `json:"droppedFrames"`
	Last          *Result `json:"last,omitempty"`
}

// Feed owns the frame mailbox and the two loops.
type Feed struct {
	ws       Workspace
	sessions Sessions
	opts     Options
	mailbox  *Mailbox
	log      logger.Logger

	live    atomic.Bool
	running atomic.Bool
	held    atomic.Pointer[string]

	mu   sync.RWMutex
	last *Result
}

// New returns a stopped feed.
func New(ws Workspace, sessions Sessions, opts Options) *Feed {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	opts.FPS = min(opts.FPS, MaxFPS)
	if opts.CaptureInterval <= 0 {
		opts.CaptureInterval = DefaultCaptureInterval
	}
	f := &Feed{
		ws:       ws,
		sessions: sessions,
		opts:     opts,
		log:      GetLogger(),
	}
	f.mailbox = NewMailbox(func() {
		if opts.Metrics != nil {
			opts.Metrics.RecordFrameDropped()
		}
	})
	return f
}

// PushFrame publishes an encoded frame. It never blocks.
func (f *Feed) PushFrame(data []byte) uint64 {
	return f.mailbox.Publish(data)
}

// SetLive turns live prediction on or off. Turning it off forgets the last
// result; predictions still in flight are discarded.
func (f *Feed) SetLive(live bool) {
	if f.live.Swap(live) == live {
		return
	}
	if !live {
		f.mu.Lock()
		f.last = nil
		f.mu.Unlock()
	}
	f.log.Info("live prediction toggled", logger.Bool("live", live))
}

// IsLive reports whether live prediction is on.
func (f *Feed) IsLive() bool { return f.live.Load() }

// Hold starts capturing training frames for classID. An empty id releases.
func (f *Feed) Hold(classID string) {
	if classID == "" {
		f.held.Store(nil)
		return
	}
	f.held.Store(&classID)
}

// Release stops capturing.
func (f *Feed) Release() { f.held.Store(nil) }

// Held returns the class being captured, or "".
func (f *Feed) Held() string {
	if p := f.held.Load(); p != nil {
		return *p
	}
	return ""
}

// Latest returns the last accepted prediction.
func (f *Feed) Latest() (Result, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.last == nil {
		return Result{}, false
	}
	return *f.last, true
}

// Status returns a snapshot of the feed.
func (f *Feed) Status() Status {
	st := Status{
		Live:          f.IsLive(),
		Running:       f.running.Load(),
		HeldClass:     f.Held(),
		DroppedFrames: f.mailbox.Dropped(),
	}
	if r, ok := f.Latest(); ok {
		st.Last = &r
	}
	return st
}

// Run drives both loops until ctx is done. Calls that are in flight when
// ctx ends finish and their results are dropped.
func (f *Feed) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return errors.Newf("live feed is already running").
			Component("livefeed").
			Category(errors.CategoryState).
			Build()
	}
	defer f.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.predictLoop(ctx) })
	g.Go(func() error { return f.captureLoop(ctx) })
	return g.Wait()
}

func (f *Feed) loopStarted() func() {
	if f.opts.Metrics == nil {
		return func() {}
	}
	f.opts.Metrics.LoopStarted()
	return f.opts.Metrics.LoopStopped
}

func (f *Feed) predictLoop(ctx context.Context) error {
	defer f.loopStarted()()

	// a tick that fires while Predict runs is dropped by the ticker
	ticker := time.NewTicker(time.Second / time.Duration(f.opts.FPS))
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !f.live.Load() {
			continue
		}
		frame, ok := f.mailbox.Latest()
		if !ok || frame.Seq == lastSeq {
			continue
		}
		lastSeq = frame.Seq
		f.predictOnce(ctx, frame)
	}
}

func (f *Feed) predictOnce(ctx context.Context, frame Frame) {
	h := f.sessions.Current()
	if !h.Valid() {
		return
	}

	img, err := embedding.DecodeFrame(frame.Data)
	if err != nil {
		f.log.Debug("skipping undecodable frame", logger.Error(err))
		return
	}

	pred, err := f.ws.Predict(ctx, img)
	if err != nil {
		if ctx.Err() == nil {
			f.log.Warn("live prediction failed", logger.Error(err))
		}
		return
	}
	if pred == nil {
		return
	}
	if ctx.Err() != nil || !f.live.Load() || !h.Valid() || f.sessions.Current() != h {
		if f.opts.Metrics != nil {
			f.opts.Metrics.RecordStalePrediction()
		}
		return
	}

	f.mu.Lock()
	f.last = &Result{Prediction: pred, FrameSeq: frame.Seq, At: time.Now()}
	f.mu.Unlock()

	for _, sink := range f.opts.Sinks {
		if err := sink.PublishPrediction(ctx, pred); err != nil {
			f.log.Debug("prediction sink failed", logger.Error(err))
		}
	}
}

func (f *Feed) captureLoop(ctx context.Context) error {
	defer f.loopStarted()()

	ticker := time.NewTicker(f.opts.CaptureInterval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		classID := f.Held()
		if classID == "" {
			continue
		}
		frame, ok := f.mailbox.Latest()
		if !ok || frame.Seq == lastSeq {
			continue
		}
		lastSeq = frame.Seq

		_, err := f.ws.AddSample(ctx, classID, frame.Data)
		switch {
		case err == nil:
		case errors.Is(err, workspace.ErrClassNotFound):
			// the class was removed while held
			if p := f.held.Load(); p != nil && *p == classID {
				f.held.CompareAndSwap(p, nil)
			}
			f.log.Info("capture released, class removed", logger.String("class_id", classID))
		case ctx.Err() == nil:
			f.log.Warn("training capture failed", logger.String("class_id", classID), logger.Error(err))
		}
	}
}
