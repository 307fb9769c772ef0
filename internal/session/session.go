// Package session owns the active module session: which module is loaded,
// its readiness, and the extractor/classifier pair behind it.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
)

// ModuleType identifies a sensing module.
type ModuleType string

const (
	ModuleVision ModuleType = "vision"
	ModuleAudio  ModuleType = "audio"
	ModulePose   ModuleType = "pose"
)

// ParseModuleType validates s as a module type.
func ParseModuleType(s string) (ModuleType, error) {
	switch mt := ModuleType(strings.ToLower(strings.TrimSpace(s))); mt {
	case ModuleVision, ModuleAudio, ModulePose:
		return mt, nil
	default:
		return "", errors.Newf("unknown module type %q", s).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Status is the readiness of the session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// State is a snapshot of the session.
type State struct {
	ModuleType ModuleType `json:"moduleType,omitempty"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// LoaderFunc produces the extractor for one module type.
type LoaderFunc func(ctx context.Context) (embedding.Extractor, error)

// ErrModuleNotImplemented is returned by Init for modules without a loader.
var ErrModuleNotImplemented = errors.NewStd("module not implemented")

// Options configures a Manager.
type Options struct {
	Loaders    map[ModuleType]LoaderFunc
	Classifier classifier.Options
	// OnChange, when set, is called after every state transition.
	OnChange func(State)
}

// Manager holds exactly one session. Init and Reset are serialized; state
// reads never block on a load in progress.
type Manager struct {
	opts Options
	log  logger.Logger

	mu sync.Mutex // serializes Init and Reset

	stateMu sync.RWMutex // guards state and current
	state   State
	current *Handle

	generation atomic.Uint64
}

// NewManager returns an idle manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:  opts,
		log:   GetLogger(),
		state: State{Status: StatusIdle},
	}
}

// Init makes mt the active module. A session already Ready for mt is reused
// as is. Otherwise the previous session is discarded, its handle goes stale,
// and the module's extractor is loaded into a fresh classifier. A failed load
// leaves the session Failed with the message available from Err; calling Init
// again retries.
func (m *Manager) Init(ctx context.Context, mt ModuleType) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st := m.State(); st.Status == StatusReady && st.ModuleType == mt && m.current != nil {
		return m.current, nil
	}

	m.discardLocked()
	m.setState(State{ModuleType: mt, Status: StatusLoading})

	start := time.Now()
	extractor, err := m.load(ctx, mt)
	if err != nil {
		m.setState(State{ModuleType: mt, Status: StatusFailed, Error: err.Error()})
		m.log.Error("module load failed",
			logger.String("module", string(mt)),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return nil, err
	}

	h := &Handle{
		mgr:        m,
		gen:        m.generation.Load(),
		module:     mt,
		extractor:  extractor,
		classifier: classifier.New(m.opts.Classifier),
	}
	m.stateMu.Lock()
	m.current = h
	m.stateMu.Unlock()
	m.setState(State{ModuleType: mt, Status: StatusReady})

	m.log.Info("module ready",
		logger.String("module", string(mt)),
		logger.Int("embedding_dim", extractor.Dim()),
		logger.Duration("elapsed", time.Since(start)))

	return h, nil
}

func (m *Manager) load(ctx context.Context, mt ModuleType) (embedding.Extractor, error) {
	loader, ok := m.opts.Loaders[mt]
	if !ok || loader == nil {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrModuleNotImplemented, mt)).
			Component("session").
			Category(errors.CategoryModelLoad).
			Context("module", string(mt)).
			Build()
	}

	start := time.Now()
	extractor, err := loader(ctx)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to load %s model: %w", mt, err)).
			Component("session").
			Category(errors.CategoryModelLoad).
			Context("module", string(mt)).
			Timing("load_model", time.Since(start)).
			Build()
	}
	if extractor == nil {
		return nil, errors.Newf("loader for %s returned no extractor", mt).
			Component("session").
			Category(errors.CategoryModelLoad).
			Build()
	}
	return extractor, nil
}

// Reset discards the session and returns to Idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.discardLocked()
	m.setState(State{Status: StatusIdle})
}

// discardLocked invalidates the current handle and closes its extractor.
func (m *Manager) discardLocked() {
	m.generation.Add(1)
	if m.current == nil {
		return
	}
	old := m.current

	m.stateMu.Lock()
	m.current = nil
	m.stateMu.Unlock()

	if err := old.extractor.Close(); err != nil {
		m.log.Warn("failed to close extractor",
			logger.String("module", string(old.module)),
			logger.Error(err))
	}
}

func (m *Manager) setState(st State) {
	m.stateMu.Lock()
	m.state = st
	m.stateMu.Unlock()

	if m.opts.OnChange != nil {
		m.opts.OnChange(st)
	}
}

// State returns the current session snapshot.
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Err returns the last load failure message, or "" when none. Reading does not clear it.
func (m *Manager) Err() string {
	return m.State().Error
}

// IsReady reports whether a module is loaded and usable.
func (m *Manager) IsReady() bool {
	return m.State().Status == StatusReady
}

// Current returns the active handle, or nil when no module is Ready.
func (m *Manager) Current() *Handle {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.state.Status != StatusReady {
		return nil
	}
	return m.current
}
