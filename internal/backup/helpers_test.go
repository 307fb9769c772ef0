package backup

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/appstate"
	"github.com/kamiai/kamiai/internal/datastore"
)

var testNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

// memTarget keeps stored files in memory. When block is set, Store signals
// entered and waits for block to close.
type memTarget struct {
	name string

	mu    sync.Mutex
	files map[string][]byte
	err   error

	entered chan struct{}
	block   chan struct{}
}

func newMemTarget(name string) *memTarget {
	return &memTarget{name: name, files: make(map[string][]byte)}
}

func (m *memTarget) Name() string    { return m.name }
func (m *memTarget) Validate() error { return nil }

func (m *memTarget) Store(ctx context.Context, filename string, data []byte) error {
	if m.block != nil {
		close(m.entered)
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.files[filename] = append([]byte(nil), data...)
	return nil
}

func (m *memTarget) file(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

type testEnv struct {
	repo     *datastore.Store
	stores   *appstate.Stores
	state    *StateManager
	local    *memTarget
	github   *memTarget
	mgr      *Manager
	restored int

	resultsMu sync.Mutex
	results   []Result
}

func (e *testEnv) reported() []Result {
	e.resultsMu.Lock()
	defer e.resultsMu.Unlock()
	return append([]Result(nil), e.results...)
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	db, err := datastore.NewSQLiteManager(datastore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		repo:   datastore.NewStore(db, nil),
		local:  newMemTarget("local"),
		github: newMemTarget("github"),
	}
	env.stores = appstate.New(env.repo, appstate.Options{Now: func() time.Time { return testNow }})
	require.NoError(t, env.stores.Load(t.Context()))

	env.state, err = NewStateManager(filepath.Join(t.TempDir(), "backup-state.json"))
	require.NoError(t, err)

	env.mgr, err = NewManager(Options{
		Config: cfg,
		Repo:   env.repo,
		Stores: env.stores,
		State:  env.state,
		Local:  env.local,
		Cloud:  map[Provider]Target{ProviderGitHub: env.github},
		OnRestore: func(context.Context) error {
			env.restored++
			return nil
		},
		OnResult: func(r Result) {
			env.resultsMu.Lock()
			env.results = append(env.results, r)
			env.resultsMu.Unlock()
		},
		Now: func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return env
}

// seed stores one model with two samples and changes the language.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := t.Context()

	require.NoError(t, e.repo.SaveModel(ctx, &datastore.SavedModel{
		ID:   "model_1",
		Name: "Cats vs dogs",
		Type: "vision",
		Classes: []datastore.ClassInfo{
			{ID: "class_1", Name: "Cat", Color: "#D4AF37"},
			{ID: "class_2", Name: "Dog", Color: "#22c55e"},
		},
		SerializedDataset: `{"class_1":[[0.1,0.2]],"class_2":[[0.3,0.4]]}`,
	}))
	for i, class := range []string{"class_1", "class_2"} {
		require.NoError(t, e.repo.SaveSample(ctx, &datastore.TrainingSample{
			ID:        "sample_" + class,
			ModelID:   "model_1",
			ClassID:   class,
			Data:      []byte{byte(i), 1, 2},
			Timestamp: int64(1000 + i),
		}))
	}
	require.NoError(t, e.stores.SetLanguage(ctx, "tr"))
}

var errTargetDown = errors.New("target down")
