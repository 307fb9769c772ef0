package appstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/errors"
)

func newTestRepo(t *testing.T) *datastore.Store {
	t.Helper()
	mgr, err := datastore.NewSQLiteManager(datastore.Config{Path: filepath.Join(t.TempDir(), "kamiai.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return datastore.NewStore(mgr, nil)
}

var fixedNow = time.UnixMilli(1_700_000_000_000)

func newTestStores(t *testing.T, repo SettingsRepository) *Stores {
	t.Helper()
	s := New(repo, Options{Now: func() time.Time { return fixedNow }})
	require.NoError(t, s.Load(context.Background()))
	return s
}

// failingRepo rejects every write.
type failingRepo struct{}

var errWrite = errors.NewStd("disk full")

func (failingRepo) SetSetting(context.Context, string, any) error { return errWrite }
func (failingRepo) GetSetting(context.Context, string, any) error {
	return datastore.ErrSettingNotFound
}

func TestDefaults(t *testing.T) {
	s := newTestStores(t, newTestRepo(t))

	app := s.App()
	assert.False(t, app.OnboardingComplete)
	assert.Nil(t, app.ActiveModule)
	assert.Nil(t, app.UserProfile)
	assert.True(t, app.IsSidebarOpen)
	assert.Equal(t, "en", app.Language)
	assert.Equal(t, "#F6C944", app.PrimaryColor)

	st := s.Settings()
	assert.Equal(t, 10, st.AI.Epochs)
	assert.InDelta(t, 0.001, st.AI.LearningRate, 1e-12)
	assert.Equal(t, 16, st.AI.BatchSize)
	assert.InDelta(t, 0.7, st.AI.ConfidenceThreshold, 1e-12)
	assert.Equal(t, BackendWebGPU, st.AI.Backend)
	assert.True(t, st.Notifications.VoiceFeedback)
	assert.True(t, st.System.AutoSaveModels)
	assert.False(t, st.System.TelemetryEnabled)

	ach := s.Achievements().Achievements
	require.Len(t, ach, 14)
	hidden := 0
	for _, a := range ach {
		assert.False(t, a.IsUnlocked, a.ID)
		if a.IsHidden {
			hidden++
		}
	}
	assert.Equal(t, 4, hidden)
}

func TestPersistAcrossLoad(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := newTestStores(t, repo)
	require.NoError(t, s.CompleteOnboarding(ctx, UserProfile{Name: "Ada", Role: RoleJunior}))
	require.NoError(t, s.SetActiveModule(ctx, "vision"))
	require.NoError(t, s.SetPrimaryColor(ctx, "#22c55e"))
	require.NoError(t, s.UpdateSettings(ctx, func(st *Settings) { st.AI.Epochs = 25 }))

	again := newTestStores(t, repo)
	app := again.App()
	assert.True(t, app.OnboardingComplete)
	require.NotNil(t, app.UserProfile)
	assert.Equal(t, "Ada", app.UserProfile.Name)
	require.NotNil(t, app.ActiveModule)
	assert.Equal(t, "vision", *app.ActiveModule)
	assert.Equal(t, "#22c55e", app.PrimaryColor)
	assert.Equal(t, 25, again.Settings().AI.Epochs)
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	var notified []string
	s := New(newTestRepo(t), Options{
		Now:      func() time.Time { return fixedNow },
		OnUnlock: func(a Achievement) { notified = append(notified, a.ID) },
	})

	ok, err := s.Unlock(ctx, AchievementFirstModel)
	require.NoError(t, err)
	assert.True(t, ok)

	a, found := s.Achievements().Get(AchievementFirstModel)
	require.True(t, found)
	assert.True(t, a.IsUnlocked)
	assert.Equal(t, fixedNow.UnixMilli(), a.UnlockedAt)

	ok, err = s.Unlock(ctx, AchievementFirstModel)
	require.NoError(t, err)
	assert.False(t, ok, "second unlock is a no-op")

	ok, err = s.Unlock(ctx, "no_such_badge")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{AchievementFirstModel}, notified)

	require.NoError(t, s.ResetAchievements(ctx))
	a, _ = s.Achievements().Get(AchievementFirstModel)
	assert.False(t, a.IsUnlocked)
	assert.Zero(t, a.UnlockedAt)
}

func TestSideEffectUnlocks(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t, newTestRepo(t))

	require.NoError(t, s.CompleteOnboarding(ctx, UserProfile{Name: "Lin", Role: RoleSenior}))
	require.NoError(t, s.SetLanguage(ctx, "tr"))
	require.NoError(t, s.UpdateSettings(ctx, func(st *Settings) { st.AI.Backend = BackendCPU }))
	require.NoError(t, s.UpdateSettings(ctx, func(st *Settings) { st.AI.Backend = BackendWebGPU }))

	ach := s.Achievements()
	for _, id := range []string{AchievementSeniorArchitect, AchievementLanguageLearner, AchievementWebGPUMaster} {
		a, _ := ach.Get(id)
		assert.True(t, a.IsUnlocked, id)
	}
}

func TestSetLanguageSameValueDoesNotUnlock(t *testing.T) {
	s := newTestStores(t, newTestRepo(t))
	require.NoError(t, s.SetLanguage(context.Background(), "en"))

	a, _ := s.Achievements().Get(AchievementLanguageLearner)
	assert.False(t, a.IsUnlocked)
}

func TestSetLanguageCanonicalizes(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t, newTestRepo(t))

	require.NoError(t, s.SetLanguage(ctx, "EN-us"))
	assert.Equal(t, "en-US", s.App().Language)

	err := s.SetLanguage(ctx, "not a language")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Equal(t, "en-US", s.App().Language)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t, newTestRepo(t))

	err := s.CompleteOnboarding(ctx, UserProfile{Name: "x", Role: "wizard"})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = s.SetPrimaryColor(ctx, "gold")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = s.UpdateSettings(ctx, func(st *Settings) { st.AI.ConfidenceThreshold = 1.5 })
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.InDelta(t, 0.7, s.Settings().AI.ConfidenceThreshold, 1e-12, "rejected update is not applied")
}

func TestFailedWriteKeepsMemoryUnchanged(t *testing.T) {
	s := New(failingRepo{}, Options{})
	require.NoError(t, s.Load(context.Background()))

	err := s.SetLanguage(context.Background(), "tr")
	require.ErrorIs(t, err, errWrite)
	assert.Equal(t, "en", s.App().Language)

	ok, err := s.Unlock(context.Background(), AchievementFirstModel)
	require.ErrorIs(t, err, errWrite)
	assert.False(t, ok)
	a, _ := s.Achievements().Get(AchievementFirstModel)
	assert.False(t, a.IsUnlocked)
}

func TestResetAppKeepsPreferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t, newTestRepo(t))
	require.NoError(t, s.CompleteOnboarding(ctx, UserProfile{Name: "Ada", Role: RoleJunior}))
	require.NoError(t, s.SetActiveModule(ctx, "vision"))
	require.NoError(t, s.SetLanguage(ctx, "tr"))

	require.NoError(t, s.ResetApp(ctx))

	app := s.App()
	assert.False(t, app.OnboardingComplete)
	assert.Nil(t, app.ActiveModule)
	assert.Nil(t, app.UserProfile)
	assert.Equal(t, "tr", app.Language)
}

func TestSnapshotRestoreVerbatim(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	s := newTestStores(t, repo)
	require.NoError(t, s.SetLanguage(ctx, "tr"))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	var app map[string]any
	require.NoError(t, json.Unmarshal(snap.App, &app))
	assert.Equal(t, "tr", app["language"])
	assert.Contains(t, string(snap.Achievements), `"language_learner"`)

	// A snapshot from another installation replaces everything on reload.
	foreign := Snapshot{
		App:      json.RawMessage(`{"onboardingComplete":true,"activeModule":"pose","userProfile":{"name":"Eve","role":"opensource"},"isSidebarOpen":false,"language":"en","primaryColor":"#3b82f6"}`),
		Settings: json.RawMessage(`{"ai":{"epochs":3,"learningRate":0.01,"batchSize":8,"confidenceThreshold":0.5,"backend":"cpu"}}`),
	}
	require.NoError(t, foreign.Validate())
	entries := foreign.Entries()
	assert.Len(t, entries, 2)

	require.NoError(t, repo.ReplaceAll(ctx, datastore.Contents{Settings: entries}))
	require.NoError(t, s.Reload(ctx))

	app2 := s.App()
	assert.True(t, app2.OnboardingComplete)
	require.NotNil(t, app2.ActiveModule)
	assert.Equal(t, "pose", *app2.ActiveModule)
	assert.Equal(t, "#3b82f6", app2.PrimaryColor)

	st := s.Settings()
	assert.Equal(t, 3, st.AI.Epochs)
	assert.Equal(t, BackendCPU, st.AI.Backend)
	assert.True(t, st.Notifications.SoundEffects, "fields missing from the snapshot keep defaults")

	a, _ := s.Achievements().Get(AchievementLanguageLearner)
	assert.False(t, a.IsUnlocked, "absent store falls back to defaults")
}

func TestSnapshotValidateRejectsNonObject(t *testing.T) {
	snap := Snapshot{App: json.RawMessage(`[1,2]`)}
	err := snap.Validate()
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	snap = Snapshot{Settings: json.RawMessage(`null`)}
	assert.Error(t, snap.Validate())
}

func TestSnapshotValidateDecodesTypedStores(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"mistyped epochs", Snapshot{Settings: json.RawMessage(`{"ai":{"epochs":"ten"}}`)}},
		{"zero epochs", Snapshot{Settings: json.RawMessage(`{"ai":{"epochs":0}}`)}},
		{"unknown backend", Snapshot{Settings: json.RawMessage(`{"ai":{"backend":"quantum"}}`)}},
		{"profile without name", Snapshot{App: json.RawMessage(`{"userProfile":{"role":"senior"}}`)}},
		{"bad color", Snapshot{App: json.RawMessage(`{"primaryColor":"gold"}`)}},
		{"mistyped achievements", Snapshot{Achievements: json.RawMessage(`{"achievements":"all"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}

	partial := Snapshot{Settings: json.RawMessage(`{"ai":{"epochs":5}}`)}
	assert.NoError(t, partial.Validate(), "missing fields keep their defaults")
}

func TestLoadLeavesStoresUntouchedWhenOneRowIsCorrupt(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	s := newTestStores(t, repo)
	require.NoError(t, s.SetLanguage(ctx, "tr"))

	require.NoError(t, repo.SetSetting(ctx, KeyApp, map[string]any{"language": "de"}))
	require.NoError(t, repo.SetSetting(ctx, KeySettings, map[string]any{"ai": map[string]any{"epochs": "ten"}}))

	err := s.Load(ctx)
	require.ErrorIs(t, err, datastore.ErrSettingCorrupt)
	assert.Equal(t, "tr", s.App().Language, "app store is not swapped on a partial load")
	assert.Equal(t, DefaultSettings(), s.Settings())
}
