// Package appstate holds the application level stores: app/profile,
// user settings and achievements. Each store is persisted as one JSON row in
// the repository settings table so a restore swaps it together with the
// models and samples.
package appstate

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/text/language"

	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
)

// Repository keys of the persisted stores.
const (
	KeyApp          = "store:app"
	KeySettings     = "store:settings"
	KeyAchievements = "store:achievements"
)

// SettingsRepository is the key/value part of the model repository.
type SettingsRepository interface {
	SetSetting(ctx context.Context, key string, value any) error
	GetSetting(ctx context.Context, key string, dst any) error
}

// Options configures Stores.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// OnUnlock is called after an achievement was unlocked and persisted.
	OnUnlock func(Achievement)
}

// Stores owns the three application stores.
type Stores struct {
	repo SettingsRepository
	opts Options
	log  logger.Logger

	app          *store[App]
	settings     *store[Settings]
	achievements *store[Achievements]
}

// New returns stores holding defaults. Call Load to read persisted values.
func New(repo SettingsRepository, opts Options) *Stores {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Stores{
		repo:         repo,
		opts:         opts,
		log:          GetLogger(),
		app:          newStore(KeyApp, defaultApp, cloneApp),
		settings:     newStore(KeySettings, DefaultSettings, nil),
		achievements: newStore(KeyAchievements, defaultAchievements, cloneAchievements),
	}
}

// Load reads every store from the repository. Stores that were never
// persisted keep their defaults. Nothing changes in memory unless all three
// stores decode.
func (s *Stores) Load(ctx context.Context) error {
	app, err := s.app.read(ctx, s.repo)
	if err != nil {
		return err
	}
	settings, err := s.settings.read(ctx, s.repo)
	if err != nil {
		return err
	}
	achievements, err := s.achievements.read(ctx, s.repo)
	if err != nil {
		return err
	}
	s.app.set(app)
	s.settings.set(settings)
	s.achievements.set(achievements)
	return nil
}

// Reload re-reads every store after the repository contents were replaced.
func (s *Stores) Reload(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.log.Info("application stores reloaded")
	return nil
}

// Persist writes the in-memory value of every store.
func (s *Stores) Persist(ctx context.Context) error {
	if err := s.repo.SetSetting(ctx, KeyApp, s.app.get()); err != nil {
		return err
	}
	if err := s.repo.SetSetting(ctx, KeySettings, s.settings.get()); err != nil {
		return err
	}
	return s.repo.SetSetting(ctx, KeyAchievements, s.achievements.get())
}

// App returns the app store.
func (s *Stores) App() App { return s.app.get() }

// CompleteOnboarding stores the profile and marks onboarding done.
func (s *Stores) CompleteOnboarding(ctx context.Context, profile UserProfile) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	if _, err := s.app.update(ctx, s.repo, func(a *App) bool {
		a.UserProfile = &profile
		a.OnboardingComplete = true
		return true
	}); err != nil {
		return err
	}
	if profile.Role == RoleSenior {
		return s.unlockQuiet(ctx, AchievementSeniorArchitect)
	}
	return nil
}

// SetActiveModule records the selected module. An empty module clears it.
func (s *Stores) SetActiveModule(ctx context.Context, module string) error {
	_, err := s.app.update(ctx, s.repo, func(a *App) bool {
		if module == "" {
			a.ActiveModule = nil
		} else {
			a.ActiveModule = &module
		}
		return true
	})
	return err
}

// SetSidebarOpen records the sidebar state.
func (s *Stores) SetSidebarOpen(ctx context.Context, open bool) error {
	_, err := s.app.update(ctx, s.repo, func(a *App) bool {
		changed := a.IsSidebarOpen != open
		a.IsSidebarOpen = open
		return changed
	})
	return err
}

// SetLanguage switches the interface language. lang is a BCP 47 tag and is
// stored in canonical form.
func (s *Stores) SetLanguage(ctx context.Context, lang string) error {
	if lang == "" {
		return validationError("language is required", "language")
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return validationError("language must be a BCP 47 tag", "language")
	}
	lang = tag.String()
	changed, err := s.app.update(ctx, s.repo, func(a *App) bool {
		changed := a.Language != lang
		a.Language = lang
		return changed
	})
	if err != nil || !changed {
		return err
	}
	return s.unlockQuiet(ctx, AchievementLanguageLearner)
}

// SetPrimaryColor sets the accent color.
func (s *Stores) SetPrimaryColor(ctx context.Context, color string) error {
	if !isHexColor(color) {
		return validationError("color must be #RRGGBB", "primaryColor")
	}
	_, err := s.app.update(ctx, s.repo, func(a *App) bool {
		a.PrimaryColor = color
		return true
	})
	return err
}

// ResetApp clears onboarding, the active module and the profile. Language,
// sidebar and color survive.
func (s *Stores) ResetApp(ctx context.Context) error {
	_, err := s.app.update(ctx, s.repo, func(a *App) bool {
		a.OnboardingComplete = false
		a.ActiveModule = nil
		a.UserProfile = nil
		return true
	})
	return err
}

// Settings returns the user settings.
func (s *Stores) Settings() Settings { return s.settings.get() }

// UpdateSettings applies fn to a copy of the settings and persists the result.
func (s *Stores) UpdateSettings(ctx context.Context, fn func(*Settings)) error {
	var before, after AIBackend
	var invalid error
	_, err := s.settings.update(ctx, s.repo, func(st *Settings) bool {
		before = st.AI.Backend
		fn(st)
		if invalid = validateSettings(*st); invalid != nil {
			return false
		}
		after = st.AI.Backend
		return true
	})
	if invalid != nil {
		return invalid
	}
	if err != nil {
		return err
	}
	if before != BackendWebGPU && after == BackendWebGPU {
		return s.unlockQuiet(ctx, AchievementWebGPUMaster)
	}
	return nil
}

// ResetSettings restores the default settings.
func (s *Stores) ResetSettings(ctx context.Context) error {
	return s.settings.reset(ctx, s.repo)
}

// Achievements returns the achievement store.
func (s *Stores) Achievements() Achievements { return s.achievements.get() }

// Unlock marks the achievement unlocked. It reports false when id is unknown
// or already unlocked.
func (s *Stores) Unlock(ctx context.Context, id string) (bool, error) {
	var unlocked Achievement
	changed, err := s.achievements.update(ctx, s.repo, func(a *Achievements) bool {
		i := a.find(id)
		if i < 0 || a.Achievements[i].IsUnlocked {
			return false
		}
		a.Achievements[i].IsUnlocked = true
		a.Achievements[i].UnlockedAt = s.opts.Now().UnixMilli()
		unlocked = a.Achievements[i]
		return true
	})
	if err != nil || !changed {
		return false, err
	}

	s.log.Info("achievement unlocked", logger.String("id", id))
	if s.opts.OnUnlock != nil {
		s.opts.OnUnlock(unlocked)
	}
	return true, nil
}

// unlockQuiet unlocks id as a side effect of another action.
func (s *Stores) unlockQuiet(ctx context.Context, id string) error {
	if _, err := s.Unlock(ctx, id); err != nil {
		s.log.Warn("failed to unlock achievement", logger.String("id", id), logger.Error(err))
		return err
	}
	return nil
}

// ResetAchievements locks every achievement again.
func (s *Stores) ResetAchievements(ctx context.Context) error {
	return s.achievements.reset(ctx, s.repo)
}

// Snapshot is the serialized form of all stores as carried in backups.
type Snapshot struct {
	App          json.RawMessage `json:"app"`
	Settings     json.RawMessage `json:"settings"`
	Achievements json.RawMessage `json:"achievements"`
}

// Snapshot serializes every store.
func (s *Stores) Snapshot() (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.App, err = s.app.raw(); err != nil {
		return Snapshot{}, err
	}
	if snap.Settings, err = s.settings.raw(); err != nil {
		return Snapshot{}, err
	}
	if snap.Achievements, err = s.achievements.raw(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Validate decodes every present store over its defaults, the way Load
// reads it back, and checks the result. A snapshot that passes is safe to
// persist.
func (sn Snapshot) Validate() error {
	if err := validateEntry(KeyApp, sn.App, defaultApp, validateApp); err != nil {
		return err
	}
	if err := validateEntry(KeySettings, sn.Settings, DefaultSettings, validateSettings); err != nil {
		return err
	}
	return validateEntry(KeyAchievements, sn.Achievements, defaultAchievements, validateAchievements)
}

func validateEntry[T any](key string, raw json.RawMessage, defaults func() T, check func(T) error) error {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return validationError("store snapshot is not a JSON object", key)
	}
	v := defaults()
	if err := json.Unmarshal(raw, &v); err != nil {
		return validationError("store snapshot does not decode: "+err.Error(), key)
	}
	return check(v)
}

// Entries returns the repository rows that hold the snapshot verbatim.
// Absent stores are left out and fall back to defaults on reload.
func (sn Snapshot) Entries() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, 3)
	for key, raw := range map[string]json.RawMessage{
		KeyApp:          sn.App,
		KeySettings:     sn.Settings,
		KeyAchievements: sn.Achievements,
	} {
		if len(raw) > 0 {
			out[key] = raw
		}
	}
	return out
}

func validateProfile(p UserProfile) error {
	if p.Name == "" {
		return validationError("profile name is required", "name")
	}
	switch p.Role {
	case RoleJunior, RoleSenior, RoleOpenSource:
		return nil
	}
	return validationError("unknown role "+string(p.Role), "role")
}

func validateApp(a App) error {
	if a.UserProfile != nil {
		if err := validateProfile(*a.UserProfile); err != nil {
			return err
		}
	}
	if !isHexColor(a.PrimaryColor) {
		return validationError("color must be #RRGGBB", "primaryColor")
	}
	if _, err := language.Parse(a.Language); err != nil {
		return validationError("language must be a BCP 47 tag", "language")
	}
	return nil
}

func validateAchievements(a Achievements) error {
	for _, x := range a.Achievements {
		if x.ID == "" {
			return validationError("achievement id is required", "achievements")
		}
	}
	return nil
}

func validateSettings(st Settings) error {
	switch {
	case st.AI.Epochs < 1:
		return validationError("epochs must be at least 1", "ai.epochs")
	case st.AI.LearningRate <= 0:
		return validationError("learning rate must be positive", "ai.learningRate")
	case st.AI.BatchSize < 1:
		return validationError("batch size must be at least 1", "ai.batchSize")
	case st.AI.ConfidenceThreshold < 0 || st.AI.ConfidenceThreshold > 1:
		return validationError("confidence threshold must be within [0,1]", "ai.confidenceThreshold")
	case !st.AI.Backend.valid():
		return validationError("unknown backend "+string(st.AI.Backend), "ai.backend")
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("appstate").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
