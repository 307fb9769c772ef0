package appstate

import (
	"context"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/errors"
)

// store is one persisted application store. Updates are applied to a copy
// and only become visible once the repository accepted them.
type store[T any] struct {
	key      string
	defaults func() T
	clone    func(T) T

	mu    sync.RWMutex
	value T
}

func newStore[T any](key string, defaults func() T, clone func(T) T) *store[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &store[T]{key: key, defaults: defaults, clone: clone, value: defaults()}
}

func (s *store[T]) get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clone(s.value)
}

// update runs fn on a copy of the value. fn reports whether it changed
// anything; unchanged values are not written.
func (s *store[T]) update(ctx context.Context, repo SettingsRepository, fn func(*T) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.clone(s.value)
	if !fn(&next) {
		return false, nil
	}
	if err := repo.SetSetting(ctx, s.key, next); err != nil {
		return false, err
	}
	s.value = next
	return true, nil
}

func (s *store[T]) reset(ctx context.Context, repo SettingsRepository) error {
	_, err := s.update(ctx, repo, func(v *T) bool {
		*v = s.defaults()
		return true
	})
	return err
}

// read decodes the persisted value over the defaults, so fields missing from
// older snapshots keep their default.
func (s *store[T]) read(ctx context.Context, repo SettingsRepository) (T, error) {
	v := s.defaults()
	err := repo.GetSetting(ctx, s.key, &v)
	switch {
	case errors.Is(err, datastore.ErrSettingNotFound):
		return s.defaults(), nil
	case err != nil:
		var zero T
		return zero, err
	}
	return v, nil
}

func (s *store[T]) set(v T) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

func (s *store[T]) raw() (json.RawMessage, error) {
	data, err := json.Marshal(s.get())
	if err != nil {
		return nil, errors.New(err).
			Component("appstate").
			Category(errors.CategoryGeneric).
			Context("store", s.key).
			Build()
	}
	return data, nil
}
