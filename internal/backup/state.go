package backup

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kamiai/kamiai/internal/logger"
)

// MaxHistory is the number of backup records kept, newest first.
const MaxHistory = 20

// Provider names a backup destination.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
)

// ParseProvider validates a cloud provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderGitHub, ProviderGoogle:
		return p, nil
	}
	return "", NewError(ErrValidation, "unknown cloud provider "+s, nil)
}

// Record describes one completed backup. Timestamp is Unix milliseconds.
type Record struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Provider  Provider `json:"provider"`
	Size      int64    `json:"size"`
	Filename  string   `json:"filename"`
	Note      string   `json:"note,omitempty"`
}

// CloudAccount is a connected cloud identity. Credentials live in the
// configuration, never here.
type CloudAccount struct {
	Provider Provider `json:"provider"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	LastSync int64    `json:"lastSync,omitempty"`
}

// ScheduleState represents the state of the auto-backup schedule
type ScheduleState struct {
	LastSuccessful time.Time `json:"last_successful"`
	LastAttempted  time.Time `json:"last_attempted"`
	NextScheduled  time.Time `json:"next_scheduled"`
	FailureCount   int       `json:"failure_count"`
}

// State represents the persistent state of the backup system
type State struct {
	LastUpdate time.Time      `json:"last_update"`
	History    []Record       `json:"backup_history"`
	Accounts   []CloudAccount `json:"connected_accounts"`
	Schedule   ScheduleState  `json:"schedule"`
}

// StateManager persists backup state in its own file, outside the
// repository, so restoring a bundle never rewrites the history.
type StateManager struct {
	state     State
	statePath string
	mu        sync.RWMutex
	log       logger.Logger
}

// NewStateManager loads the state file at path. A missing file starts an
// empty history; an unreadable one is logged and replaced on the next save.
func NewStateManager(path string) (*StateManager, error) {
	if path == "" {
		return nil, NewError(ErrConfig, "backup state path is required", nil)
	}
	sm := &StateManager{statePath: path, log: GetLogger()}

	if err := sm.loadState(); err != nil {
		if os.IsNotExist(err) {
			sm.log.Info("no backup state file found, starting empty", logString("path", path))
		} else {
			sm.log.Error("failed to load backup state file", logString("path", path), logError(err))
		}
	}
	return sm, nil
}

// loadState loads the backup state from disk
func (sm *StateManager) loadState() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := os.ReadFile(sm.statePath)
	if err != nil {
		return err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	sm.state = st
	return nil
}

// saveLocked writes the state through a temp file and rename.
func (sm *StateManager) saveLocked() error {
	sm.state.LastUpdate = time.Now()
	data, err := json.MarshalIndent(sm.state, "", "  ")
	if err != nil {
		return NewError(ErrUnknown, "failed to encode backup state", err)
	}

	if err := os.MkdirAll(filepath.Dir(sm.statePath), 0o700); err != nil {
		return NewError(ErrIO, "failed to create state directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(sm.statePath), "backup-state-*.tmp")
	if err != nil {
		return NewError(ErrIO, "failed to create temporary state file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return NewError(ErrIO, "failed to write state file", err)
	}
	if err := tmp.Close(); err != nil {
		return NewError(ErrIO, "failed to close state file", err)
	}
	if err := os.Rename(tmpName, sm.statePath); err != nil {
		return NewError(ErrIO, "failed to replace state file", err)
	}
	return nil
}

// AddRecord prepends r and keeps the newest MaxHistory records.
func (sm *StateManager) AddRecord(r Record) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	history := append([]Record{r}, sm.state.History...)
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	sm.state.History = history
	return sm.saveLocked()
}

// RemoveRecord deletes the record with id. It reports false when none matched.
func (sm *StateManager) RemoveRecord(id string) (bool, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	before := len(sm.state.History)
	sm.state.History = slices.DeleteFunc(sm.state.History, func(r Record) bool { return r.ID == id })
	if len(sm.state.History) == before {
		return false, nil
	}
	return true, sm.saveLocked()
}

// History returns the records, newest first.
func (sm *StateManager) History() []Record {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return slices.Clone(sm.state.History)
}

// ConnectAccount stores acc, replacing any account of the same provider.
func (sm *StateManager) ConnectAccount(acc CloudAccount) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.state.Accounts = slices.DeleteFunc(sm.state.Accounts, func(a CloudAccount) bool { return a.Provider == acc.Provider })
	sm.state.Accounts = append(sm.state.Accounts, acc)
	return sm.saveLocked()
}

// DisconnectAccount removes the account of provider.
func (sm *StateManager) DisconnectAccount(p Provider) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.state.Accounts = slices.DeleteFunc(sm.state.Accounts, func(a CloudAccount) bool { return a.Provider == p })
	return sm.saveLocked()
}

// Accounts returns the connected accounts.
func (sm *StateManager) Accounts() []CloudAccount {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return slices.Clone(sm.state.Accounts)
}

// markSynced stamps the provider's account with the sync time, if connected.
func (sm *StateManager) markSynced(p Provider, ms int64) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i := range sm.state.Accounts {
		if sm.state.Accounts[i].Provider == p {
			sm.state.Accounts[i].LastSync = ms
			return sm.saveLocked()
		}
	}
	return nil
}

// Schedule returns the auto-backup schedule state.
func (sm *StateManager) Schedule() ScheduleState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state.Schedule
}

// UpdateSchedule applies fn to the schedule state and saves it.
func (sm *StateManager) UpdateSchedule(fn func(*ScheduleState)) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	fn(&sm.state.Schedule)
	return sm.saveLocked()
}
