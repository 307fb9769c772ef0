package backup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamiai/kamiai/internal/appstate"
	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/logger"
	"github.com/kamiai/kamiai/internal/observability/metrics"
)

// Target is a destination that stores one named bundle file.
type Target interface {
	// Name returns the name of the target
	Name() string
	// Store writes data under filename, replacing an existing file of that name
	Store(ctx context.Context, filename string, data []byte) error
	// Validate validates the target configuration
	Validate() error
}

// Repository is the part of the model repository a backup needs.
type Repository interface {
	GetAllModels(ctx context.Context) ([]*datastore.SavedModel, error)
	GetSamplesByModel(ctx context.Context, modelID string) ([]*datastore.TrainingSample, error)
	ReplaceAll(ctx context.Context, c datastore.Contents) error
}

// Stores are the application stores carried in a bundle.
type Stores interface {
	Snapshot() (appstate.Snapshot, error)
	Reload(ctx context.Context) error
}

// Config holds backup behaviour settings.
type Config struct {
	// Encrypt seals exported and synced bundles with Passphrase.
	Encrypt    bool
	Passphrase string
	// Timeout bounds one export or sync; zero means no limit.
	Timeout time.Duration
}

// Options wires a Manager.
type Options struct {
	Config Config
	Repo   Repository
	Stores Stores
	State  *StateManager
	// Local receives DownloadToLocal exports.
	Local Target
	// Cloud holds the configured sync targets.
	Cloud   map[Provider]Target
	Metrics *metrics.BackupMetrics
	// OnRestore runs after a restore swapped the stores, to drop state
	// derived from the old contents (module session, workspace).
	OnRestore func(ctx context.Context) error
	// OnResult is told about every finished local backup, sync and restore.
	OnResult func(Result)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result describes a finished local backup, cloud sync or restore. Op is
// one of metrics.OpBackupLocal, metrics.OpBackupSync and metrics.OpRestore.
type Result struct {
	Op       string
	Provider Provider
	Record   Record
	Err      error
}

// Manager builds bundles and moves them between the repository and targets.
type Manager struct {
	opts Options
	log  logger.Logger

	// opMu keeps bundle reads from observing a restore half way.
	opMu    sync.RWMutex
	syncMu  sync.Mutex
	syncing atomic.Bool
}

// NewManager returns a backup manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Repo == nil || opts.Stores == nil || opts.State == nil {
		return nil, NewError(ErrConfig, "backup manager needs a repository, stores and state", nil)
	}
	if opts.Config.Encrypt && opts.Config.Passphrase == "" {
		return nil, NewError(ErrConfig, "encryption is enabled but no passphrase is set", nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for p, t := range opts.Cloud {
		if err := t.Validate(); err != nil {
			return nil, NewError(ErrConfig, fmt.Sprintf("invalid %s target", p), err)
		}
	}
	return &Manager{opts: opts, log: GetLogger()}, nil
}

// State returns the history and account store.
func (m *Manager) State() *StateManager { return m.opts.State }

// IsSyncing reports whether a cloud sync is running.
func (m *Manager) IsSyncing() bool { return m.syncing.Load() }

// CreateBundle reads every model, then the samples of each model, and the
// application stores.
func (m *Manager) CreateBundle(ctx context.Context) (*Bundle, error) {
	m.opMu.RLock()
	defer m.opMu.RUnlock()

	models, err := m.opts.Repo.GetAllModels(ctx)
	if err != nil {
		return nil, NewError(ErrDatabase, "failed to read models", err)
	}
	samples := []*datastore.TrainingSample{}
	for _, model := range models {
		s, err := m.opts.Repo.GetSamplesByModel(ctx, model.ID)
		if err != nil {
			return nil, NewError(ErrDatabase, "failed to read samples of "+model.ID, err)
		}
		samples = append(samples, s...)
	}
	if models == nil {
		models = []*datastore.SavedModel{}
	}

	snap, err := m.opts.Stores.Snapshot()
	if err != nil {
		return nil, NewError(ErrUnknown, "failed to snapshot application stores", err)
	}

	return &Bundle{
		Version:   BundleVersion,
		Timestamp: m.opts.Now().UnixMilli(),
		Stores:    snap,
		Database:  Database{Models: models, Samples: samples},
	}, nil
}

// Export builds a bundle and returns its file name and serialized (and,
// when configured, encrypted) bytes.
func (m *Manager) Export(ctx context.Context) (filename string, data []byte, err error) {
	defer m.observe(metrics.OpBackupExport, time.Now(), &err)

	b, err := m.CreateBundle(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err = m.encode(b)
	if err != nil {
		return "", nil, err
	}
	return m.localFilename(), data, nil
}

func (m *Manager) encode(b *Bundle) ([]byte, error) {
	data, err := EncodeBundle(b)
	if err != nil {
		return nil, err
	}
	if m.opts.Config.Encrypt {
		return encryptBundle(data, m.opts.Config.Passphrase)
	}
	return data, nil
}

func (m *Manager) extension() string {
	if m.opts.Config.Encrypt {
		return EncryptedExtension
	}
	return Extension
}

// localFilename is kamiai_backup_YYYY-MM-DD with the bundle extension.
func (m *Manager) localFilename() string {
	return "kamiai_backup_" + m.opts.Now().UTC().Format(time.DateOnly) + m.extension()
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.Config.Timeout > 0 {
		return context.WithTimeout(ctx, m.opts.Config.Timeout)
	}
	return context.WithCancel(ctx)
}

// DownloadToLocal writes a bundle to the local target and records it.
func (m *Manager) DownloadToLocal(ctx context.Context) (rec Record, err error) {
	defer m.observe(metrics.OpBackupLocal, time.Now(), &err)
	defer func() { m.report(Result{Op: metrics.OpBackupLocal, Provider: ProviderLocal, Record: rec, Err: err}) }()
	if m.opts.Local == nil {
		return Record{}, NewError(ErrConfig, "no local backup target configured", nil)
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	b, err := m.CreateBundle(ctx)
	if err != nil {
		return Record{}, err
	}
	data, err := m.encode(b)
	if err != nil {
		return Record{}, err
	}

	filename := m.localFilename()
	if err := m.opts.Local.Store(ctx, filename, data); err != nil {
		return Record{}, contextError(err, ErrIO, "failed to write local backup")
	}

	now := m.opts.Now().UnixMilli()
	rec = Record{
		ID:        fmt.Sprintf("local-%d", now),
		Timestamp: now,
		Provider:  ProviderLocal,
		Size:      int64(len(data)),
		Filename:  filename,
	}
	if err := m.opts.State.AddRecord(rec); err != nil {
		return Record{}, err
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordBundle(string(ProviderLocal), rec.Size)
	}

	m.log.Info("local backup written",
		logString("filename", filename),
		logInt64("size", rec.Size),
		logInt("models", len(b.Database.Models)),
		logInt("samples", len(b.Database.Samples)))
	return rec, nil
}

// SyncWithCloud uploads a bundle to the provider's target. Only one sync
// runs at a time; a concurrent caller gets ErrSyncInProgress.
func (m *Manager) SyncWithCloud(ctx context.Context, provider Provider) (rec Record, err error) {
	target, ok := m.opts.Cloud[provider]
	if !ok {
		return Record{}, NewError(ErrConfig, fmt.Sprintf("cloud provider %q is not configured", provider), nil)
	}
	if !m.syncMu.TryLock() {
		return Record{}, ErrSyncInProgress
	}
	defer m.syncMu.Unlock()
	defer m.observe(metrics.OpBackupSync, time.Now(), &err)
	defer func() { m.report(Result{Op: metrics.OpBackupSync, Provider: provider, Record: rec, Err: err}) }()

	m.setSyncing(true)
	defer m.setSyncing(false)

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	b, err := m.CreateBundle(ctx)
	if err != nil {
		return Record{}, err
	}
	data, err := m.encode(b)
	if err != nil {
		return Record{}, err
	}

	filename := fmt.Sprintf("cloud_sync_%s%s", provider, m.extension())
	if err := target.Store(ctx, filename, data); err != nil {
		return Record{}, contextError(err, ErrNetwork, "failed to upload to "+target.Name())
	}

	now := m.opts.Now().UnixMilli()
	rec = Record{
		ID:        fmt.Sprintf("%s-%d", provider, now),
		Timestamp: now,
		Provider:  provider,
		Size:      int64(len(data)),
		Filename:  filename,
	}
	if err := m.opts.State.AddRecord(rec); err != nil {
		return Record{}, err
	}
	if err := m.opts.State.markSynced(provider, now); err != nil {
		m.log.Warn("failed to update account sync time", logString("provider", string(provider)), logError(err))
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordBundle(string(provider), rec.Size)
	}

	m.log.Info("cloud sync complete",
		logString("provider", string(provider)),
		logString("filename", filename),
		logInt64("size", rec.Size))
	return rec, nil
}

func (m *Manager) setSyncing(active bool) {
	m.syncing.Store(active)
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetSyncInProgress(active)
	}
}

// RestoreFromBundle validates b, swaps the repository contents (models,
// samples and store rows) in one transaction, reloads the application stores
// and runs the OnRestore hook. A bundle that fails validation changes nothing.
// Failures after the swap are reported, the repository stays consistent.
func (m *Manager) RestoreFromBundle(ctx context.Context, b *Bundle) (err error) {
	defer m.observe(metrics.OpRestore, time.Now(), &err)
	defer func() { m.report(Result{Op: metrics.OpRestore, Err: err}) }()
	if err := b.Validate(); err != nil {
		return err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.opts.Repo.ReplaceAll(ctx, b.Contents()); err != nil {
		return NewError(ErrDatabase, "failed to replace repository contents", err)
	}
	if err := m.opts.Stores.Reload(ctx); err != nil {
		return NewError(ErrDatabase, "repository restored but application stores failed to reload", err)
	}
	if m.opts.OnRestore != nil {
		if err := m.opts.OnRestore(ctx); err != nil {
			return NewError(ErrUnknown, "repository restored but reload hook failed", err)
		}
	}

	m.log.Info("bundle restored",
		logString("version", b.Version),
		logInt64("bundle_timestamp", b.Timestamp),
		logInt("models", len(b.Database.Models)),
		logInt("samples", len(b.Database.Samples)))
	return nil
}

// ImportBytes decodes a plain or encrypted bundle and restores it.
func (m *Manager) ImportBytes(ctx context.Context, data []byte) (err error) {
	defer m.observe(metrics.OpImport, time.Now(), &err)

	if IsEncrypted(data) {
		if data, err = decryptBundle(data, m.opts.Config.Passphrase); err != nil {
			return err
		}
	}
	b, err := DecodeBundle(data)
	if err != nil {
		return err
	}
	return m.RestoreFromBundle(ctx, b)
}

// ImportFile reads a .kami or .kami.enc file and restores it.
func (m *Manager) ImportFile(ctx context.Context, path string) error {
	if !strings.HasSuffix(path, Extension) && !strings.HasSuffix(path, EncryptedExtension) {
		m.log.Warn("importing file without bundle extension", logString("path", path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewError(ErrNotFound, "backup file not found", err)
		}
		return NewError(ErrIO, "failed to read backup file", err)
	}
	return m.ImportBytes(ctx, data)
}

// RemoveBackupRecord deletes a history entry.
func (m *Manager) RemoveBackupRecord(id string) error {
	removed, err := m.opts.State.RemoveRecord(id)
	if err != nil {
		return err
	}
	if !removed {
		return NewError(ErrNotFound, "backup record "+id+" not found", nil)
	}
	return nil
}

func (m *Manager) report(r Result) {
	if m.opts.OnResult != nil {
		m.opts.OnResult(r)
	}
}

// observe records the outcome of op. errp is read when the deferred call runs.
func (m *Manager) observe(op string, start time.Time, errp *error) {
	if m.opts.Metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err := *errp; err != nil {
		status = metrics.StatusError
		m.opts.Metrics.RecordError(op, CodeOf(err).String())
	}
	m.opts.Metrics.RecordOperation(op, status)
	m.opts.Metrics.RecordDuration(op, time.Since(start).Seconds())
}
