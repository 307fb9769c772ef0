package datastore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kamiai/kamiai/internal/logger"
	"github.com/kamiai/kamiai/internal/observability/metrics"
)

// Repository is the persistent store for saved models, training samples and
// settings.
type Repository interface {
	// SaveModel inserts m or updates the row with the same ID. CreatedAt is
	// kept on update.
	SaveModel(ctx context.Context, m *SavedModel) error
	// GetModel returns ErrModelNotFound when id does not exist.
	GetModel(ctx context.Context, id string) (*SavedModel, error)
	GetAllModels(ctx context.Context) ([]*SavedModel, error)
	// DeleteModel removes the model and every sample that references it.
	DeleteModel(ctx context.Context, id string) error

	// SaveSample returns ErrModelNotFound when the referenced model does not exist.
	SaveSample(ctx context.Context, s *TrainingSample) error
	GetSamplesByModel(ctx context.Context, modelID string) ([]*TrainingSample, error)
	GetSamplesByClass(ctx context.Context, classID string) ([]*TrainingSample, error)
	DeleteSample(ctx context.Context, id string) error

	// SetSetting stores value as JSON under key.
	SetSetting(ctx context.Context, key string, value any) error
	// GetSetting decodes the JSON under key into dst; ErrSettingNotFound when absent.
	GetSetting(ctx context.Context, key string, dst any) error

	// FormatSystem clears every table.
	FormatSystem(ctx context.Context) error
	// ReplaceAll swaps the full contents in one transaction.
	ReplaceAll(ctx context.Context, c Contents) error
}

// Contents is a full repository image used by ReplaceAll.
type Contents struct {
	Models   []*SavedModel
	Samples  []*TrainingSample
	Settings map[string]json.RawMessage
}

// Store implements Repository on GORM. Whole-store operations hold the
// exclusive lock; ordinary mutations share it.
type Store struct {
	db      *gorm.DB
	mu      sync.RWMutex
	metrics *metrics.DatastoreMetrics
	sizeFn  func() int64
	log     logger.Logger
}

var _ Repository = (*Store)(nil)

// NewStore returns a repository over the manager's connection. m may be nil.
func NewStore(mgr *Manager, m *metrics.DatastoreMetrics) *Store {
	return &Store{
		db:      mgr.DB(),
		metrics: m,
		sizeFn:  mgr.Size,
		log:     GetLogger(),
	}
}

func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil && !isNotFound(err) {
		status = metrics.StatusError
		s.metrics.RecordError(operation, errorType(err))
	}
	s.metrics.RecordOperation(operation, status)
	s.metrics.RecordDuration(operation, time.Since(start).Seconds())
}

func (s *Store) sharedLock() func() {
	start := time.Now()
	s.mu.RLock()
	if s.metrics != nil {
		s.metrics.RecordLockWait("shared", time.Since(start).Seconds())
	}
	return s.mu.RUnlock
}

func (s *Store) exclusiveLock() func() {
	start := time.Now()
	s.mu.Lock()
	if s.metrics != nil {
		s.metrics.RecordLockWait("exclusive", time.Since(start).Seconds())
	}
	return s.mu.Unlock
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrSampleNotFound) ||
		errors.Is(err, ErrSettingNotFound)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrStorageUnavailable):
		return "storage"
	case errors.Is(err, ErrSettingCorrupt):
		return "corrupt"
	}
	return "validation"
}

// SaveModel upserts m by ID.
func (s *Store) SaveModel(ctx context.Context, m *SavedModel) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpSaveModel, start, err) }(time.Now())
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return validationError("model id is required", "id")
	}
	defer s.sharedLock()()

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "type", "classes", "serialized_dataset", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return storageError(err, metrics.OpSaveModel, "model_id", m.ID)
	}
	return nil
}

// GetModel returns the model with id.
func (s *Store) GetModel(ctx context.Context, id string) (model *SavedModel, err error) {
	defer func(start time.Time) { s.observe(metrics.OpGetModel, start, err) }(time.Now())

	var m SavedModel
	err = s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError(ErrModelNotFound, metrics.OpGetModel, id)
	}
	if err != nil {
		return nil, storageError(err, metrics.OpGetModel, "model_id", id)
	}
	return &m, nil
}

// GetAllModels returns every saved model, newest first.
func (s *Store) GetAllModels(ctx context.Context) (models []*SavedModel, err error) {
	defer func(start time.Time) { s.observe(metrics.OpListModels, start, err) }(time.Now())

	err = s.db.WithContext(ctx).Order("created_at DESC, id ASC").Find(&models).Error
	if err != nil {
		return nil, storageError(err, metrics.OpListModels)
	}
	return models, nil
}

// DeleteModel deletes the model row and its samples in one transaction.
func (s *Store) DeleteModel(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpDeleteModel, start, err) }(time.Now())
	defer s.sharedLock()()

	var modelRows, sampleRows int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&SavedModel{})
		if res.Error != nil {
			return res.Error
		}
		modelRows = res.RowsAffected

		res = tx.Where("model_id = ?", id).Delete(&TrainingSample{})
		if res.Error != nil {
			return res.Error
		}
		sampleRows = res.RowsAffected
		return nil
	})
	if err != nil {
		return storageError(err, metrics.OpDeleteModel, "model_id", id)
	}

	if sampleRows > 0 {
		s.log.Debug("deleted model samples",
			logger.String("model_id", id),
			logger.Int64("samples", sampleRows))
	}
	if modelRows == 0 {
		return notFoundError(ErrModelNotFound, metrics.OpDeleteModel, id)
	}
	return nil
}

// SaveSample upserts one training sample.
func (s *Store) SaveSample(ctx context.Context, sample *TrainingSample) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpSaveSample, start, err) }(time.Now())
	if sample == nil || sample.ID == "" || sample.ModelID == "" || sample.ClassID == "" {
		return validationError("sample id, model id and class id are required", "sample")
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = time.Now().UnixMilli()
	}
	defer s.sharedLock()()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&SavedModel{}).Where("id = ?", sample.ModelID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrModelNotFound
		}
		return tx.Save(sample).Error
	})
	if errors.Is(err, ErrModelNotFound) {
		return notFoundError(ErrModelNotFound, metrics.OpSaveSample, sample.ModelID)
	}
	if err != nil {
		return storageError(err, metrics.OpSaveSample, "sample_id", sample.ID)
	}
	return nil
}

// GetSamplesByModel returns the samples of one model ordered by timestamp.
func (s *Store) GetSamplesByModel(ctx context.Context, modelID string) ([]*TrainingSample, error) {
	return s.samplesWhere(ctx, "model_id = ?", modelID)
}

// GetSamplesByClass returns the samples of one class ordered by timestamp.
func (s *Store) GetSamplesByClass(ctx context.Context, classID string) ([]*TrainingSample, error) {
	return s.samplesWhere(ctx, "class_id = ?", classID)
}

func (s *Store) samplesWhere(ctx context.Context, query, arg string) (samples []*TrainingSample, err error) {
	defer func(start time.Time) { s.observe(metrics.OpGetSamples, start, err) }(time.Now())

	err = s.db.WithContext(ctx).Where(query, arg).Order("timestamp ASC, id ASC").Find(&samples).Error
	if err != nil {
		return nil, storageError(err, metrics.OpGetSamples, "filter", arg)
	}
	return samples, nil
}

// DeleteSample removes one sample.
func (s *Store) DeleteSample(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpDeleteSample, start, err) }(time.Now())
	defer s.sharedLock()()

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&TrainingSample{})
	if res.Error != nil {
		return storageError(res.Error, metrics.OpDeleteSample, "sample_id", id)
	}
	if res.RowsAffected == 0 {
		return notFoundError(ErrSampleNotFound, metrics.OpDeleteSample, id)
	}
	return nil
}

// SetSetting stores value as JSON under key.
func (s *Store) SetSetting(ctx context.Context, key string, value any) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpSetSetting, start, err) }(time.Now())
	if key == "" {
		return validationError("setting key is required", "key")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return validationError("setting value is not JSON serializable: "+err.Error(), key)
	}
	defer s.sharedLock()()

	err = s.db.WithContext(ctx).Save(&Setting{Key: key, Value: string(data)}).Error
	if err != nil {
		return storageError(err, metrics.OpSetSetting, "key", key)
	}
	return nil
}

// GetSetting decodes the JSON stored under key into dst.
func (s *Store) GetSetting(ctx context.Context, key string, dst any) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpGetSetting, start, err) }(time.Now())

	var row Setting
	err = s.db.WithContext(ctx).Where("setting_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError(ErrSettingNotFound, metrics.OpGetSetting, key)
	}
	if err != nil {
		return storageError(err, metrics.OpGetSetting, "key", key)
	}
	if err := json.Unmarshal([]byte(row.Value), dst); err != nil {
		return corruptError(err, metrics.OpGetSetting, key)
	}
	return nil
}

// FormatSystem deletes every row of every table. It cannot be undone.
func (s *Store) FormatSystem(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpFormat, start, err) }(time.Now())
	defer s.exclusiveLock()()

	start := time.Now()
	err = s.db.WithContext(ctx).Transaction(clearAll)
	s.recordTransaction(metrics.OpFormat, start, err)
	if err != nil {
		return storageError(err, metrics.OpFormat)
	}

	s.log.Warn("all stores cleared")
	s.refreshGauges(ctx)
	return nil
}

// ReplaceAll clears every table and inserts c inside one transaction. On
// failure the previous contents stay intact.
func (s *Store) ReplaceAll(ctx context.Context, c Contents) (err error) {
	defer func(start time.Time) { s.observe(metrics.OpReplaceAll, start, err) }(time.Now())
	if err := validateContents(c); err != nil {
		return err
	}
	defer s.exclusiveLock()()

	start := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearAll(tx); err != nil {
			return err
		}
		for _, m := range c.Models {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		for _, smp := range c.Samples {
			if err := tx.Create(smp).Error; err != nil {
				return err
			}
		}
		for key, value := range c.Settings {
			if err := tx.Create(&Setting{Key: key, Value: string(value)}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	s.recordTransaction(metrics.OpReplaceAll, start, err)
	if err != nil {
		return storageError(err, metrics.OpReplaceAll,
			"models", len(c.Models),
			"samples", len(c.Samples))
	}

	s.log.Info("store contents replaced",
		logger.Int("models", len(c.Models)),
		logger.Int("samples", len(c.Samples)),
		logger.Int("settings", len(c.Settings)))
	s.refreshGauges(ctx)
	return nil
}

func validateContents(c Contents) error {
	ids := make(map[string]struct{}, len(c.Models))
	for _, m := range c.Models {
		if m == nil || m.ID == "" {
			return validationError("model without id", "models")
		}
		if _, dup := ids[m.ID]; dup {
			return validationError("duplicate model id "+m.ID, "models")
		}
		ids[m.ID] = struct{}{}
	}
	for _, smp := range c.Samples {
		if smp == nil || smp.ID == "" {
			return validationError("sample without id", "samples")
		}
		if _, ok := ids[smp.ModelID]; !ok {
			return validationError("sample "+smp.ID+" references unknown model "+smp.ModelID, "samples")
		}
	}
	for key, value := range c.Settings {
		if !json.Valid(value) {
			return validationError("setting "+key+" is not valid JSON", "settings")
		}
	}
	return nil
}

func clearAll(tx *gorm.DB) error {
	global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, table := range allTables {
		if err := global.Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) recordTransaction(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordTransaction(operation, err == nil, time.Since(start).Seconds())
	}
}

// refreshGauges updates row count and size gauges after whole-store changes.
func (s *Store) refreshGauges(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	tables := []struct {
		name  string
		model any
	}{
		{SavedModel{}.TableName(), &SavedModel{}},
		{TrainingSample{}.TableName(), &TrainingSample{}},
		{Setting{}.TableName(), &Setting{}},
	}
	for _, t := range tables {
		var count int64
		if err := s.db.WithContext(ctx).Model(t.model).Count(&count).Error; err != nil {
			s.log.Debug("row count failed", logger.String("table", t.name), logger.Error(err))
			continue
		}
		s.metrics.UpdateTableRowCount(t.name, count)
	}
	s.metrics.UpdateDatabaseSize(s.sizeFn())
}
