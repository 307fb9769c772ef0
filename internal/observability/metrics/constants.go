// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names recorded by the repository.
const (
	// OpSaveModel is an upsert of a saved model.
	OpSaveModel = "save_model"
	// OpGetModel is a point read of a saved model.
	OpGetModel = "get_model"
	// OpListModels is a full scan of saved models.
	OpListModels = "list_models"
	// OpDeleteModel deletes a model and its samples.
	OpDeleteModel = "delete_model"
	// OpSaveSample stores one training sample.
	OpSaveSample = "save_sample"
	// OpGetSamples reads samples by model or class.
	OpGetSamples = "get_samples"
	// OpDeleteSample removes one training sample.
	OpDeleteSample = "delete_sample"
	// OpGetSetting reads a settings key.
	OpGetSetting = "get_setting"
	// OpSetSetting writes a settings key.
	OpSetSetting = "set_setting"
	// OpFormat clears every store.
	OpFormat = "format"
	// OpReplaceAll swaps the full store contents in one transaction.
	OpReplaceAll = "replace_all"
)

// Operation names recorded by the vision pipeline and backup service.
const (
	OpModelLoad  = "model_load"
	OpExtract    = "extract"
	OpPredict    = "predict"
	OpAddExample = "add_example"

	OpBackupExport = "export"
	OpBackupLocal  = "local"
	OpBackupSync   = "sync"
	OpRestore      = "restore"
	OpImport       = "import"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart1KB is the starting bucket for 1KB histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	BucketFactor2 = 2
	BucketFactor4 = 4

	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)

// ShutdownTimeout bounds graceful shutdown of metric consumers.
const ShutdownTimeout = 5 * time.Second
