package datastore

// ClassInfo is a class as stored with a saved model.
type ClassInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// SavedModel is a trained model snapshot. Timestamps are Unix milliseconds.
type SavedModel struct {
	ID                string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name              string      `gorm:"type:varchar(200);not null" json:"name"`
	Type              string      `gorm:"type:varchar(20);not null;index" json:"type"` // vision, audio or pose
	Classes           []ClassInfo `gorm:"serializer:json" json:"classes"`
	SerializedDataset string      `json:"serializedDataset,omitempty"`
	CreatedAt         int64       `gorm:"autoCreateTime:milli" json:"createdAt"`
	UpdatedAt         int64       `gorm:"autoUpdateTime:milli" json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (SavedModel) TableName() string {
	return "models"
}

// TrainingSample is one raw training frame kept with a saved model.
type TrainingSample struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ModelID   string `gorm:"type:varchar(64);not null;index:idx_samples_model" json:"modelId"`
	ClassID   string `gorm:"type:varchar(64);not null;index:idx_samples_class" json:"classId"`
	Data      []byte `json:"data"`
	Timestamp int64  `gorm:"not null" json:"timestamp"`
}

// TableName returns the table name for GORM.
func (TrainingSample) TableName() string {
	return "samples"
}

// Setting is a key/value row; Value holds JSON text.
type Setting struct {
	Key   string `gorm:"column:setting_key;primaryKey;type:varchar(128)"`
	Value string `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (Setting) TableName() string {
	return "settings"
}

// allTables lists every table in deletion order.
var allTables = []any{&TrainingSample{}, &SavedModel{}, &Setting{}}
