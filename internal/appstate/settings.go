package appstate

// AIBackend is the preferred compute backend shown to the user.
type AIBackend string

const (
	BackendWebGPU AIBackend = "webgpu"
	BackendWASM   AIBackend = "wasm"
	BackendCPU    AIBackend = "cpu"
)

// AISettings are the training preferences.
type AISettings struct {
	Epochs              int       `json:"epochs"`
	LearningRate        float64   `json:"learningRate"`
	BatchSize           int       `json:"batchSize"`
	ConfidenceThreshold float64   `json:"confidenceThreshold"`
	Backend             AIBackend `json:"backend"`
}

// NotificationSettings toggle feedback channels.
type NotificationSettings struct {
	VoiceFeedback bool `json:"voiceFeedback"`
	SoundEffects  bool `json:"soundEffects"`
	VisualAlerts  bool `json:"visualAlerts"`
}

// SystemSettings are host level preferences.
type SystemSettings struct {
	HardwareAcceleration bool `json:"hardwareAcceleration"`
	AutoSaveModels       bool `json:"autoSaveModels"`
	TelemetryEnabled     bool `json:"telemetryEnabled"`
}

// Settings is the user preference store.
type Settings struct {
	AI            AISettings           `json:"ai"`
	Notifications NotificationSettings `json:"notifications"`
	System        SystemSettings       `json:"system"`
}

// DefaultSettings returns the preferences of a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		AI: AISettings{
			Epochs:              10,
			LearningRate:        0.001,
			BatchSize:           16,
			ConfidenceThreshold: 0.7,
			Backend:             BackendWebGPU,
		},
		Notifications: NotificationSettings{
			VoiceFeedback: true,
			SoundEffects:  true,
			VisualAlerts:  true,
		},
		System: SystemSettings{
			HardwareAcceleration: true,
			AutoSaveModels:       true,
			TelemetryEnabled:     false,
		},
	}
}

func (b AIBackend) valid() bool {
	switch b {
	case BackendWebGPU, BackendWASM, BackendCPU:
		return true
	}
	return false
}
