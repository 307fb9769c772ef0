package appstate

import "slices"

// Achievement identifiers unlocked by the core.
const (
	AchievementFirstModel       = "first_model"
	AchievementPerfectPrecision = "perfect_precision"
	AchievementSeniorArchitect  = "senior_architect"
	AchievementDataHoarder      = "data_hoarder"
	AchievementMultitasker      = "multitasker"
	AchievementSystemFormat     = "system_format"
	AchievementWebGPUMaster     = "webgpu_master"
	AchievementLanguageLearner  = "language_learner"
	AchievementFirstError       = "first_error"
	AchievementDarkModeLover    = "dark_mode_lover"
	AchievementThe67            = "the_67"
	AchievementFatihConquest    = "fatih_conquest"
	AchievementQuickReflex      = "quick_reflex"
	AchievementBlurMaster       = "blur_master"
)

// LocalizedText holds the English and Turkish strings of an achievement.
type LocalizedText struct {
	EN string `json:"en"`
	TR string `json:"tr"`
}

// Achievement is one unlockable badge. UnlockedAt is Unix milliseconds.
type Achievement struct {
	ID          string        `json:"id"`
	Title       LocalizedText `json:"title"`
	Description LocalizedText `json:"description"`
	Icon        string        `json:"icon"`
	IsHidden    bool          `json:"isHidden"`
	IsUnlocked  bool          `json:"isUnlocked"`
	UnlockedAt  int64         `json:"unlockedAt,omitempty"`
}

// Achievements is the achievement store.
type Achievements struct {
	Achievements []Achievement `json:"achievements"`
}

func (a Achievements) find(id string) int {
	return slices.IndexFunc(a.Achievements, func(x Achievement) bool { return x.ID == id })
}

// Get returns the achievement with id.
func (a Achievements) Get(id string) (Achievement, bool) {
	if i := a.find(id); i >= 0 {
		return a.Achievements[i], true
	}
	return Achievement{}, false
}

func cloneAchievements(a Achievements) Achievements {
	return Achievements{Achievements: slices.Clone(a.Achievements)}
}

func defaultAchievements() Achievements {
	return Achievements{Achievements: slices.Clone(catalog)}
}

var catalog = []Achievement{
	{
		ID:          AchievementFirstModel,
		Title:       LocalizedText{EN: "First Steps", TR: "İlk Adımlar"},
		Description: LocalizedText{EN: "Train your first AI model.", TR: "İlk yapay zeka modelini eğit."},
		Icon:        "🚀",
	},
	{
		ID:          AchievementPerfectPrecision,
		Title:       LocalizedText{EN: "Perfect Precision", TR: "Kusursuz Keskinlik"},
		Description: LocalizedText{EN: "Achieve 100% confidence in a prediction.", TR: "Bir tahminde %100 doğruluk oranına ulaş."},
		Icon:        "🎯",
	},
	{
		ID:          AchievementSeniorArchitect,
		Title:       LocalizedText{EN: "Senior Architect", TR: "Kıdemli Mimar"},
		Description: LocalizedText{EN: "Switch your knowledge tier to Senior.", TR: "Bilgi seviyeni Kıdemli (Senior) olarak değiştir."},
		Icon:        "👑",
	},
	{
		ID:          AchievementDataHoarder,
		Title:       LocalizedText{EN: "Data Hoarder", TR: "Veri İstifçisi"},
		Description: LocalizedText{EN: "Collect 500 samples for a single class.", TR: "Tek bir sınıf için 500 örnek topla."},
		Icon:        "📦",
	},
	{
		ID:          AchievementMultitasker,
		Title:       LocalizedText{EN: "Multitasker", TR: "Çoklu Görevli"},
		Description: LocalizedText{EN: "Create 10 different AI classes.", TR: "10 farklı yapay zeka sınıfı oluştur."},
		Icon:        "🧠",
	},
	{
		ID:          AchievementSystemFormat,
		Title:       LocalizedText{EN: "Clean Slate", TR: "Temiz Bir Başlangıç"},
		Description: LocalizedText{EN: "Perform a full system format.", TR: "Tam bir sistem formatı gerçekleştir."},
		Icon:        "🧹",
	},
	{
		ID:          AchievementWebGPUMaster,
		Title:       LocalizedText{EN: "Hardware Overclocker", TR: "Donanım Canavarı"},
		Description: LocalizedText{EN: "Enable WebGPU backend for extreme performance.", TR: "Ekstrem performans için WebGPU motorunu etkinleştir."},
		Icon:        "⚡",
	},
	{
		ID:          AchievementLanguageLearner,
		Title:       LocalizedText{EN: "Polyglot Agent", TR: "Poliglot Ajan"},
		Description: LocalizedText{EN: "Switch between English and Turkish.", TR: "İngilizce ve Türkçe arasında geçiş yap."},
		Icon:        "🌍",
	},
	{
		ID:          AchievementFirstError,
		Title:       LocalizedText{EN: "Hello Darkness", TR: "Merhaba Karanlık"},
		Description: LocalizedText{EN: "Encounter your first system error.", TR: "İlk sistem hatan ile karşılaş."},
		Icon:        "⚠️",
	},
	{
		ID:          AchievementDarkModeLover,
		Title:       LocalizedText{EN: "Night Watch", TR: "Gece Nöbeti"},
		Description: LocalizedText{EN: "Activate the Midnight Depth theme.", TR: "Midnight Depth (Gece) temasını etkinleştir."},
		Icon:        "🌙",
	},

	// hidden
	{
		ID:          AchievementThe67,
		Title:       LocalizedText{EN: "The 67 Mystery", TR: "67 Gizemi"},
		Description: LocalizedText{EN: "Model confidence is wavering around 67%... are we sure about this?", TR: "Model doğruluğu %67 civarında sallanıyor... emin miyiz?"},
		Icon:        "🎲",
		IsHidden:    true,
	},
	{
		ID:          AchievementFatihConquest,
		Title:       LocalizedText{EN: "The Conqueror", TR: "Cihan Fatihi"},
		Description: LocalizedText{EN: "Scaling up the AI like a conquest on horseback.", TR: "AI atlılar ile sallana sallana fethe gidiyor!"},
		Icon:        "⚔️",
		IsHidden:    true,
	},
	{
		ID:          AchievementQuickReflex,
		Title:       LocalizedText{EN: "Speed Demon", TR: "Hız Tutkunu"},
		Description: LocalizedText{EN: "Set animation scale to 0.1x.", TR: "Animasyon hızını 0.1x olarak ayarla."},
		Icon:        "🏃",
		IsHidden:    true,
	},
	{
		ID:          AchievementBlurMaster,
		Title:       LocalizedText{EN: "Glassmorphism Addict", TR: "Buzlu Cam Bağımlısı"},
		Description: LocalizedText{EN: "Set blur intensity to maximum.", TR: "Bulanıklık yoğunluğunu maksimuma getir."},
		Icon:        "🌫️",
		IsHidden:    true,
	},
}
