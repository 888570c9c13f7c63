package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Beatmap is a playable chart. BeatmapID is the stable external identifier
// clients submit against; ID is the row identity scores reference.
type Beatmap struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	BeatmapID  int64   `gorm:"uniqueIndex;not null" json:"beatmap_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Creator    string  `json:"creator"`
	StarRating float64 `json:"star_rating"`
}

// Score is write-once: the derived values are computed at submission and
// never recomputed in place.
type Score struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	UserID       uint    `gorm:"index;not null" json:"user_id"`
	User         User    `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:RESTRICT" json:"user"`
	// BeatmapRowID references Beatmap.ID, not the external Beatmap.BeatmapID.
	BeatmapRowID uint    `gorm:"column:beatmap_id;index;not null" json:"beatmap_id"`
	Beatmap      Beatmap `gorm:"foreignKey:BeatmapRowID;references:ID;constraint:OnDelete:RESTRICT" json:"beatmap"`

	RawScore  int64   `json:"raw_score"`
	Accuracy  float64 `json:"accuracy"`
	Count300  int     `gorm:"column:count_300" json:"count_300"`
	Count100  int     `gorm:"column:count_100" json:"count_100"`
	Count50   int     `gorm:"column:count_50" json:"count_50"`
	CountMiss int     `gorm:"column:count_miss" json:"count_miss"`
	Mods      string  `json:"mods"`

	NormalValue    float64 `json:"normal_value"`
	CustomHitValue float64 `json:"custom_hit_value"`
	FinalValue     float64 `gorm:"index" json:"final_value"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`
}
