package database

import (
	"errors"

	"github.com/ZJUSCT/TPServer/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// scoreOrder ranks scores by final value; equal values keep the earlier
// submission first, then the lower id.
const scoreOrder = "final_value desc, timestamp asc, id asc"

// User CRUD
func CreateUser(db *gorm.DB, user *models.User) error {
	return db.Create(user).Error
}

func GetUserByID(db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAllUsers returns every user ordered by id.
func GetAllUsers(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := db.Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Beatmap CRUD
func GetBeatmapByExternalID(db *gorm.DB, beatmapID int64) (*models.Beatmap, error) {
	var beatmap models.Beatmap
	if err := db.Where("beatmap_id = ?", beatmapID).First(&beatmap).Error; err != nil {
		return nil, err
	}
	return &beatmap, nil
}

// GetOrCreateBeatmap inserts beatmap unless a row with the same external
// beatmap_id exists, then returns the stored row. The insert is a single
// ON CONFLICT DO NOTHING statement, so concurrent callers racing on the same
// id all end up with the one row that won. created reports whether this call
// inserted it.
func GetOrCreateBeatmap(db *gorm.DB, beatmap *models.Beatmap) (stored *models.Beatmap, created bool, err error) {
	candidate := *beatmap
	candidate.ID = 0

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "beatmap_id"}},
		DoNothing: true,
	}).Create(&candidate)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 && candidate.ID != 0 {
		return &candidate, true, nil
	}

	stored, err = GetBeatmapByExternalID(db, beatmap.BeatmapID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// Score CRUD

// CreateScore inserts score without touching its associations and reloads
// it with User and Beatmap populated.
func CreateScore(db *gorm.DB, score *models.Score) error {
	if err := db.Omit(clause.Associations).Create(score).Error; err != nil {
		return err
	}
	return db.Preload("User").Preload("Beatmap").First(score, score.ID).Error
}

func GetScore(db *gorm.DB, id uint) (*models.Score, error) {
	var score models.Score
	if err := db.Preload("User").Preload("Beatmap").Where("id = ?", id).First(&score).Error; err != nil {
		return nil, err
	}
	return &score, nil
}

// GetTopScoresForBeatmap returns at most limit scores on the beatmap row,
// best first.
func GetTopScoresForBeatmap(db *gorm.DB, beatmapRowID uint, limit int) ([]models.Score, error) {
	var scores []models.Score
	err := db.Preload("User").Preload("Beatmap").
		Where("beatmap_id = ?", beatmapRowID).
		Order(scoreOrder).
		Limit(limit).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// GetScoresByUserID returns at most limit of the user's scores, best first.
func GetScoresByUserID(db *gorm.DB, userID uint, limit int) ([]models.Score, error) {
	var scores []models.Score
	err := db.Preload("User").Preload("Beatmap").
		Where("user_id = ?", userID).
		Order(scoreOrder).
		Limit(limit).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// GetFinalValuesByUser loads every score's final value in one query, grouped
// by user id. Users without scores are absent from the map.
func GetFinalValuesByUser(db *gorm.DB) (map[uint][]float64, error) {
	type valueRow struct {
		UserID     uint
		FinalValue float64
	}
	var rows []valueRow
	if err := db.Model(&models.Score{}).Select("user_id, final_value").Scan(&rows).Error; err != nil {
		return nil, err
	}

	values := make(map[uint][]float64)
	for _, row := range rows {
		values[row.UserID] = append(values[row.UserID], row.FinalValue)
	}
	return values, nil
}

// Totals counts rows per relation.
type Totals struct {
	Users    int64 `json:"users"`
	Beatmaps int64 `json:"beatmaps"`
	Scores   int64 `json:"scores"`
}

func CountTotals(db *gorm.DB) (Totals, error) {
	var t Totals
	if err := db.Model(&models.User{}).Count(&t.Users).Error; err != nil {
		return Totals{}, err
	}
	if err := db.Model(&models.Beatmap{}).Count(&t.Beatmaps).Error; err != nil {
		return Totals{}, err
	}
	if err := db.Model(&models.Score{}).Count(&t.Scores).Error; err != nil {
		return Totals{}, err
	}
	return t, nil
}

// IsNotFound reports whether err is gorm's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
