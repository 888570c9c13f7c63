package database

import (
	"context"

	"github.com/ZJUSCT/TPServer/internal/database/models"
	"gorm.io/gorm"
)

// Store binds the CRUD helpers to a request context.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return GetUserByID(s.DB(ctx), id)
}

func (s *Store) GetOrCreateBeatmap(ctx context.Context, beatmap *models.Beatmap) (*models.Beatmap, bool, error) {
	return GetOrCreateBeatmap(s.DB(ctx), beatmap)
}

func (s *Store) CreateScore(ctx context.Context, score *models.Score) error {
	return CreateScore(s.DB(ctx), score)
}

func (s *Store) GetScore(ctx context.Context, id uint) (*models.Score, error) {
	return GetScore(s.DB(ctx), id)
}

func (s *Store) CountTotals(ctx context.Context) (Totals, error) {
	return CountTotals(s.DB(ctx))
}
