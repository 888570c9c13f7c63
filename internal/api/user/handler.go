package user

import (
	"github.com/ZJUSCT/TPServer/internal/config"
	"github.com/ZJUSCT/TPServer/internal/submission"
	"gorm.io/gorm"
)

// Handler holds all dependencies for the public API handlers.
type Handler struct {
	cfg         *config.Config
	db          *gorm.DB
	submissions *submission.Service
}

// NewHandler creates a new public handler with its dependencies.
func NewHandler(cfg *config.Config, db *gorm.DB, submissions *submission.Service) *Handler {
	return &Handler{
		cfg:         cfg,
		db:          db,
		submissions: submissions,
	}
}
