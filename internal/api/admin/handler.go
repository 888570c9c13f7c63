package admin

import (
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/submission"
)

// Handler holds all dependencies for the admin API handlers.
type Handler struct {
	store       *database.Store
	submissions *submission.Service
}

// NewHandler creates a new admin handler with its dependencies.
func NewHandler(store *database.Store, submissions *submission.Service) *Handler {
	return &Handler{
		store:       store,
		submissions: submissions,
	}
}
