package user

import (
	"strings"

	"github.com/ZJUSCT/TPServer/internal/api"
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/database/models"
	"github.com/ZJUSCT/TPServer/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createBeatmapRequest struct {
	BeatmapID  *int64   `json:"beatmap_id" binding:"required"`
	Title      string   `json:"title" binding:"required"`
	Artist     string   `json:"artist" binding:"required"`
	Creator    string   `json:"creator" binding:"required"`
	StarRating *float64 `json:"star_rating" binding:"required,min=0"`
}

// createBeatmap registers a beatmap. Registering an existing beatmap_id
// returns the stored row unchanged.
func (h *Handler) createBeatmap(c *gin.Context) {
	var req createBeatmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err)
		return
	}

	beatmap, created, err := database.GetOrCreateBeatmap(h.db.WithContext(c.Request.Context()), &models.Beatmap{
		BeatmapID:  *req.BeatmapID,
		Title:      strings.TrimSpace(req.Title),
		Artist:     strings.TrimSpace(req.Artist),
		Creator:    strings.TrimSpace(req.Creator),
		StarRating: *req.StarRating,
	})
	if err != nil {
		util.Internal(c, err)
		return
	}
	if !created {
		zap.S().Debugf("beatmap %d already registered", beatmap.BeatmapID)
	}
	util.Success(c, beatmap)
}

func (h *Handler) getBeatmap(c *gin.Context) {
	beatmapID, err := api.ParseExternalID(c, "beatmap_id")
	if err != nil {
		util.BadRequest(c, err)
		return
	}
	beatmap, err := database.GetBeatmapByExternalID(h.db.WithContext(c.Request.Context()), beatmapID)
	if err != nil {
		if database.IsNotFound(err) {
			util.NotFound(c, "Beatmap not found")
			return
		}
		util.Internal(c, err)
		return
	}
	util.Success(c, beatmap)
}
