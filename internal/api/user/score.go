package user

import (
	"errors"

	"github.com/ZJUSCT/TPServer/internal/submission"
	"github.com/ZJUSCT/TPServer/internal/util"
	"github.com/gin-gonic/gin"
)

// Pointer fields keep zero distinguishable from absent.
type submitScoreRequest struct {
	UserID    *uint    `json:"user_id" binding:"required"`
	BeatmapID *int64   `json:"beatmap_id" binding:"required"`
	RawScore  *int64   `json:"raw_score" binding:"required,min=0"`
	Accuracy  *float64 `json:"accuracy" binding:"required"`
	Count300  *int     `json:"count_300" binding:"required,min=0"`
	Count100  *int     `json:"count_100" binding:"required,min=0"`
	Count50   *int     `json:"count_50" binding:"required,min=0"`
	CountMiss *int     `json:"count_miss" binding:"required,min=0"`
	Mods      string   `json:"mods"`
}

func (h *Handler) submitScore(c *gin.Context) {
	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err)
		return
	}

	score, err := h.submissions.Submit(c.Request.Context(), submission.Request{
		UserID:    *req.UserID,
		BeatmapID: *req.BeatmapID,
		RawScore:  *req.RawScore,
		Accuracy:  *req.Accuracy,
		Count300:  *req.Count300,
		Count100:  *req.Count100,
		Count50:   *req.Count50,
		CountMiss: *req.CountMiss,
		Mods:      req.Mods,
	})
	if err != nil {
		if errors.Is(err, submission.ErrUserNotFound) {
			util.NotFound(c, "User not found")
			return
		}
		util.Internal(c, err)
		return
	}
	util.Success(c, score)
}
