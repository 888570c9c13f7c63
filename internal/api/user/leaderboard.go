package user

import (
	"github.com/ZJUSCT/TPServer/internal/api"
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/leaderboard"
	"github.com/ZJUSCT/TPServer/internal/util"
	"github.com/gin-gonic/gin"
)

func (h *Handler) getBeatmapLeaderboard(c *gin.Context) {
	beatmapID, err := api.ParseExternalID(c, "beatmap_id")
	if err != nil {
		util.BadRequest(c, err)
		return
	}
	limit, err := api.ParseLimit(c, h.cfg.Leaderboard.BeatmapLimit, h.cfg.Leaderboard.MaxLimit)
	if err != nil {
		util.BadRequest(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	beatmap, err := database.GetBeatmapByExternalID(db, beatmapID)
	if err != nil {
		if database.IsNotFound(err) {
			util.NotFound(c, "Beatmap not found")
			return
		}
		util.Internal(c, err)
		return
	}

	scores, err := database.GetTopScoresForBeatmap(db, beatmap.ID, limit)
	if err != nil {
		util.Internal(c, err)
		return
	}
	util.Success(c, leaderboard.ForBeatmap(scores))
}

func (h *Handler) getGlobalLeaderboard(c *gin.Context) {
	limit, err := api.ParseLimit(c, h.cfg.Leaderboard.GlobalLimit, h.cfg.Leaderboard.MaxLimit)
	if err != nil {
		util.BadRequest(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	users, err := database.GetAllUsers(db)
	if err != nil {
		util.Internal(c, err)
		return
	}
	values, err := database.GetFinalValuesByUser(db)
	if err != nil {
		util.Internal(c, err)
		return
	}
	util.Success(c, leaderboard.Global(users, values, limit))
}
