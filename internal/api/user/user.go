package user

import (
	"net/http"
	"strings"

	"github.com/ZJUSCT/TPServer/internal/api"
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/database/models"
	"github.com/ZJUSCT/TPServer/internal/util"
	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Username string `json:"username" binding:"required,max=64"`
}

func (h *Handler) health(c *gin.Context) {
	util.Success(c, gin.H{
		"status":  "healthy",
		"message": "TP Server is running",
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		util.BadRequest(c, "username must not be blank")
		return
	}

	user := &models.User{Username: username}
	if err := database.CreateUser(h.db.WithContext(c.Request.Context()), user); err != nil {
		if database.IsDuplicate(err) {
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "Username already exists")
			return
		}
		util.Internal(c, err)
		return
	}
	util.Success(c, user)
}

func (h *Handler) getUser(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		util.BadRequest(c, err)
		return
	}
	user, err := database.GetUserByID(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		if database.IsNotFound(err) {
			util.NotFound(c, "User not found")
			return
		}
		util.Internal(c, err)
		return
	}
	util.Success(c, user)
}

func (h *Handler) getUserScores(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		util.BadRequest(c, err)
		return
	}
	limit, err := api.ParseLimit(c, h.cfg.Leaderboard.UserScoresLimit, h.cfg.Leaderboard.MaxLimit)
	if err != nil {
		util.BadRequest(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	if _, err := database.GetUserByID(db, id); err != nil {
		if database.IsNotFound(err) {
			util.NotFound(c, "User not found")
			return
		}
		util.Internal(c, err)
		return
	}
	scores, err := database.GetScoresByUserID(db, id, limit)
	if err != nil {
		util.Internal(c, err)
		return
	}
	util.Success(c, scores)
}
