package admin

import (
	"errors"

	"github.com/ZJUSCT/TPServer/internal/api"
	"github.com/ZJUSCT/TPServer/internal/submission"
	"github.com/ZJUSCT/TPServer/internal/util"
	"github.com/gin-gonic/gin"
)

// verifyScore recomputes a stored score against its beatmap's current star
// rating. A mismatch is reported, never repaired.
func (h *Handler) verifyScore(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		util.BadRequest(c, err)
		return
	}
	v, err := h.submissions.Verify(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, submission.ErrScoreNotFound) {
			util.NotFound(c, "Score not found")
			return
		}
		util.Internal(c, err)
		return
	}
	util.Success(c, v)
}

func (h *Handler) getStats(c *gin.Context) {
	totals, err := h.store.CountTotals(c.Request.Context())
	if err != nil {
		util.Internal(c, err)
		return
	}
	util.Success(c, totals)
}
