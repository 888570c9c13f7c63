package admin

import (
	"github.com/ZJUSCT/TPServer/internal/api"
	"github.com/ZJUSCT/TPServer/internal/config"
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/metrics"
	"github.com/ZJUSCT/TPServer/internal/submission"
	"github.com/gin-gonic/gin"
)

// NewAdminRouter creates and configures the admin Gin engine. It is meant to
// listen on a private address.
func NewAdminRouter(
	cfg *config.Config,
	store *database.Store,
	submissions *submission.Service,
	m *metrics.Manager) *gin.Engine {

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.RequestIDMiddleware())
	r.Use(api.CORSMiddleware(cfg.CORS))

	if m != nil && cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	h := NewHandler(store, submissions)

	v1 := r.Group("/api/admin")
	{
		v1.GET("/stats", h.getStats)
		v1.GET("/scores/:id/verify", h.verifyScore)
	}

	return r
}
