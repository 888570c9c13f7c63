package user

import (
	"github.com/ZJUSCT/TPServer/internal/api"
	"github.com/ZJUSCT/TPServer/internal/config"
	"github.com/ZJUSCT/TPServer/internal/metrics"
	"github.com/ZJUSCT/TPServer/internal/submission"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewUserRouter creates and configures the public Gin engine. m may be nil
// to disable instrumentation.
func NewUserRouter(
	cfg *config.Config,
	db *gorm.DB,
	submissions *submission.Service,
	m *metrics.Manager) *gin.Engine {

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.RequestIDMiddleware())
	r.Use(api.CORSMiddleware(cfg.CORS))
	if m != nil && cfg.Metrics.Enabled {
		r.Use(api.MetricsMiddleware(m))
		// Without an admin engine the scrape endpoint lives here.
		if !cfg.Admin.Enabled {
			r.GET("/metrics", gin.WrapH(m.Handler()))
		}
	}

	h := NewHandler(cfg, db, submissions)

	v1 := r.Group("/api")
	{
		v1.GET("/health", h.health)

		// Users
		users := v1.Group("/users")
		{
			users.POST("", h.createUser)
			users.GET("/:id", h.getUser)
			users.GET("/:id/scores", h.getUserScores)
		}

		// Beatmaps
		beatmaps := v1.Group("/beatmaps")
		{
			beatmaps.POST("", h.createBeatmap)
			beatmaps.GET("/:beatmap_id", h.getBeatmap)
		}

		v1.POST("/scores/submit", h.submitScore)

		// Leaderboards
		leaderboards := v1.Group("/leaderboards")
		{
			leaderboards.GET("/beatmap/:beatmap_id", h.getBeatmapLeaderboard)
			leaderboards.GET("/global", h.getGlobalLeaderboard)
		}
	}

	return r
}
