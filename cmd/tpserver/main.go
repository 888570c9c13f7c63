package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZJUSCT/TPServer/internal/api/admin"
	"github.com/ZJUSCT/TPServer/internal/api/user"
	"github.com/ZJUSCT/TPServer/internal/config"
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/jobs"
	"github.com/ZJUSCT/TPServer/internal/metrics"
	"github.com/ZJUSCT/TPServer/internal/submission"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var Version = "dev-build"

const shutdownTimeout = 10 * time.Second

func main() {

	fmt.Fprintf(os.Stderr, "ZJUSCT TP Server %s - Unified Scoring and Leaderboards\n\n", Version)

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	// config
	var configPath string
	flag.StringVar(&configPath, "c", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	var logger *zap.Logger
	if cfg.Logger.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// database
	db, err := database.Init(cfg.Storage)
	if err != nil {
		zap.S().Fatalf("failed to initialize database: %v", err)
	}
	zap.S().Infof("database initialized successfully (%s)", cfg.Storage.Driver)
	store := database.NewStore(db)

	// metrics
	var m *metrics.Manager
	if cfg.Metrics.Enabled {
		m = metrics.NewManager(metrics.WithHistogramBuckets(cfg.Metrics.LatencyBuckets))
	}

	opts := []submission.Option{}
	if m != nil {
		opts = append(opts, submission.WithRecorder(m))
	}
	submissions := submission.NewService(store, opts...)

	// background jobs
	var refresher *jobs.TotalsRefresher
	if m != nil {
		refresher, err = jobs.NewTotalsRefresher(store, m, cfg.Jobs.TotalsInterval)
		if err != nil {
			zap.S().Fatalf("failed to create totals refresher: %v", err)
		}
		refresher.Start()
	}

	// API routers
	servers := []*http.Server{{
		Addr:    cfg.Listen,
		Handler: user.NewUserRouter(cfg, db, submissions, m),
	}}
	if cfg.Admin.Enabled {
		servers = append(servers, &http.Server{
			Addr:    cfg.Admin.Listen,
			Handler: admin.NewAdminRouter(cfg, store, submissions, m),
		})
	}

	// start servers
	for _, srv := range servers {
		go func(srv *http.Server) {
			zap.S().Infof("starting server at %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.S().Fatalf("failed to start server at %s: %v", srv.Addr, err)
			}
		}(srv)
	}

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			zap.S().Errorf("server at %s did not shut down cleanly: %v", srv.Addr, err)
		}
	}
	if refresher != nil {
		if err := refresher.Shutdown(); err != nil {
			zap.S().Errorf("failed to stop totals refresher: %v", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zap.S().Info("server exited")
}
