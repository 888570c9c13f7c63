// Command tpclient runs a smoke test against a running TP server: health,
// user and beatmap registration, a score submission and the leaderboards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ZJUSCT/TPServer/internal/database/models"
	"github.com/ZJUSCT/TPServer/internal/leaderboard"
	"github.com/ZJUSCT/TPServer/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		baseURL   string
		username  string
		beatmapID int64
		burst     int
		timeout   time.Duration
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8000", "server base URL")
	flag.StringVar(&username, "user", "testuser", "username to create or reuse")
	flag.Int64Var(&beatmapID, "beatmap", 1, "external beatmap id to register")
	flag.IntVar(&burst, "burst", 0, "concurrent submissions against one unseen beatmap")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(context.Background(), newClient(baseURL, timeout), username, beatmapID, burst); err != nil {
		zap.S().Errorf("smoke test failed: %v", err)
		os.Exit(1)
	}
	zap.S().Info("smoke test completed")
}

func run(ctx context.Context, c *client, username string, beatmapID int64, burst int) error {
	var health map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &health); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	zap.S().Infof("health: %s (%s)", health["status"], health["message"])

	user, err := ensureUser(ctx, c, username)
	if err != nil {
		return err
	}
	zap.S().Infof("user: id=%d username=%s", user.ID, user.Username)

	var beatmap models.Beatmap
	err = c.do(ctx, http.MethodPost, "/api/beatmaps", map[string]interface{}{
		"beatmap_id":  beatmapID,
		"title":       "Test Beatmap",
		"artist":      "Test Artist",
		"creator":     "Test Creator",
		"star_rating": 3.5,
	}, &beatmap)
	if err != nil {
		return fmt.Errorf("register beatmap: %w", err)
	}
	zap.S().Infof("beatmap: %d %q %.2f stars", beatmap.BeatmapID, beatmap.Title, beatmap.StarRating)

	score, err := submit(ctx, c, user.ID, beatmap.BeatmapID)
	if err != nil {
		return err
	}
	zap.S().Infof("score: id=%d normal=%.2f custom=%.2f final=%.2f",
		score.ID, score.NormalValue, score.CustomHitValue, score.FinalValue)

	var board []leaderboard.BeatmapEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/leaderboards/beatmap/%d", beatmap.BeatmapID), nil, &board); err != nil {
		return fmt.Errorf("beatmap leaderboard: %w", err)
	}
	for _, e := range board {
		zap.S().Infof("#%d %s %.2f", e.Rank, e.Username, e.FinalValue)
	}

	if burst > 0 {
		if err := runBurst(ctx, c, user.ID, burst); err != nil {
			return err
		}
	}

	var global []leaderboard.GlobalEntry
	if err := c.do(ctx, http.MethodGet, "/api/leaderboards/global?limit=10", nil, &global); err != nil {
		return fmt.Errorf("global leaderboard: %w", err)
	}
	for _, e := range global {
		zap.S().Infof("global #%d %s %.2f over %d scores", e.Rank, e.Username, e.GlobalScore, e.ScoreCount)
	}
	return nil
}

// lookupLimit is how many global leaderboard entries ensureUser scans.
var lookupLimit = 1000

// ensureUser creates the user, or finds it on the global leaderboard when the
// name is already taken.
func ensureUser(ctx context.Context, c *client, username string) (*models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodPost, "/api/users", map[string]string{"username": username}, &user)
	if err == nil {
		return &user, nil
	}
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Code != util.CodeConflict {
		return nil, fmt.Errorf("create user: %w", err)
	}

	var global []leaderboard.GlobalEntry
	path := fmt.Sprintf("/api/leaderboards/global?limit=%d", lookupLimit)
	if err := c.do(ctx, http.MethodGet, path, nil, &global); err != nil {
		return nil, fmt.Errorf("look up existing user: %w", err)
	}
	for _, e := range global {
		if e.Username == username {
			return &models.User{ID: e.UserID, Username: e.Username}, nil
		}
	}
	return nil, fmt.Errorf("user %q exists but is not among the first %d global leaderboard entries", username, lookupLimit)
}

func submit(ctx context.Context, c *client, userID uint, beatmapID int64) (*models.Score, error) {
	var score models.Score
	err := c.do(ctx, http.MethodPost, "/api/scores/submit", map[string]interface{}{
		"user_id":    userID,
		"beatmap_id": beatmapID,
		"raw_score":  1000000,
		"accuracy":   0.95,
		"count_300":  300,
		"count_100":  50,
		"count_50":   20,
		"count_miss": 30,
		"mods":       "HD,DT",
	}, &score)
	if err != nil {
		return nil, fmt.Errorf("submit score: %w", err)
	}
	return &score, nil
}

// runBurst submits n scores at once against a fresh beatmap id and checks
// that they all land on the same auto-created beatmap.
func runBurst(ctx context.Context, c *client, userID uint, n int) error {
	beatmapID := time.Now().UnixNano()
	rows := make([]uint, n)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			score, err := submit(gCtx, c, userID, beatmapID)
			if err != nil {
				return err
			}
			rows[i] = score.BeatmapRowID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("burst: %w", err)
	}

	for _, row := range rows[1:] {
		if row != rows[0] {
			return fmt.Errorf("burst: beatmap %d resolved to rows %d and %d", beatmapID, rows[0], row)
		}
	}
	zap.S().Infof("burst: %d concurrent submissions shared beatmap row %d", n, rows[0])
	return nil
}
