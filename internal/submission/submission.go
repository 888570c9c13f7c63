// Package submission turns a score submission into a persisted Score.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZJUSCT/TPServer/internal/database/models"
	"github.com/ZJUSCT/TPServer/internal/scoring"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Placeholder metadata for beatmaps first seen through a submission.
const (
	PlaceholderArtist     = "Unknown"
	PlaceholderCreator    = "Unknown"
	PlaceholderStarRating = 1.0
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrScoreNotFound = errors.New("score not found")
)

// Store is the persistence the orchestrator needs. GetOrCreateBeatmap must be
// safe under concurrent callers for the same external beatmap id.
type Store interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetOrCreateBeatmap(ctx context.Context, beatmap *models.Beatmap) (*models.Beatmap, bool, error)
	CreateScore(ctx context.Context, score *models.Score) error
	GetScore(ctx context.Context, id uint) (*models.Score, error)
}

// Recorder observes successful submissions.
type Recorder interface {
	RecordScoreSubmitted(finalValue float64, beatmapCreated bool)
}

// Request is a validated submission.
type Request struct {
	UserID    uint
	BeatmapID int64
	RawScore  int64
	Accuracy  float64
	Count300  int
	Count100  int
	Count50   int
	CountMiss int
	Mods      string
}

type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

type Service struct {
	store    Store
	recorder Recorder
	now      func() time.Time
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceholderBeatmap is the row created for an unseen external beatmap id.
func PlaceholderBeatmap(beatmapID int64) *models.Beatmap {
	return &models.Beatmap{
		BeatmapID:  beatmapID,
		Title:      fmt.Sprintf("Beatmap %d", beatmapID),
		Artist:     PlaceholderArtist,
		Creator:    PlaceholderCreator,
		StarRating: PlaceholderStarRating,
	}
}

// Submit resolves the user, resolves or creates the beatmap, scores the play
// and persists it. Users are never created here. A beatmap created on the
// way stays even if a later step fails.
func (s *Service) Submit(ctx context.Context, req Request) (*models.Score, error) {
	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, req.UserID)
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	beatmap, created, err := s.store.GetOrCreateBeatmap(ctx, PlaceholderBeatmap(req.BeatmapID))
	if err != nil {
		return nil, fmt.Errorf("resolve beatmap %d: %w", req.BeatmapID, err)
	}
	if created {
		zap.S().Infof("created placeholder beatmap %d on first submission", req.BeatmapID)
	}

	values := scoring.Compute(scoring.Input{
		RawScore:   req.RawScore,
		Accuracy:   req.Accuracy,
		Count300:   req.Count300,
		Count100:   req.Count100,
		Count50:    req.Count50,
		StarRating: beatmap.StarRating,
	})

	score := &models.Score{
		UserID:         user.ID,
		BeatmapRowID:   beatmap.ID,
		RawScore:       req.RawScore,
		Accuracy:       req.Accuracy,
		Count300:       req.Count300,
		Count100:       req.Count100,
		Count50:        req.Count50,
		CountMiss:      req.CountMiss,
		Mods:           req.Mods,
		NormalValue:    values.NormalValue,
		CustomHitValue: values.CustomHitValue,
		FinalValue:     values.FinalValue,
		Timestamp:      s.now(),
	}
	if err := s.store.CreateScore(ctx, score); err != nil {
		return nil, fmt.Errorf("persist score: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordScoreSubmitted(score.FinalValue, created)
	}
	zap.S().Debugf("user %d scored %.2f on beatmap %d", user.ID, score.FinalValue, req.BeatmapID)
	return score, nil
}

// Verification compares a stored score with a fresh computation from its raw
// fields and the beatmap's current star rating.
type Verification struct {
	ScoreID    uint           `json:"score_id"`
	StarRating float64        `json:"star_rating"`
	Stored     scoring.Values `json:"stored"`
	Recomputed scoring.Values `json:"recomputed"`
	Matches    bool           `json:"matches"`
}

// Verify recomputes a stored score. Star ratings are not versioned, so a
// mismatch after a beatmap edit is expected; the stored values stay
// authoritative.
func (s *Service) Verify(ctx context.Context, scoreID uint) (*Verification, error) {
	score, err := s.store.GetScore(ctx, scoreID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrScoreNotFound, scoreID)
		}
		return nil, err
	}

	stored := scoring.Values{
		NormalValue:    score.NormalValue,
		CustomHitValue: score.CustomHitValue,
		FinalValue:     score.FinalValue,
	}
	recomputed := scoring.Compute(scoring.Input{
		RawScore:   score.RawScore,
		Accuracy:   score.Accuracy,
		Count300:   score.Count300,
		Count100:   score.Count100,
		Count50:    score.Count50,
		StarRating: score.Beatmap.StarRating,
	})

	return &Verification{
		ScoreID:    score.ID,
		StarRating: score.Beatmap.StarRating,
		Stored:     stored,
		Recomputed: recomputed,
		Matches:    stored == recomputed,
	}, nil
}
