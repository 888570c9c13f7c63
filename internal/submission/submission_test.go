package submission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZJUSCT/TPServer/internal/config"
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/database/models"
	"github.com/ZJUSCT/TPServer/internal/scoring"
	"github.com/ZJUSCT/TPServer/internal/submission"
	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"gorm.io/gorm"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[uint]*models.User
	beatmaps map[int64]*models.Beatmap
	scores   []*models.Score

	createScoreErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[uint]*models.User{},
		beatmaps: map[int64]*models.Beatmap{},
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeStore) GetOrCreateBeatmap(_ context.Context, bm *models.Beatmap) (*models.Beatmap, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.beatmaps[bm.BeatmapID]; ok {
		return existing, false, nil
	}
	stored := *bm
	stored.ID = uint(len(f.beatmaps) + 1)
	f.beatmaps[bm.BeatmapID] = &stored
	return &stored, true, nil
}

func (f *fakeStore) CreateScore(_ context.Context, s *models.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createScoreErr != nil {
		return f.createScoreErr
	}
	s.ID = uint(len(f.scores) + 1)
	f.scores = append(f.scores, s)
	return nil
}

func (f *fakeStore) GetScore(_ context.Context, id uint) (*models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.scores {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type countingRecorder struct {
	submitted int
	created   int
	last      float64
}

func (r *countingRecorder) RecordScoreSubmitted(finalValue float64, beatmapCreated bool) {
	r.submitted++
	r.last = finalValue
	if beatmapCreated {
		r.created++
	}
}

func referenceRequest(userID uint, beatmapID int64) submission.Request {
	return submission.Request{
		UserID:    userID,
		BeatmapID: beatmapID,
		RawScore:  1_000_000,
		Accuracy:  0.95,
		Count300:  300,
		Count100:  50,
		Count50:   20,
		CountMiss: 30,
		Mods:      "HD,DT",
	}
}

func TestSubmit(t *testing.T) {
	Convey("Given a store with one user", t, func() {
		ctx := context.Background()
		store := newFakeStore()
		store.users[1] = &models.User{ID: 1, Username: "testuser"}
		fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		rec := &countingRecorder{}
		svc := submission.NewService(store,
			submission.WithClock(func() time.Time { return fixed }),
			submission.WithRecorder(rec),
		)

		Convey("When the user submits on a registered 3.5 star beatmap", func() {
			store.beatmaps[1] = &models.Beatmap{ID: 7, BeatmapID: 1, Title: "Test Beatmap", StarRating: 3.5}
			score, err := svc.Submit(ctx, referenceRequest(1, 1))

			Convey("Then the derived values follow the formulas", func() {
				So(err, ShouldBeNil)
				So(score.NormalValue, ShouldAlmostEqual, 3_325_000, 1e-6)
				So(score.CustomHitValue, ShouldEqual, 105_450.0)
				So(score.FinalValue, ShouldAlmostEqual, 3_325_000, 1e-6)
			})

			Convey("And the score references the resolved rows", func() {
				So(score.ID, ShouldEqual, uint(1))
				So(score.UserID, ShouldEqual, uint(1))
				So(score.BeatmapRowID, ShouldEqual, uint(7))
				So(score.CountMiss, ShouldEqual, 30)
				So(score.Mods, ShouldEqual, "HD,DT")
				So(score.Timestamp.Equal(fixed), ShouldBeTrue)
			})

			Convey("And no beatmap is created", func() {
				So(len(store.beatmaps), ShouldEqual, 1)
				So(rec.submitted, ShouldEqual, 1)
				So(rec.created, ShouldEqual, 0)
			})
		})

		Convey("When the user submits on an unseen beatmap", func() {
			score, err := svc.Submit(ctx, referenceRequest(1, 4242))

			Convey("Then a placeholder beatmap is created with star rating 1.0", func() {
				So(err, ShouldBeNil)
				bm := store.beatmaps[4242]
				So(bm, ShouldNotBeNil)
				So(bm.Title, ShouldEqual, "Beatmap 4242")
				So(bm.Artist, ShouldEqual, "Unknown")
				So(bm.Creator, ShouldEqual, "Unknown")
				So(bm.StarRating, ShouldEqual, 1.0)
				So(score.BeatmapRowID, ShouldEqual, bm.ID)
			})

			Convey("And the normal value uses the default difficulty", func() {
				So(score.NormalValue, ShouldAlmostEqual, 950_000, 1e-6)
				So(rec.created, ShouldEqual, 1)
			})

			Convey("And a second submission reuses the beatmap", func() {
				_, err := svc.Submit(ctx, referenceRequest(1, 4242))
				So(err, ShouldBeNil)
				So(len(store.beatmaps), ShouldEqual, 1)
				So(rec.created, ShouldEqual, 1)
				So(rec.submitted, ShouldEqual, 2)
			})
		})

		Convey("When an unknown user submits", func() {
			_, err := svc.Submit(ctx, referenceRequest(99, 1))

			Convey("Then it fails with ErrUserNotFound and writes nothing", func() {
				So(errors.Is(err, submission.ErrUserNotFound), ShouldBeTrue)
				So(store.scores, ShouldBeEmpty)
				So(store.beatmaps, ShouldBeEmpty)
				So(rec.submitted, ShouldEqual, 0)
			})
		})

		Convey("When persisting the score fails", func() {
			store.createScoreErr = errors.New("disk full")
			_, err := svc.Submit(ctx, referenceRequest(1, 5))

			Convey("Then the error is returned and the beatmap remains", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, submission.ErrUserNotFound), ShouldBeFalse)
				So(store.beatmaps[5], ShouldNotBeNil)
				So(rec.submitted, ShouldEqual, 0)
			})
		})

		Convey("When the hit formula beats the raw formula", func() {
			req := referenceRequest(1, 1)
			req.RawScore = 100
			score, err := svc.Submit(ctx, req)

			Convey("Then the final value is the custom hit value", func() {
				So(err, ShouldBeNil)
				So(score.FinalValue, ShouldEqual, score.CustomHitValue)
			})
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a score stored through the database", t, func() {
		ctx := context.Background()
		db, err := database.Init(config.Storage{
			Driver: "sqlite",
			DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		})
		So(err, ShouldBeNil)
		store := database.NewStore(db)
		user := &models.User{Username: "testuser"}
		So(database.CreateUser(db, user), ShouldBeNil)
		_, _, err = database.GetOrCreateBeatmap(db, &models.Beatmap{BeatmapID: 1, Title: "Test Beatmap", StarRating: 3.5})
		So(err, ShouldBeNil)

		svc := submission.NewService(store)
		score, err := svc.Submit(ctx, referenceRequest(user.ID, 1))
		So(err, ShouldBeNil)

		Convey("Then the persisted score comes back with its user and beatmap", func() {
			So(score.User.Username, ShouldEqual, "testuser")
			So(score.Beatmap.StarRating, ShouldEqual, 3.5)
		})

		Convey("When it is recomputed unchanged", func() {
			v, err := svc.Verify(ctx, score.ID)

			Convey("Then the stored final value round-trips", func() {
				So(err, ShouldBeNil)
				So(v.Matches, ShouldBeTrue)
				So(v.Recomputed.FinalValue, ShouldEqual, score.FinalValue)
				So(v.Stored, ShouldResemble, scoring.Values{
					NormalValue:    score.NormalValue,
					CustomHitValue: score.CustomHitValue,
					FinalValue:     score.FinalValue,
				})
			})
		})

		Convey("When the beatmap's star rating is edited afterwards", func() {
			So(db.Model(&models.Beatmap{}).Where("beatmap_id = ?", 1).Update("star_rating", 5.0).Error, ShouldBeNil)
			v, err := svc.Verify(ctx, score.ID)

			Convey("Then the stored values are kept and the mismatch is reported", func() {
				So(err, ShouldBeNil)
				So(v.Matches, ShouldBeFalse)
				So(v.StarRating, ShouldEqual, 5.0)
				So(v.Stored.FinalValue, ShouldAlmostEqual, 3_325_000, 1e-6)
			})
		})

		Convey("When a missing score is verified", func() {
			_, err := svc.Verify(ctx, 999)
			So(errors.Is(err, submission.ErrScoreNotFound), ShouldBeTrue)
		})
	})
}
