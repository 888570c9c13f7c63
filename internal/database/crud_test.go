package database_test

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZJUSCT/TPServer/internal/config"
	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/ZJUSCT/TPServer/internal/database/models"
	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.Storage{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("init database: %v", err)
	}
	return db
}

func mustUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name}
	if err := database.CreateUser(db, u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func mustBeatmap(t *testing.T, db *gorm.DB, beatmapID int64, stars float64) *models.Beatmap {
	t.Helper()
	bm, _, err := database.GetOrCreateBeatmap(db, &models.Beatmap{
		BeatmapID:  beatmapID,
		Title:      "Test Beatmap",
		Artist:     "Test Artist",
		Creator:    "Test Creator",
		StarRating: stars,
	})
	if err != nil {
		t.Fatalf("create beatmap %d: %v", beatmapID, err)
	}
	return bm
}

func mustScore(t *testing.T, db *gorm.DB, user *models.User, bm *models.Beatmap, final float64, at time.Time) *models.Score {
	t.Helper()
	s := &models.Score{
		UserID:       user.ID,
		BeatmapRowID: bm.ID,
		FinalValue:   final,
		Timestamp:    at,
	}
	if err := database.CreateScore(db, s); err != nil {
		t.Fatalf("create score: %v", err)
	}
	return s
}

func TestUsers(t *testing.T) {
	Convey("Given an empty database", t, func() {
		db := newTestDB(t)

		Convey("When a user is created", func() {
			u := mustUser(t, db, "alice")

			Convey("Then it gets an id and a creation time", func() {
				So(u.ID, ShouldBeGreaterThan, 0)
				So(u.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And it can be read back by id and by name", func() {
				byID, err := database.GetUserByID(db, u.ID)
				So(err, ShouldBeNil)
				So(byID.Username, ShouldEqual, "alice")

				byName, err := database.GetUserByUsername(db, "alice")
				So(err, ShouldBeNil)
				So(byName.ID, ShouldEqual, u.ID)
			})

			Convey("And a second user with the same name is a duplicate", func() {
				err := database.CreateUser(db, &models.User{Username: "alice"})
				So(database.IsDuplicate(err), ShouldBeTrue)
			})
		})

		Convey("When a missing user is read", func() {
			_, err := database.GetUserByID(db, 42)

			Convey("Then the error is not-found", func() {
				So(database.IsNotFound(err), ShouldBeTrue)
			})
		})

		Convey("When several users exist", func() {
			mustUser(t, db, "c")
			mustUser(t, db, "a")
			mustUser(t, db, "b")

			Convey("Then GetAllUsers lists them in id order", func() {
				users, err := database.GetAllUsers(db)
				So(err, ShouldBeNil)
				So(len(users), ShouldEqual, 3)
				So(users[0].Username, ShouldEqual, "c")
				So(users[2].Username, ShouldEqual, "b")
			})
		})
	})
}

func TestGetOrCreateBeatmap(t *testing.T) {
	Convey("Given an empty database", t, func() {
		db := newTestDB(t)
		req := &models.Beatmap{BeatmapID: 1, Title: "Test Beatmap", Artist: "A", Creator: "C", StarRating: 3.5}

		Convey("When the same beatmap is registered twice", func() {
			first, created1, err1 := database.GetOrCreateBeatmap(db, req)
			second, created2, err2 := database.GetOrCreateBeatmap(db, &models.Beatmap{BeatmapID: 1, Title: "Other", StarRating: 9})

			Convey("Then both calls return the first row", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(created1, ShouldBeTrue)
				So(created2, ShouldBeFalse)
				So(second.ID, ShouldEqual, first.ID)
				So(second.Title, ShouldEqual, "Test Beatmap")
				So(second.StarRating, ShouldEqual, 3.5)
			})

			Convey("And only one row is stored", func() {
				totals, err := database.CountTotals(db)
				So(err, ShouldBeNil)
				So(totals.Beatmaps, ShouldEqual, int64(1))
			})
		})

		Convey("When a caller passes a row id", func() {
			withID := *req
			withID.ID = 999
			bm, created, err := database.GetOrCreateBeatmap(db, &withID)

			Convey("Then the id is assigned by the database", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(bm.ID, ShouldNotEqual, uint(999))
			})
		})

		Convey("When a missing beatmap is read", func() {
			_, err := database.GetBeatmapByExternalID(db, 77)
			So(database.IsNotFound(err), ShouldBeTrue)
		})
	})
}

func TestMigratedSchema(t *testing.T) {
	Convey("Given a freshly migrated database", t, func() {
		db := newTestDB(t)
		tableSQL := func(name string) string {
			var sql string
			So(db.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&sql).Error, ShouldBeNil)
			return sql
		}

		Convey("Then beatmaps carries no foreign key", func() {
			So(tableSQL("beatmaps"), ShouldNotContainSubstring, "FOREIGN KEY")
		})

		Convey("And scores references both parent tables", func() {
			scores := tableSQL("scores")
			So(scores, ShouldContainSubstring, "REFERENCES `beatmaps`(`id`)")
			So(scores, ShouldContainSubstring, "REFERENCES `users`(`id`)")
		})

		Convey("And the beatmap foreign key is stored in beatmap_id", func() {
			So(db.Migrator().HasColumn(&models.Score{}, "beatmap_id"), ShouldBeTrue)
			So(db.Migrator().HasColumn(&models.Score{}, "beatmap_row_id"), ShouldBeFalse)
		})
	})
}

func TestGetOrCreateBeatmapConcurrent(t *testing.T) {
	Convey("Given a file backed database", t, func() {
		dsn := "file:" + filepath.Join(t.TempDir(), "tp.db") + "?_busy_timeout=5000"
		db, err := database.Init(config.Storage{Driver: "sqlite", DSN: dsn})
		So(err, ShouldBeNil)
		sqlDB, err := db.DB()
		So(err, ShouldBeNil)
		defer sqlDB.Close()

		Convey("When many callers register the same unseen beatmap at once", func() {
			const callers = 32
			ids := make([]uint, callers)
			var created atomic.Int32

			var g errgroup.Group
			for i := 0; i < callers; i++ {
				g.Go(func() error {
					bm, c, err := database.GetOrCreateBeatmap(db, &models.Beatmap{
						BeatmapID:  4242,
						Title:      "Beatmap 4242",
						Artist:     "Unknown",
						Creator:    "Unknown",
						StarRating: 1.0,
					})
					if err != nil {
						return err
					}
					if c {
						created.Add(1)
					}
					ids[i] = bm.ID
					return nil
				})
			}
			err := g.Wait()

			Convey("Then every caller gets the one stored row", func() {
				So(err, ShouldBeNil)
				for _, id := range ids {
					So(id, ShouldEqual, ids[0])
				}
				So(created.Load(), ShouldEqual, int32(1))

				var count int64
				So(db.Model(&models.Beatmap{}).Where("beatmap_id = ?", 4242).Count(&count).Error, ShouldBeNil)
				So(count, ShouldEqual, int64(1))
			})
		})
	})
}

func TestScores(t *testing.T) {
	Convey("Given users and a beatmap", t, func() {
		db := newTestDB(t)
		alice := mustUser(t, db, "alice")
		bob := mustUser(t, db, "bob")
		carol := mustUser(t, db, "carol")
		bm := mustBeatmap(t, db, 1, 3.5)
		other := mustBeatmap(t, db, 2, 2.0)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When a score is created", func() {
			s := mustScore(t, db, alice, bm, 500, base)

			Convey("Then it is returned with its user and beatmap", func() {
				So(s.ID, ShouldBeGreaterThan, 0)
				So(s.User.Username, ShouldEqual, "alice")
				So(s.Beatmap.BeatmapID, ShouldEqual, int64(1))
			})

			Convey("And GetScore reads the same row", func() {
				got, err := database.GetScore(db, s.ID)
				So(err, ShouldBeNil)
				So(got.FinalValue, ShouldEqual, 500.0)
				So(got.Beatmap.StarRating, ShouldEqual, 3.5)
			})
		})

		Convey("When a score references a missing user", func() {
			err := database.CreateScore(db, &models.Score{UserID: 999, BeatmapRowID: bm.ID, Timestamp: base})

			Convey("Then the foreign key rejects it", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When scores with a tie are stored", func() {
			mustScore(t, db, alice, bm, 500, base)
			mustScore(t, db, bob, bm, 800, base.Add(2*time.Minute))
			mustScore(t, db, carol, bm, 800, base.Add(time.Minute))
			mustScore(t, db, alice, other, 10_000, base)

			Convey("Then the beatmap's scores come back best first, earliest tie first", func() {
				scores, err := database.GetTopScoresForBeatmap(db, bm.ID, 10)
				So(err, ShouldBeNil)
				So(len(scores), ShouldEqual, 3)
				So(scores[0].User.Username, ShouldEqual, "carol")
				So(scores[1].User.Username, ShouldEqual, "bob")
				So(scores[2].User.Username, ShouldEqual, "alice")
			})

			Convey("And the limit is honoured", func() {
				scores, err := database.GetTopScoresForBeatmap(db, bm.ID, 1)
				So(err, ShouldBeNil)
				So(len(scores), ShouldEqual, 1)
				So(scores[0].FinalValue, ShouldEqual, 800.0)
			})

			Convey("And a user's scores span beatmaps", func() {
				scores, err := database.GetScoresByUserID(db, alice.ID, 100)
				So(err, ShouldBeNil)
				So(len(scores), ShouldEqual, 2)
				So(scores[0].FinalValue, ShouldEqual, 10_000.0)
				So(scores[0].Beatmap.BeatmapID, ShouldEqual, int64(2))
			})

			Convey("And final values are grouped by user", func() {
				values, err := database.GetFinalValuesByUser(db)
				So(err, ShouldBeNil)
				So(len(values[alice.ID]), ShouldEqual, 2)
				So(values[bob.ID], ShouldResemble, []float64{800})
				So(values[carol.ID], ShouldResemble, []float64{800})
			})

			Convey("And totals count every relation", func() {
				totals, err := database.CountTotals(db)
				So(err, ShouldBeNil)
				So(totals, ShouldResemble, database.Totals{Users: 3, Beatmaps: 2, Scores: 4})
			})
		})
	})
}
