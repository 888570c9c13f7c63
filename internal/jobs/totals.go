// Package jobs runs periodic background work next to the API servers.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ZJUSCT/TPServer/internal/database"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type TotalsSource interface {
	CountTotals(ctx context.Context) (database.Totals, error)
}

type TotalsSink interface {
	SetTotals(users, beatmaps, scores int64)
}

// TotalsRefresher copies row totals into the metrics gauges on a fixed
// interval. It only reads.
type TotalsRefresher struct {
	sched    gocron.Scheduler
	source   TotalsSource
	sink     TotalsSink
	interval time.Duration
}

func NewTotalsRefresher(source TotalsSource, sink TotalsSink, interval time.Duration) (*TotalsRefresher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("totals interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	r := &TotalsRefresher{
		sched:    sched,
		source:   source,
		sink:     sink,
		interval: interval,
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := r.Refresh(ctx); err != nil {
				zap.S().Errorf("failed to refresh totals: %v", err)
			}
		}),
		gocron.WithName("refresh-totals"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("register totals job: %w", err)
	}
	return r, nil
}

// Refresh reads the totals once and publishes them.
func (r *TotalsRefresher) Refresh(ctx context.Context) error {
	totals, err := r.source.CountTotals(ctx)
	if err != nil {
		return err
	}
	r.sink.SetTotals(totals.Users, totals.Beatmaps, totals.Scores)
	zap.S().Debugf("totals refreshed: %d users, %d beatmaps, %d scores", totals.Users, totals.Beatmaps, totals.Scores)
	return nil
}

func (r *TotalsRefresher) Start() {
	r.sched.Start()
	zap.S().Infof("totals refresher started, interval %s", r.interval)
}

// Shutdown stops the scheduler and waits for a running refresh to finish.
func (r *TotalsRefresher) Shutdown() error {
	return r.sched.Shutdown()
}
