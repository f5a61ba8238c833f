package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lexiguard/lexiguard/internal/ingest"
	"github.com/lexiguard/lexiguard/pkg/file"
	"github.com/lexiguard/lexiguard/pkg/icron"
	"github.com/lexiguard/lexiguard/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// Reindexer re-ingests documents changed since the previous run on a cron
// schedule. Overlapping triggers share one run.
type Reindexer struct {
	pipeline *ingest.Pipeline
	cron     *cron.Cron
	cronExpr string
	group    singleflight.Group
	now      func() time.Time

	mu              sync.Mutex
	lastTriggerTime time.Time
}

func NewReindexer(pipeline *ingest.Pipeline, c *cron.Cron, cronExpr string) *Reindexer {
	return &Reindexer{
		pipeline: pipeline,
		cron:     c,
		cronExpr: cronExpr,
		now:      time.Now,
	}
}

// Schedule registers the re-ingestion job. The cron must be started by the
// caller.
func (r *Reindexer) Schedule(ctx context.Context) error {
	if r.pipeline == nil {
		return NewError(ErrIndex, "no document index configured")
	}
	log.Info("Schedule re-ingestion of %s with %q", r.pipeline.Root(), r.cronExpr)

	_, err := r.cron.AddFunc(r.cronExpr, r.job(ctx))
	return err
}

// job is the cron entry. Failures and panics of a run are logged.
func (r *Reindexer) job(ctx context.Context) func() {
	return func() {
		err := SafeExecute(func() error {
			_, err := r.Run(ctx)
			return err
		})
		if err != nil {
			Handle(WrapError(err, ErrIndex, "re-ingestion failed").WithContext("dir", r.pipeline.Root()))
		}
	}
}

// Run ingests the files modified since the last run.
func (r *Reindexer) Run(ctx context.Context) (*ingest.Report, error) {
	v, err, _ := r.group.Do("run", func() (any, error) {
		triggered := r.now()
		since, err := r.startTime()
		if err != nil {
			return nil, err
		}

		paths, err := file.FindRecentAfter(r.pipeline.Root(), since, ingest.Extensions...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.pipeline.Root(), err)
		}
		log.Info("Found %d documents changed since %s", len(paths), since.Format(time.RFC3339))

		report, err := r.pipeline.IngestFiles(ctx, paths)
		if len(report.Failed) == 0 && ctx.Err() == nil {
			r.mu.Lock()
			r.lastTriggerTime = triggered
			r.mu.Unlock()
		}
		return report, err
	})
	report, _ := v.(*ingest.Report)
	return report, err
}

// startTime returns the last successful trigger time. Before the first run
// it is the previous cron trigger, or a week back when that trigger is
// less than a day old.
func (r *Reindexer) startTime() (time.Time, error) {
	r.mu.Lock()
	last := r.lastTriggerTime
	r.mu.Unlock()
	if !last.IsZero() {
		return last, nil
	}

	now := r.now()
	cronSchedule, err := icron.GetTriggerInfo(r.cronExpr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cron schedule: %w", err)
	}

	if now.Add(-24 * time.Hour).Before(cronSchedule.Last) {
		return now.Add(-24 * 7 * time.Hour), nil
	}
	return cronSchedule.Last, nil
}
