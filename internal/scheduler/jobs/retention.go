package jobs

import (
	"context"
	"time"

	"github.com/wonny/fvgsim/pkg/logger"
)

// RunPruner deletes runs created before a cutoff
type RunPruner interface {
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob deletes stored runs older than the retention period
type RetentionJob struct {
	pruner    RunPruner
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewRetentionJob creates a new run retention job
func NewRetentionJob(pruner RunPruner, retention time.Duration, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "run_retention"
}

// Schedule returns the cron schedule (daily at 03:15)
func (j *RetentionJob) Schedule() string {
	return "0 15 3 * * *"
}

// Run executes the cleanup
func (j *RetentionJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled run cleanup")

	removed, err := j.pruner.PruneRuns(ctx, j.now().Add(-j.retention))
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Run cleanup completed")
	}
	return nil
}
