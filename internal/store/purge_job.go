package store

import (
	"context"
	"log/slog"
	"time"
)

// PurgeJob wraps PurgeOldProcessed as a scheduler.Job, deleting processed
// events older than Retain on each run.
type PurgeJob struct {
	store  *Store
	logger *slog.Logger
	retain time.Duration
}

// NewPurgeJob creates a scheduled job that purges processed events older
// than retain.
func NewPurgeJob(s *Store, logger *slog.Logger, retain time.Duration) *PurgeJob {
	return &PurgeJob{store: s, logger: logger, retain: retain}
}

func (j *PurgeJob) Name() string { return "event_queue_purge" }

func (j *PurgeJob) Run(ctx context.Context) error {
	n, err := j.store.PurgeOldProcessed(ctx, j.retain)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Info("purged processed events", "count", n, "retain", j.retain)
	}
	return nil
}
