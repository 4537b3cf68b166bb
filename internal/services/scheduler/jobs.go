package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// queuePurger is the part of the queue manager the purge job uses
type queuePurger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int, error)
}

// RegisterMaintenanceJobs wires the standing maintenance jobs onto the
// scheduler: badger value-log GC, the queue retention purge and the orphan
// media sweep
func RegisterMaintenanceJobs(
	sched interfaces.SchedulerService,
	cfg *common.Config,
	db *badger.DB,
	queueManager queuePurger,
	mediaStorage interfaces.MediaStorage,
	mediaService interfaces.MediaService,
	logger arbor.ILogger,
) error {
	retention, err := time.ParseDuration(cfg.Scheduler.QueueRetention)
	if err != nil {
		retention = 72 * time.Hour
		logger.Warn().
			Str("queue_retention", cfg.Scheduler.QueueRetention).
			Msg("Invalid queue retention window, using 72h")
	}

	retain, err := time.ParseDuration(cfg.Scheduler.RetainUnattached)
	if err != nil {
		retain = 24 * time.Hour
		logger.Warn().
			Str("retain_unattached", cfg.Scheduler.RetainUnattached).
			Msg("Invalid media retention window, using 24h")
	}

	if err := sched.RegisterJob(
		"badger-gc",
		cfg.Scheduler.GCSchedule,
		"Badger value-log garbage collection",
		valueLogGC(db, logger),
	); err != nil {
		return fmt.Errorf("failed to register badger-gc: %w", err)
	}

	if err := sched.RegisterJob(
		"queue-purge",
		cfg.Scheduler.PurgeSchedule,
		"Removes queue messages past the retention window",
		queuePurge(queueManager, retention, logger),
	); err != nil {
		return fmt.Errorf("failed to register queue-purge: %w", err)
	}

	if err := sched.RegisterJob(
		"media-sweep",
		cfg.Scheduler.SweepSchedule,
		"Removes uploads never attached to a message",
		orphanSweep(mediaStorage, mediaService, retain, logger),
	); err != nil {
		return fmt.Errorf("failed to register media-sweep: %w", err)
	}

	return nil
}

// valueLogGC reclaims badger value-log space. Queue bodies, chat records
// and media metadata share the one store; badger only rewrites log files
// when asked.
func valueLogGC(db *badger.DB, logger arbor.ILogger) func() error {
	return func() error {
		rewritten := 0
		for {
			err := db.RunValueLogGC(0.5)
			if err == nil {
				rewritten++
				continue
			}
			if errors.Is(err, badger.ErrNoRewrite) {
				logger.Info().Int("files_rewritten", rewritten).Msg("Value-log GC finished")
				return nil
			}
			return fmt.Errorf("value-log GC failed: %w", err)
		}
	}
}

// queuePurge drops queue messages older than the retention window, claimed
// or not, along with any index entries left behind by crashes
func queuePurge(q queuePurger, retention time.Duration, logger arbor.ILogger) func() error {
	return func() error {
		purged, err := q.PurgeExpired(context.Background(), retention)
		if err != nil {
			return fmt.Errorf("queue purge failed: %w", err)
		}
		if purged == 0 {
			return nil
		}
		logger.Info().Int("purged", purged).Str("retention", retention.String()).Msg("Queue purge completed")
		return nil
	}
}

// orphanSweep removes media uploaded but never attached to an accepted
// message within the retention window
func orphanSweep(mediaStorage interfaces.MediaStorage, mediaService interfaces.MediaService, retain time.Duration, logger arbor.ILogger) func() error {
	return func() error {
		ctx := context.Background()
		cutoff := time.Now().Add(-retain)

		orphans, err := mediaStorage.ListUnattachedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to list unattached media: %w", err)
		}
		if len(orphans) == 0 {
			return nil
		}

		removed := 0
		for _, asset := range orphans {
			if err := mediaService.Remove(ctx, asset.ID); err != nil {
				logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("Failed to remove orphaned media")
				continue
			}
			removed++
		}

		logger.Info().Int("removed", removed).Int("found", len(orphans)).Msg("Orphan media sweep completed")
		return nil
	}
}
