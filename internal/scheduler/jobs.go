package scheduler

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// VerificationCleanupJobID identifies the verification cleanup job.
const VerificationCleanupJobID = "verification-cleanup"

// VerificationStore drops expired verification tokens.
type VerificationStore interface {
	ClearExpiredVerifications(ctx context.Context, asOf time.Time) (int64, error)
}

// AddVerificationCleanup schedules the removal of expired verification tokens.
func (s *Scheduler) AddVerificationCleanup(store VerificationStore, cron string) error {
	return s.AddJob(VerificationCleanupJobID, "Clear expired verification tokens", cron,
		gocron.CronJob(cron, false),
		func(ctx context.Context) error {
			n, err := store.ClearExpiredVerifications(ctx, time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("Cleared expired verification tokens", "count", n)
			}
			return nil
		},
	)
}
