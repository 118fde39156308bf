package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job names.
const (
	JobOverdueFees       = "overdue-fees"
	JobFeeReminders      = "fee-reminders"
	JobTokenCleanup      = "token-cleanup"
	JobActivityRetention = "activity-retention"
)

// FeeJobs is the part of the finance service the scheduler drives.
type FeeJobs interface {
	MarkOverdue(ctx context.Context) (int64, error)
	SendReminders(ctx context.Context, daysAhead int) (int, error)
}

type TokenPruner interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type ActivityPruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// JobConfig holds the cron specs; an empty spec disables the job.
type JobConfig struct {
	OverdueFeesSpec       string
	FeeReminderSpec       string
	FeeReminderDaysAhead  int
	TokenCleanupSpec      string
	ActivityRetentionSpec string
	ActivityRetentionDays int
}

// MaintenanceJobs builds the standard job set.
func MaintenanceJobs(cfg JobConfig, fees FeeJobs, tokens TokenPruner, activity ActivityPruner, logger zerolog.Logger, now func() time.Time) []Job {
	if now == nil {
		now = time.Now
	}
	jobs := []Job{
		{
			Name: JobOverdueFees,
			Spec: cfg.OverdueFeesSpec,
			Run: func(ctx context.Context) error {
				n, err := fees.MarkOverdue(ctx)
				if err == nil && n > 0 {
					logger.Info().Int64("fees", n).Msg("Marked fees overdue")
				}
				return err
			},
		},
		{
			Name: JobFeeReminders,
			Spec: cfg.FeeReminderSpec,
			Run: func(ctx context.Context) error {
				n, err := fees.SendReminders(ctx, cfg.FeeReminderDaysAhead)
				if err == nil {
					logger.Info().Int("sent", n).Int("daysAhead", cfg.FeeReminderDaysAhead).Msg("Fee reminders sent")
				}
				return err
			},
		},
		{
			Name: JobTokenCleanup,
			Spec: cfg.TokenCleanupSpec,
			Run: func(ctx context.Context) error {
				n, err := tokens.DeleteExpired(ctx, now())
				if err == nil && n > 0 {
					logger.Info().Int64("tokens", n).Msg("Deleted expired refresh tokens")
				}
				return err
			},
		},
	}

	if cfg.ActivityRetentionDays > 0 {
		jobs = append(jobs, Job{
			Name: JobActivityRetention,
			Spec: cfg.ActivityRetentionSpec,
			Run: func(ctx context.Context) error {
				_, err := activity.Prune(ctx, now().AddDate(0, 0, -cfg.ActivityRetentionDays))
				return err
			},
		})
	}
	return jobs
}
