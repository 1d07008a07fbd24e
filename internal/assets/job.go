package assets

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-his/meridian/jobs"
)

// RunJob processes monthly depreciation batch tasks.
type RunJob struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunJob constructs a job handler.
func NewRunJob(service *Service, logger *slog.Logger) *RunJob {
	return &RunJob{service: service, logger: logger, now: time.Now}
}

// Handle fulfils the asynq.HandlerFunc contract. The batch is idempotent and
// restart safe, so a retried task simply skips already-processed assets.
func (j *RunJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.DepreciationRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	month, err := payload.Month()
	if err != nil {
		return asynq.SkipRetry
	}
	if month.IsZero() {
		// Cron fires at the start of a month to depreciate the prior one.
		month = MonthStart(j.now()).AddDate(0, -1, 0)
	}

	tenants := []int64{payload.TenantID}
	if payload.TenantID == 0 {
		tenants, err = j.service.TenantIDs(ctx)
		if err != nil {
			return err
		}
	}

	for _, tenantID := range tenants {
		report, err := j.service.RunMonthly(ctx, tenantID, month, payload.DryRun)
		if err != nil {
			if j.logger != nil {
				j.logger.Error("depreciation run", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			}
			return err
		}
		if j.logger != nil {
			j.logger.Info("depreciation run",
				slog.Int64("tenant_id", tenantID),
				slog.String("month", report.Month.Format("2006-01")),
				slog.Bool("dry_run", report.DryRun),
				slog.Int("posted", report.Count(OutcomePosted)),
				slog.Int("skipped_existing", report.Count(OutcomeSkippedExisting)),
				slog.Int("skipped_locked", report.Count(OutcomeSkippedLocked)),
				slog.Int("errors", report.Count(OutcomeError)),
			)
		}
	}
	return nil
}
