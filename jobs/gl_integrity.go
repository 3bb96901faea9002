package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// GLGenerator produces journal entries for a period.
type GLGenerator interface {
	GetGLEntriesForPeriod(ctx context.Context, businessID int64, from, to time.Time, kinds []documents.Kind) (accounting.GLBatch, error)
}

// GLIntegrityResult summarises one integrity run.
type GLIntegrityResult struct {
	BusinessID     int64
	From, To       time.Time
	Entries        int
	InvalidEntries int
	SkippedRecords int
	Balanced       bool
}

// GLIntegrityJob regenerates recent journal entries and checks that every entry
// validates and that the batch balances.
type GLIntegrityJob struct {
	Journals GLGenerator
	Locker   Locker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewGLIntegrityJob wires the integrity job.
func NewGLIntegrityJob(journals GLGenerator, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Journals: journals, Locker: locker, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes gl:integrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Journals == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	if payload.BusinessID <= 0 {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run executes the check under the per-business lock.
func (j *GLIntegrityJob) Run(ctx context.Context, payload GLIntegrityPayload) (GLIntegrityResult, error) {
	days := payload.Days
	if days <= 0 {
		days = defaultIntegrityDays
	}
	now := j.now()
	result := GLIntegrityResult{BusinessID: payload.BusinessID, From: now.AddDate(0, 0, -days), To: now}
	logger := j.logger().With(slog.String("job", TaskGLIntegrity), slog.Int64("business_id", payload.BusinessID))

	tracker := j.Metrics.Track(TaskGLIntegrity)
	err := exclusive(ctx, j.Locker, TaskGLIntegrity, payload.BusinessID, logger, j.Metrics, func(ctx context.Context) error {
		batch, err := j.Journals.GetGLEntriesForPeriod(ctx, payload.BusinessID, result.From, result.To, nil)
		if err != nil {
			return err
		}
		result.Entries = len(batch.Entries)
		result.SkippedRecords = len(batch.Skipped)
		for _, entry := range batch.Entries {
			if v := accounting.Validate(entry); !v.Valid {
				result.InvalidEntries++
				logger.Warn("invalid journal entry",
					slog.String("reference_type", string(entry.ReferenceType)),
					slog.Int64("reference_id", entry.ReferenceID),
					slog.Any("errors", v.Errors))
			}
		}
		result.Balanced = reports.BuildTrialBalance(batch.Entries).Balanced
		j.Metrics.AddFindings(TaskGLIntegrity, "invalid_entry", payload.BusinessID, result.InvalidEntries)
		j.Metrics.AddFindings(TaskGLIntegrity, "skipped_record", payload.BusinessID, result.SkippedRecords)
		if !result.Balanced {
			j.Metrics.AddFindings(TaskGLIntegrity, "unbalanced_batch", payload.BusinessID, 1)
			logger.Warn("generated ledger does not balance")
		}
		logger.Info("gl integrity check complete",
			slog.Int("entries", result.Entries),
			slog.Int("invalid", result.InvalidEntries),
			slog.Int("skipped", result.SkippedRecords))
		return nil
	})
	if err != nil {
		logger.Error("gl integrity check failed", slog.Any("error", err))
	}
	return result, tracker.End(err)
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
