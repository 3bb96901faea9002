package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ProfitLossBuilder builds the period profit and loss.
type ProfitLossBuilder interface {
	GetProfitLoss(ctx context.Context, businessID int64, from, to time.Time, locationID *int64) (reports.ProfitLoss, error)
}

// ReportsWarmupJob computes the month-to-date profit and loss so the report
// cache already holds it when users ask.
type ReportsWarmupJob struct {
	ProfitLoss ProfitLossBuilder
	Locker     Locker
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Location   *time.Location
	clock      func() time.Time
}

// NewReportsWarmupJob wires the warmup job.
func NewReportsWarmupJob(pl ProfitLossBuilder, locker Locker, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsWarmupJob{ProfitLoss: pl, Locker: locker, Location: loc, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes reports:warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.ProfitLoss == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	if payload.BusinessID <= 0 {
		return asynq.SkipRetry
	}
	return j.Run(ctx, payload)
}

// Run builds the report for the first of the month through today.
func (j *ReportsWarmupJob) Run(ctx context.Context, payload ReportsWarmupPayload) error {
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now()
	if j.clock != nil {
		now = j.clock()
	}
	now = now.In(loc)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	logger := j.logger().With(slog.String("job", TaskReportsWarmup), slog.Int64("business_id", payload.BusinessID))

	tracker := j.Metrics.Track(TaskReportsWarmup)
	err := exclusive(ctx, j.Locker, TaskReportsWarmup, payload.BusinessID, logger, j.Metrics, func(ctx context.Context) error {
		pl, err := j.ProfitLoss.GetProfitLoss(ctx, payload.BusinessID, from, now, payload.LocationID)
		if err != nil {
			return err
		}
		logger.Info("profit and loss warmed",
			slog.Time("from", pl.From),
			slog.Time("to", pl.To),
			slog.Int("warnings", len(pl.Warnings)))
		return nil
	})
	if err != nil {
		logger.Error("reports warmup failed", slog.Any("error", err))
	}
	return tracker.End(err)
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
