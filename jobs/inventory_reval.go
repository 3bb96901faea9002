package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory/valuation"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// Valuer values inventory with a costing method.
type Valuer interface {
	GetInventoryValuation(ctx context.Context, req valuation.Request) (valuation.Report, error)
}

// InventoryRevaluationJob values a business's inventory and counts the
// data-quality findings per kind.
type InventoryRevaluationJob struct {
	Valuation Valuer
	Locker    Locker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewInventoryRevaluationJob wires the revaluation job.
func NewInventoryRevaluationJob(v Valuer, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventoryRevaluationJob {
	return &InventoryRevaluationJob{Valuation: v, Locker: locker, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes inventory:revaluation tasks.
func (j *InventoryRevaluationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Valuation == nil {
		return errors.New("inventory revaluation: handler not configured")
	}
	var payload InventoryRevaluationPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	if payload.BusinessID <= 0 {
		return asynq.SkipRetry
	}
	if _, err := valuation.ParseMethod(methodOrDefault(payload.Method)); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run values inventory as of the scheduled instant, or now.
func (j *InventoryRevaluationJob) Run(ctx context.Context, payload InventoryRevaluationPayload) (valuation.Report, error) {
	method, err := valuation.ParseMethod(methodOrDefault(payload.Method))
	if err != nil {
		return valuation.Report{}, err
	}
	asOf := payload.ScheduledFor
	if asOf.IsZero() {
		asOf = time.Now()
		if j.clock != nil {
			asOf = j.clock()
		}
	}
	logger := j.logger().With(slog.String("job", TaskInventoryRevaluation), slog.Int64("business_id", payload.BusinessID))

	var report valuation.Report
	tracker := j.Metrics.Track(TaskInventoryRevaluation)
	err = exclusive(ctx, j.Locker, TaskInventoryRevaluation, payload.BusinessID, logger, j.Metrics, func(ctx context.Context) error {
		var err error
		report, err = j.Valuation.GetInventoryValuation(ctx, valuation.Request{BusinessID: payload.BusinessID, Method: method, AsOf: asOf})
		if err != nil {
			return err
		}
		counts := make(map[inventory.IssueKind]int)
		for _, item := range report.Items {
			for _, issue := range item.Issues {
				counts[issue.Kind]++
			}
		}
		for kind, n := range counts {
			j.Metrics.AddFindings(TaskInventoryRevaluation, string(kind), payload.BusinessID, n)
		}
		logger.Info("inventory revaluation complete",
			slog.String("method", string(method)),
			slog.Int("items", report.Summary.Items),
			slog.String("total_value", report.Summary.TotalValue.StringFixed(2)),
			slog.Int("flagged_items", report.Summary.FlaggedItems))
		return nil
	})
	if err != nil {
		logger.Error("inventory revaluation failed", slog.Any("error", err))
	}
	return report, tracker.End(err)
}

func methodOrDefault(raw string) string {
	if raw == "" {
		return string(valuation.MethodFIFO)
	}
	return raw
}

func (j *InventoryRevaluationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
