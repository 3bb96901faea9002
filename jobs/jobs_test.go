package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory/valuation"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var now = time.Date(2025, 3, 20, 2, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newLocker(t *testing.T) (*redislock.Client, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redislock.New(client), client
}

func journalService() *accounting.Service {
	docs := documents.NewMemory()
	docs.Add(
		documents.Sale{ID: 1, BusinessID: 1, TransactionDate: now.AddDate(0, 0, -2), Status: documents.SaleFinal, Total: d("150"),
			Lines: []documents.SaleLine{{VariationID: 10, Quantity: d("3"), UnitCost: d("20")}}},
		documents.PurchaseReceipt{ID: 2, BusinessID: 1, ReceivedAt: now.AddDate(0, 0, -1),
			Lines: []documents.ReceiptLine{{VariationID: 10, AcceptedQty: d("10"), UnitCost: d("5")}}},
		documents.Sale{ID: 3, BusinessID: 1, TransactionDate: now.AddDate(0, 0, -30), Status: documents.SaleFinal, Total: d("99")},
	)
	return accounting.NewService(docs, 2, nil, nil)
}

func TestGLIntegrityJobValidatesRecentEntries(t *testing.T) {
	locker, _ := newLocker(t)
	job := NewGLIntegrityJob(journalService(), locker, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return now }

	result, err := job.Run(context.Background(), GLIntegrityPayload{BusinessID: 1})
	require.NoError(t, err)
	require.Equal(t, 3, result.Entries)
	require.Zero(t, result.InvalidEntries)
	require.True(t, result.Balanced)
	require.Equal(t, now.AddDate(0, 0, -7), result.From)
}

func TestGLIntegrityJobSkipsWhenLocked(t *testing.T) {
	locker, _ := newLocker(t)
	held, err := locker.Obtain(context.Background(), shared.JobLockKey(TaskGLIntegrity, 1), time.Minute, nil)
	require.NoError(t, err)
	defer held.Release(context.Background())

	calls := 0
	job := NewGLIntegrityJob(countingGenerator{calls: &calls}, locker, nil, nil)
	result, err := job.Run(context.Background(), GLIntegrityPayload{BusinessID: 1})
	require.NoError(t, err)
	require.Zero(t, calls)
	require.Zero(t, result.Entries)

	// another business is not blocked
	_, err = job.Run(context.Background(), GLIntegrityPayload{BusinessID: 2})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestGLIntegrityJobReleasesLock(t *testing.T) {
	locker, client := newLocker(t)
	job := NewGLIntegrityJob(journalService(), locker, nil, nil)
	_, err := job.Run(context.Background(), GLIntegrityPayload{BusinessID: 1})
	require.NoError(t, err)
	n, err := client.Exists(context.Background(), shared.JobLockKey(TaskGLIntegrity, 1)).Result()
	require.NoError(t, err)
	require.Zero(t, n)
}

type countingGenerator struct{ calls *int }

func (c countingGenerator) GetGLEntriesForPeriod(context.Context, int64, time.Time, time.Time, []documents.Kind) (accounting.GLBatch, error) {
	*c.calls++
	return accounting.GLBatch{}, nil
}

type failingGenerator struct{ err error }

func (f failingGenerator) GetGLEntriesForPeriod(context.Context, int64, time.Time, time.Time, []documents.Kind) (accounting.GLBatch, error) {
	return accounting.GLBatch{}, f.err
}

func TestGLIntegrityHandleRejectsBadPayloads(t *testing.T) {
	job := NewGLIntegrityJob(journalService(), nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskGLIntegrity, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	err = job.Handle(context.Background(), asynq.NewTask(TaskGLIntegrity, []byte(`{"business_id":0}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	boom := errors.New("connection reset")
	failing := NewGLIntegrityJob(failingGenerator{err: boom}, nil, nil, nil)
	task, err := NewGLIntegrityTask(GLIntegrityPayload{BusinessID: 1})
	require.NoError(t, err)
	require.ErrorIs(t, failing.Handle(context.Background(), task), boom)
}

type stubValuer struct{ report valuation.Report }

func (s stubValuer) GetInventoryValuation(_ context.Context, req valuation.Request) (valuation.Report, error) {
	r := s.report
	r.BusinessID, r.Method, r.AsOf = req.BusinessID, req.Method, req.AsOf
	return r, nil
}

func TestInventoryRevaluationJob(t *testing.T) {
	valuer := stubValuer{report: valuation.Report{
		Items: []valuation.ItemValuation{
			{Issues: []inventory.Issue{{Kind: inventory.IssueNegativeStock}, {Kind: inventory.IssueChainBreak}}},
			{Issues: []inventory.Issue{{Kind: inventory.IssueNegativeStock}}},
			{},
		},
		Summary: valuation.Summary{Items: 2, FlaggedItems: 2, TotalValue: d("88")},
	}}
	locker, _ := newLocker(t)
	job := NewInventoryRevaluationJob(valuer, locker, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return now }

	report, err := job.Run(context.Background(), InventoryRevaluationPayload{BusinessID: 4, Method: "average"})
	require.NoError(t, err)
	require.Equal(t, valuation.MethodAVCO, report.Method)
	require.Equal(t, now, report.AsOf)

	_, err = job.Run(context.Background(), InventoryRevaluationPayload{BusinessID: 4, Method: "hifo"})
	require.ErrorIs(t, err, valuation.ErrUnknownMethod)

	task, err := NewInventoryRevaluationTask(InventoryRevaluationPayload{BusinessID: 4, Method: "hifo"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

type recordingProfitLoss struct {
	from, to time.Time
}

func (r *recordingProfitLoss) GetProfitLoss(_ context.Context, businessID int64, from, to time.Time, _ *int64) (reports.ProfitLoss, error) {
	r.from, r.to = from, to
	return reports.ProfitLoss{BusinessID: businessID, From: from, To: to}, nil
}

func TestReportsWarmupJobCoversMonthToDate(t *testing.T) {
	pl := &recordingProfitLoss{}
	job := NewReportsWarmupJob(pl, nil, time.UTC, nil, nil)
	job.clock = func() time.Time { return now }

	task, err := NewReportsWarmupTask(ReportsWarmupPayload{BusinessID: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), pl.from)
	require.Equal(t, now, pl.to)
}

func TestNightlySchedule(t *testing.T) {
	regs, err := NightlySchedule([]int64{1, 2}, "fifo")
	require.NoError(t, err)
	require.Len(t, regs, 6)
	require.Equal(t, TaskGLIntegrity, regs[0].Task.Type())
	require.Equal(t, TaskInventoryRevaluation, regs[4].Task.Type())

	var payload ReportsWarmupPayload
	require.NoError(t, json.Unmarshal(regs[5].Task.Payload(), &payload))
	require.Equal(t, int64(2), payload.BusinessID)

	_, err = NightlySchedule([]int64{0}, "fifo")
	require.Error(t, err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealth(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, 3, health.Pending)
	require.Equal(t, 1, health.Retry)

	rec = serve(NewHandler(stubInspector{err: errors.New("redis down")}, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
