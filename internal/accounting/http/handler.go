// Package accountinghttp exposes journal generation, GL exports and the
// profit and loss report over HTTP.
package accountinghttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/export"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// JournalService is the journal generation contract used by the handler.
type JournalService interface {
	GenerateJournalEntries(ctx context.Context, kind documents.Kind, referenceID, businessID int64) ([]accounting.JournalEntry, error)
	GetGLEntriesForPeriod(ctx context.Context, businessID int64, from, to time.Time, kinds []documents.Kind) (accounting.GLBatch, error)
}

// ProfitLossService builds profit and loss statements.
type ProfitLossService interface {
	GetProfitLoss(ctx context.Context, businessID int64, from, to time.Time, locationID *int64) (reports.ProfitLoss, error)
}

// Handler serves the accounting endpoints.
type Handler struct {
	logger     *slog.Logger
	journals   JournalService
	profitLoss ProfitLossService
	rateLimit  func(http.Handler) http.Handler
}

// NewHandler constructs the handler. exportsPerMinute caps export requests per
// client IP; zero disables the limit.
func NewHandler(logger *slog.Logger, journals JournalService, profitLoss ProfitLossService, exportsPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, journals: journals, profitLoss: profitLoss}
	if exportsPerMinute > 0 {
		h.rateLimit = httprate.Limit(exportsPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit reached")
			}),
		)
	}
	return h
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounting/journals/{referenceType}/{referenceID}", h.handleJournals)
	r.Get("/accounting/gl", h.handleGL)
	r.Get("/accounting/trial-balance", h.handleTrialBalance)
	r.Get("/reports/profit-loss", h.handleProfitLoss)
	r.Group(func(r chi.Router) {
		if h.rateLimit != nil {
			r.Use(h.rateLimit)
		}
		r.Get("/accounting/gl/export.csv", h.handleExport(exportCSV))
		r.Get("/accounting/gl/export.iif", h.handleExport(exportIIF))
		r.Get("/reports/profit-loss.xlsx", h.handleProfitLossXLSX)
	})
}

type journalParams struct {
	BusinessID  int64 `validate:"required,gt=0"`
	ReferenceID int64 `validate:"required,gt=0"`
	Kind        documents.Kind
}

func (h *Handler) handleJournals(w http.ResponseWriter, r *http.Request) {
	kind, err := documents.ParseKind(chi.URLParam(r, "referenceType"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	params := journalParams{Kind: kind}
	if params.BusinessID, err = httpx.QueryInt64(r, "business_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if params.ReferenceID, err = httpx.ParseInt64("referenceID", chi.URLParam(r, "referenceID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(params); err != nil {
		httpx.RespondError(w, err)
		return
	}

	entries, err := h.journals.GenerateJournalEntries(r.Context(), params.Kind, params.ReferenceID, params.BusinessID)
	if err != nil {
		h.fail(w, r, "generate journal entries", err)
		return
	}
	if entries == nil {
		entries = []accounting.JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type periodParams struct {
	BusinessID int64  `validate:"required,gt=0"`
	From       string `validate:"required,datetime=2006-01-02"`
	To         string `validate:"required,datetime=2006-01-02"`
	LocationID int64  `validate:"gte=0"`
	Types      string
}

type period struct {
	businessID int64
	from, to   time.Time
	locationID *int64
	kinds      []documents.Kind
}

func parsePeriod(r *http.Request) (period, error) {
	q := r.URL.Query()
	params := periodParams{From: q.Get("from"), To: q.Get("to"), Types: q.Get("types")}
	var err error
	if params.BusinessID, err = httpx.QueryInt64(r, "business_id"); err != nil {
		return period{}, err
	}
	if params.LocationID, err = httpx.QueryInt64(r, "location_id"); err != nil {
		return period{}, err
	}
	if err := httpx.Validate(params); err != nil {
		return period{}, err
	}
	p := period{businessID: params.BusinessID, locationID: httpx.OptionalID(params.LocationID)}
	if p.from, err = httpx.ParseDate(params.From); err != nil {
		return period{}, err
	}
	if p.to, err = httpx.ParseDate(params.To); err != nil {
		return period{}, err
	}
	for _, raw := range strings.Split(params.Types, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		kind, err := documents.ParseKind(raw)
		if err != nil {
			return period{}, err
		}
		p.kinds = append(p.kinds, kind)
	}
	return p, nil
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) (accounting.GLBatch, bool) {
	p, err := parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, err)
		return accounting.GLBatch{}, false
	}
	to := shared.EndOfDay(p.to, time.UTC)
	batch, err := h.journals.GetGLEntriesForPeriod(r.Context(), p.businessID, p.from, to, p.kinds)
	if err != nil {
		h.fail(w, r, "generate gl batch", err)
		return accounting.GLBatch{}, false
	}
	return batch, true
}

func (h *Handler) handleGL(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	if batch.Entries == nil {
		batch.Entries = []accounting.JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, reports.BuildTrialBalance(batch.Entries))
}

type exportFormat struct {
	ext         string
	contentType string
	write       func(io.Writer, []accounting.JournalEntry) error
}

var (
	exportCSV = exportFormat{ext: "csv", contentType: "text/csv; charset=utf-8", write: export.WriteCSV}
	exportIIF = exportFormat{ext: "iif", contentType: "application/octet-stream", write: export.WriteIIF}
)

func (h *Handler) handleExport(format exportFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batch, ok := h.batch(w, r)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := format.write(&buf, batch.Entries); err != nil {
			h.fail(w, r, "export gl", err)
			return
		}
		filename := fmt.Sprintf("gl_%d_%s_%s.%s", batch.BusinessID,
			batch.From.Format("20060102"), batch.To.Format("20060102"), format.ext)
		w.Header().Set("X-Skipped-Records", fmt.Sprint(len(batch.Skipped)))
		httpx.Attachment(w, format.contentType, filename, buf.Bytes())
	}
}

func (h *Handler) profitLossFor(w http.ResponseWriter, r *http.Request) (reports.ProfitLoss, bool) {
	p, err := parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, err)
		return reports.ProfitLoss{}, false
	}
	pl, err := h.profitLoss.GetProfitLoss(r.Context(), p.businessID, p.from, p.to, p.locationID)
	if err != nil {
		h.fail(w, r, "build profit and loss", err)
		return reports.ProfitLoss{}, false
	}
	return pl, true
}

func (h *Handler) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	pl, ok := h.profitLossFor(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) handleProfitLossXLSX(w http.ResponseWriter, r *http.Request) {
	pl, ok := h.profitLossFor(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := reports.WriteProfitLossXLSX(&buf, pl); err != nil {
		h.fail(w, r, "render profit and loss workbook", err)
		return
	}
	filename := fmt.Sprintf("profit_loss_%d_%s_%s.xlsx", pl.BusinessID, pl.From.Format("20060102"), pl.To.Format("20060102"))
	httpx.Attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, buf.Bytes())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(action, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
