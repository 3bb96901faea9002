// Package inventoryhttp serves point-in-time stock balances, stock cards and
// inventory valuation.
package inventoryhttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory/valuation"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

// StockService reconstructs balances from the ledger.
type StockService interface {
	LatestAsOf(ctx context.Context, key stockledger.Key, at time.Time) (inventory.Balance, error)
	StockCard(ctx context.Context, key stockledger.Key, from, to time.Time) (inventory.StockCard, error)
}

// ValuationService values inventory with a costing method.
type ValuationService interface {
	GetInventoryValuation(ctx context.Context, req valuation.Request) (valuation.Report, error)
	QuoteConsumption(ctx context.Context, req valuation.ConsumptionRequest) (valuation.ConsumptionQuote, error)
}

// Handler wires inventory endpoints.
type Handler struct {
	logger    *slog.Logger
	stock     StockService
	valuation ValuationService
	location  *time.Location
	now       func() time.Time
}

// NewHandler constructs the handler. Bare dates resolve to end of day in loc.
func NewHandler(logger *slog.Logger, stock StockService, valuation ValuationService, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{logger: logger, stock: stock, valuation: valuation, location: loc, now: time.Now}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/balance", h.handleBalance)
		r.Get("/stock-card", h.handleStockCard)
		r.Get("/valuation", h.handleValuation)
		r.Get("/consumption-cost", h.handleConsumptionCost)
	})
}

type positionParams struct {
	BusinessID  int64 `validate:"required,gt=0"`
	VariationID int64 `validate:"required,gt=0"`
	LocationID  int64 `validate:"required,gt=0"`
}

func parsePosition(r *http.Request) (positionParams, error) {
	var (
		p   positionParams
		err error
	)
	if p.BusinessID, err = httpx.QueryInt64(r, "business_id"); err != nil {
		return p, err
	}
	if p.VariationID, err = httpx.QueryInt64(r, "variation_id"); err != nil {
		return p, err
	}
	if p.LocationID, err = httpx.QueryInt64(r, "location_id"); err != nil {
		return p, err
	}
	return p, httpx.Validate(p)
}

type balanceView struct {
	AsOf time.Time `json:"as_of"`
	inventory.Balance
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	p, err := parsePosition(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	at, err := httpx.ParseInstant(r.URL.Query().Get("as_of"), h.location, h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := stockledger.Key{VariationID: p.VariationID, LocationID: p.LocationID}
	bal, err := h.stock.LatestAsOf(r.Context(), key, at)
	if err != nil {
		h.fail(w, r, "latest balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceView{AsOf: at, Balance: bal})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	p, err := parsePosition(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	from, err := httpx.ParseDate(q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.ParseInstant(q.Get("to"), h.location, h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := stockledger.Key{VariationID: p.VariationID, LocationID: p.LocationID}
	card, err := h.stock.StockCard(r.Context(), key, time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, h.location), to)
	if err != nil {
		h.fail(w, r, "stock card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

type valuationParams struct {
	BusinessID int64  `validate:"required,gt=0"`
	Method     string `validate:"omitempty,max=32"`
	LocationID int64  `validate:"gte=0"`
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := valuationParams{Method: strings.TrimSpace(q.Get("method"))}
	var err error
	if p.BusinessID, err = httpx.QueryInt64(r, "business_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if p.LocationID, err = httpx.QueryInt64(r, "location_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(p); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if p.Method == "" {
		p.Method = string(valuation.MethodFIFO)
	}
	method, err := valuation.ParseMethod(p.Method)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.ParseInstant(q.Get("as_of"), h.location, h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	report, err := h.valuation.GetInventoryValuation(r.Context(), valuation.Request{
		BusinessID: p.BusinessID,
		Method:     method,
		AsOf:       asOf,
		LocationID: httpx.OptionalID(p.LocationID),
	})
	if err != nil {
		h.fail(w, r, "inventory valuation", err)
		return
	}
	if report.Items == nil {
		report.Items = []valuation.ItemValuation{}
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleConsumptionCost(w http.ResponseWriter, r *http.Request) {
	p, err := parsePosition(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("method"))
	if raw == "" {
		raw = string(valuation.MethodFIFO)
	}
	method, err := valuation.ParseMethod(raw)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(q.Get("qty")))
	if err != nil || !qty.IsPositive() {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "qty must be a positive number")
		return
	}
	asOf, err := httpx.ParseInstant(q.Get("as_of"), h.location, h.now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	quote, err := h.valuation.QuoteConsumption(r.Context(), valuation.ConsumptionRequest{
		Key:      stockledger.Key{VariationID: p.VariationID, LocationID: p.LocationID},
		Method:   method,
		AsOf:     asOf,
		Quantity: qty,
	})
	if err != nil {
		h.fail(w, r, "consumption cost", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(action, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
