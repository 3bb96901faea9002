package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/reportcache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// StockValuer values inventory at an instant; inventory.Service satisfies it.
type StockValuer interface {
	ValueAsOf(ctx context.Context, businessID int64, at time.Time, locationID *int64) (inventory.StockValue, error)
}

// Config tunes the Aggregator.
type Config struct {
	Location            *time.Location
	Timeout             time.Duration
	VarianceWarnPercent decimal.Decimal
}

// Aggregator builds profit and loss statements.
type Aggregator struct {
	stock  StockValuer
	docs   documents.PeriodReader
	cache  *reportcache.Cache[ProfitLoss]
	cfg    Config
	logger *slog.Logger
}

// NewAggregator wires the aggregator. cache may be nil.
func NewAggregator(stock StockValuer, docs documents.PeriodReader, cache *reportcache.Cache[ProfitLoss], cfg Config, logger *slog.Logger) *Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{stock: stock, docs: docs, cache: cache, cfg: cfg, logger: logger}
}

// GetProfitLoss reports on the calendar days from..to inclusive, read as dates in
// the configured location. Opening stock is the position just before the period
// starts, closing stock the position at the end of to.
func (a *Aggregator) GetProfitLoss(ctx context.Context, businessID int64, from, to time.Time, locationID *int64) (ProfitLoss, error) {
	rng := shared.DateRange{From: from, To: to}
	if err := rng.Validate(); err != nil {
		return ProfitLoss{}, err
	}
	start, end := rng.Start(a.cfg.Location), rng.End(a.cfg.Location)

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	key := reportcache.Key{Report: "profit_loss", BusinessID: businessID, Start: start, End: end, LocationID: locationID}
	return a.cache.Do(ctx, key, func(ctx context.Context) (ProfitLoss, error) {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		return a.build(ctx, businessID, start, end, locationID)
	})
}

func (a *Aggregator) build(ctx context.Context, businessID int64, start, end time.Time, locationID *int64) (ProfitLoss, error) {
	const op = "reports.get_profit_loss"
	filter := documents.PeriodFilter{BusinessID: businessID, From: start, To: end, LocationID: locationID}

	var (
		opening, closing inventory.StockValue
		sales            []documents.Sale
		totals           documents.PeriodTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		// rows stamped exactly at start belong to the period totals
		opening, err = a.stock.ValueAsOf(gctx, businessID, start.Add(-time.Nanosecond), locationID)
		return err
	})
	g.Go(func() (err error) {
		closing, err = a.stock.ValueAsOf(gctx, businessID, end, locationID)
		return err
	})
	g.Go(func() (err error) {
		sales, err = a.docs.ListSales(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		totals, err = a.docs.PeriodTotals(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return ProfitLoss{}, shared.WrapOp(op, businessID, start, end, err)
	}

	pl := BuildProfitLoss(ProfitLossInput{
		BusinessID:          businessID,
		From:                start,
		To:                  end,
		LocationID:          locationID,
		Opening:             opening,
		Closing:             closing,
		Totals:              totals,
		ActualCOGS:          ActualCOGS(sales),
		VarianceWarnPercent: a.cfg.VarianceWarnPercent,
	})
	if len(pl.Warnings) > 0 {
		a.logger.Warn("profit and loss data quality",
			slog.Int64("business_id", businessID),
			slog.Time("from", start),
			slog.Time("to", end),
			slog.String("cogs_variance", pl.COGSVariance.StringFixed(2)),
			slog.String("cogs_variance_percent", pl.COGSVariancePercent.StringFixed(2)),
			slog.Any("warnings", pl.Warnings))
	}
	return pl, nil
}
