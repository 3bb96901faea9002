package valuation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

const defaultConcurrency = 8

// Service values a business's inventory per stock position.
type Service struct {
	ledger      stockledger.Store
	catalog     masterdata.Catalog
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs a valuation Service. concurrency bounds how many
// positions are costed at once.
func NewService(ledger stockledger.Store, catalog masterdata.Catalog, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, catalog: catalog, concurrency: concurrency, logger: logger, now: time.Now}
}

// GetInventoryValuation costs every position of req.BusinessID as of req.AsOf.
// Per-item data-quality problems are attached to the item; a ledger read failure
// fails the whole report.
func (s *Service) GetInventoryValuation(ctx context.Context, req Request) (Report, error) {
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return Report{}, err
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	const op = "valuation.get_inventory_valuation"

	keys, err := s.ledger.ListKeys(ctx, stockledger.ScanFilter{BusinessID: req.BusinessID, LocationID: req.LocationID, UpTo: asOf})
	if err != nil {
		return Report{}, shared.WrapOp(op, req.BusinessID, asOf, asOf, err)
	}

	results := make([]Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			entries, err := s.ledger.ListEntries(gctx, key.VariationID, key.LocationID, asOf)
			if err != nil {
				return fmt.Errorf("list entries %s: %w", key, err)
			}
			res, err := Evaluate(method, entries)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, shared.WrapOp(op, req.BusinessID, asOf, asOf, err)
	}

	variations, locations, err := s.lookup(ctx, req.BusinessID, keys)
	if err != nil {
		return Report{}, shared.WrapOp(op, req.BusinessID, asOf, asOf, err)
	}

	report := Report{
		BusinessID: req.BusinessID,
		Method:     method,
		AsOf:       asOf,
		LocationID: req.LocationID,
		Items:      make([]ItemValuation, 0, len(keys)),
		Summary:    Summary{TotalQty: decimal.Zero, TotalValue: decimal.Zero},
	}
	for i, key := range keys {
		res := results[i]
		item := ItemValuation{
			Key:        key,
			CurrentQty: res.CurrentQty,
			UnitCost:   res.UnitCost.Round(4),
			TotalValue: shared.Round2(res.TotalValue),
			Issues:     res.Issues,
		}
		if v, ok := variations[key.VariationID]; ok {
			item.ProductName = v.DisplayName()
			item.SKU = v.SKU
		} else {
			item.Issues = append(item.Issues, inventory.Issue{
				Kind:    inventory.IssueUnknownVariation,
				Key:     key,
				Message: "variation not found in catalog",
			})
		}
		if loc, ok := locations[key.LocationID]; ok {
			item.LocationName = loc.Name
		}
		report.Items = append(report.Items, item)
		report.Summary.Items++
		if item.CurrentQty.IsPositive() {
			report.Summary.TotalQty = report.Summary.TotalQty.Add(item.CurrentQty)
		}
		report.Summary.TotalValue = report.Summary.TotalValue.Add(item.TotalValue)
		if len(item.Issues) > 0 {
			report.Summary.FlaggedItems++
		}
	}
	sort.SliceStable(report.Items, func(i, j int) bool {
		a, b := report.Items[i], report.Items[j]
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		if a.Key.VariationID != b.Key.VariationID {
			return a.Key.VariationID < b.Key.VariationID
		}
		return a.Key.LocationID < b.Key.LocationID
	})

	if report.Summary.FlaggedItems > 0 {
		s.logger.Warn("inventory valuation data quality",
			slog.Int64("business_id", req.BusinessID),
			slog.String("method", string(method)),
			slog.Int("flagged_items", report.Summary.FlaggedItems))
	}
	return report, nil
}

// QuoteConsumption costs issuing req.Quantity from one position after replaying
// its ledger up to req.AsOf. Quantity beyond stock on hand is costed at the last
// known unit cost.
func (s *Service) QuoteConsumption(ctx context.Context, req ConsumptionRequest) (ConsumptionQuote, error) {
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return ConsumptionQuote{}, err
	}
	if !req.Quantity.IsPositive() {
		return ConsumptionQuote{}, fmt.Errorf("valuation: quantity must be positive: %w", shared.ErrInvalidInput)
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	entries, err := s.ledger.ListEntries(ctx, req.Key.VariationID, req.Key.LocationID, asOf)
	if err != nil {
		return ConsumptionQuote{}, fmt.Errorf("valuation: quote %s: %w", req.Key, err)
	}
	total, err := CostToConsume(method, entries, req.Quantity)
	if err != nil {
		return ConsumptionQuote{}, err
	}
	return ConsumptionQuote{
		Key:       req.Key,
		Method:    method,
		AsOf:      asOf,
		Quantity:  req.Quantity,
		TotalCost: shared.Round2(total),
		UnitCost:  total.Div(req.Quantity).Round(4),
	}, nil
}

func (s *Service) lookup(ctx context.Context, businessID int64, keys []stockledger.Key) (map[int64]masterdata.Variation, map[int64]masterdata.Location, error) {
	if s.catalog == nil || len(keys) == 0 {
		return nil, nil, nil
	}
	ids := make([]int64, 0, len(keys))
	seen := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k.VariationID]; !ok {
			seen[k.VariationID] = struct{}{}
			ids = append(ids, k.VariationID)
		}
	}
	variations, err := s.catalog.Variations(ctx, businessID, ids)
	if err != nil {
		return nil, nil, err
	}
	locations, err := s.catalog.Locations(ctx, businessID)
	if err != nil {
		return nil, nil, err
	}
	return variations, locations, nil
}
