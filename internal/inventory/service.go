package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

// Service reconstructs point-in-time inventory state from the stock ledger.
type Service struct {
	ledger  stockledger.Store
	catalog masterdata.Catalog
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(ledger stockledger.Store, catalog masterdata.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, catalog: catalog, logger: logger}
}

// LatestAsOf returns the authoritative balance of key at instant at. A key with no
// entries yet yields a zero, not-found balance.
func (s *Service) LatestAsOf(ctx context.Context, key stockledger.Key, at time.Time) (Balance, error) {
	if key.VariationID == 0 || key.LocationID == 0 {
		return Balance{}, ErrInvalidKey
	}
	entries, err := s.ledger.ListEntries(ctx, key.VariationID, key.LocationID, at)
	if err != nil {
		return Balance{}, err
	}
	latest, ok := stockledger.Latest(entries, at)
	if !ok {
		return Balance{Key: key, Qty: decimal.Zero}, nil
	}
	return balanceFrom(latest), nil
}

// BalancesAsOf scans the ledger once and keeps the best entry per key.
func (s *Service) BalancesAsOf(ctx context.Context, filter stockledger.ScanFilter) (map[stockledger.Key]Balance, error) {
	best := make(map[stockledger.Key]stockledger.Entry)
	err := s.ledger.ScanEntries(ctx, filter, func(e stockledger.Entry) error {
		if e.CreatedAt.After(filter.UpTo) {
			return nil
		}
		current, ok := best[e.Key()]
		if !ok || current.Before(e) {
			best[e.Key()] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[stockledger.Key]Balance, len(best))
	for key, e := range best {
		out[key] = balanceFrom(e)
	}
	return out, nil
}

// ValueAsOf values every position of a business at instant at. Positions with a
// non-positive balance contribute nothing; negative ones are reported as issues.
func (s *Service) ValueAsOf(ctx context.Context, businessID int64, at time.Time, locationID *int64) (StockValue, error) {
	balances, err := s.BalancesAsOf(ctx, stockledger.ScanFilter{BusinessID: businessID, LocationID: locationID, UpTo: at})
	if err != nil {
		return StockValue{}, shared.WrapOp("inventory.value_as_of", businessID, at, at, err)
	}

	keys := sortedKeys(balances)
	variationIDs := make([]int64, 0, len(keys))
	seen := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k.VariationID]; ok {
			continue
		}
		seen[k.VariationID] = struct{}{}
		variationIDs = append(variationIDs, k.VariationID)
	}
	variations := map[int64]masterdata.Variation{}
	if s.catalog != nil && len(variationIDs) > 0 {
		variations, err = s.catalog.Variations(ctx, businessID, variationIDs)
		if err != nil {
			return StockValue{}, shared.WrapOp("inventory.value_as_of", businessID, at, at, err)
		}
	}

	value := StockValue{AsOf: at, PurchaseBasis: decimal.Zero, SaleBasis: decimal.Zero}
	for _, key := range keys {
		bal := balances[key]
		if bal.Qty.IsNegative() {
			value.Issues = append(value.Issues, Issue{
				Kind:       IssueNegativeStock,
				Key:        key,
				SequenceID: bal.SequenceID,
				Message:    fmt.Sprintf("balance %s valued at zero", bal.Qty.String()),
			})
			continue
		}
		if !bal.Qty.IsPositive() {
			continue
		}
		variation, known := variations[key.VariationID]
		cost := decimal.Zero
		switch {
		case bal.UnitCost.Valid:
			cost = bal.UnitCost.Decimal
		case known:
			cost = variation.PurchasePrice
		default:
			value.Issues = append(value.Issues, Issue{
				Kind:       IssueMissingUnitCost,
				Key:        key,
				SequenceID: bal.SequenceID,
				Message:    "no unit cost and no configured purchase price; costed at zero",
			})
		}
		if !known {
			value.Issues = append(value.Issues, Issue{
				Kind:    IssueUnknownVariation,
				Key:     key,
				Message: "variation not found; sale basis valued at zero",
			})
		}
		value.PurchaseBasis = value.PurchaseBasis.Add(bal.Qty.Mul(cost))
		value.SaleBasis = value.SaleBasis.Add(bal.Qty.Mul(variation.SellingPrice))
		value.Positions++
	}
	value.PurchaseBasis = shared.Round2(value.PurchaseBasis)
	value.SaleBasis = shared.Round2(value.SaleBasis)
	if len(value.Issues) > 0 {
		s.logger.Warn("inventory valuation data quality",
			slog.Int64("business_id", businessID),
			slog.Time("as_of", at),
			slog.Int("issues", len(value.Issues)))
	}
	return value, nil
}

// StockCard lists the movements of key between from and to (inclusive) with the
// opening balance just before from.
func (s *Service) StockCard(ctx context.Context, key stockledger.Key, from, to time.Time) (StockCard, error) {
	if key.VariationID == 0 || key.LocationID == 0 {
		return StockCard{}, ErrInvalidKey
	}
	if to.Before(from) {
		return StockCard{}, shared.ErrInvalidRange
	}
	entries, err := s.ledger.ListEntries(ctx, key.VariationID, key.LocationID, to)
	if err != nil {
		return StockCard{}, err
	}
	stockledger.Sort(entries)
	card := StockCard{Key: key, From: from, To: to, Opening: Balance{Key: key, Qty: decimal.Zero}}
	if opening, ok := stockledger.Latest(entries, from.Add(-time.Nanosecond)); ok {
		card.Opening = balanceFrom(opening)
	}
	card.Closing = card.Opening
	for _, e := range entries {
		if e.CreatedAt.Before(from) {
			continue
		}
		row := StockCardEntry{
			SequenceID: e.SequenceID,
			Type:       e.Type,
			At:         e.CreatedAt,
			QtyIn:      decimal.Zero,
			QtyOut:     decimal.Zero,
			BalanceQty: e.BalanceQtyAfter,
			UnitCost:   e.UnitCost,
		}
		if e.QuantityChange.IsPositive() {
			row.QtyIn = e.QuantityChange
		} else {
			row.QtyOut = e.QuantityChange.Neg()
		}
		card.Entries = append(card.Entries, row)
		card.Closing = balanceFrom(e)
	}
	return card, nil
}

func balanceFrom(e stockledger.Entry) Balance {
	return Balance{
		Key:        e.Key(),
		Qty:        e.BalanceQtyAfter,
		UnitCost:   e.UnitCost,
		SequenceID: e.SequenceID,
		At:         e.CreatedAt,
		Found:      true,
	}
}

func sortedKeys(balances map[stockledger.Key]Balance) []stockledger.Key {
	keys := make([]stockledger.Key, 0, len(balances))
	for k := range balances {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID < keys[j].ProductID
		}
		if keys[i].VariationID != keys[j].VariationID {
			return keys[i].VariationID < keys[j].VariationID
		}
		return keys[i].LocationID < keys[j].LocationID
	})
	return keys
}
