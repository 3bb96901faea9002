package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

type failingStore struct {
	*stockledger.MemoryStore
	err error
}

func (f failingStore) ListEntries(context.Context, int64, int64, time.Time) ([]stockledger.Entry, error) {
	return nil, f.err
}

func seedStore() *stockledger.MemoryStore {
	store := stockledger.NewMemoryStore()
	add := func(variation, location int64, qty, unitCost string, hour int) {
		e := stockledger.Entry{
			BusinessID: 7, ProductID: variation / 10, VariationID: variation, LocationID: location,
			Type: stockledger.TypeReceipt, QuantityChange: d(qty),
			CreatedAt: start.Add(time.Duration(hour) * time.Hour),
		}
		if unitCost != "" {
			e.UnitCost = decimal.NewNullDecimal(d(unitCost))
		} else {
			e.Type = stockledger.TypeSale
		}
		store.Append(e)
	}
	add(10, 1, "10", "5", 0)
	add(10, 1, "-4", "", 1)
	add(20, 1, "3", "12", 2)
	add(20, 2, "2", "11", 3)
	add(30, 2, "-1", "", 4)
	add(10, 1, "100", "1", 48)
	return store
}

func testCatalog() masterdata.StaticCatalog {
	return masterdata.StaticCatalog{
		VariationsByID: map[int64]masterdata.Variation{
			10: {ID: 10, ProductID: 1, ProductName: "Widget", SKU: "W-1"},
			20: {ID: 20, ProductID: 2, ProductName: "Gadget", VariationName: "Blue", SKU: "G-2"},
		},
		LocationsByID: map[int64]masterdata.Location{
			1: {ID: 1, BusinessID: 7, Name: "Main"},
			2: {ID: 2, BusinessID: 7, Name: "Annex"},
		},
	}
}

func TestGetInventoryValuation(t *testing.T) {
	svc := NewService(seedStore(), testCatalog(), 2, nil)
	report, err := svc.GetInventoryValuation(context.Background(), Request{
		BusinessID: 7, Method: MethodFIFO, AsOf: start.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, MethodFIFO, report.Method)
	require.Len(t, report.Items, 4)
	require.Equal(t, 4, report.Summary.Items)
	// widget 6@5 + gadget 3@12 + gadget 2@11; the oversold variation 30 is valued at zero
	require.True(t, d("88").Equal(report.Summary.TotalValue), report.Summary.TotalValue.String())
	require.True(t, d("11").Equal(report.Summary.TotalQty))
	require.Equal(t, 1, report.Summary.FlaggedItems)

	var unknown ItemValuation
	for _, item := range report.Items {
		if item.Key.VariationID == 30 {
			unknown = item
		}
	}
	require.True(t, hasIssue(unknown.Issues, inventory.IssueUnknownVariation))
	require.True(t, hasIssue(unknown.Issues, inventory.IssueNegativeStock))
	require.True(t, unknown.TotalValue.IsZero())

	require.Equal(t, "Gadget - Blue", report.Items[1].ProductName)
}

func TestGetInventoryValuationFiltersLocation(t *testing.T) {
	svc := NewService(seedStore(), testCatalog(), 0, nil)
	loc := int64(2)
	report, err := svc.GetInventoryValuation(context.Background(), Request{
		BusinessID: 7, Method: MethodAVCO, AsOf: start.Add(24 * time.Hour), LocationID: &loc,
	})
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	for _, item := range report.Items {
		require.Equal(t, "Annex", item.LocationName)
	}
	require.True(t, d("22").Equal(report.Summary.TotalValue))
}

func TestGetInventoryValuationFailsOnLedgerError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewService(failingStore{MemoryStore: seedStore(), err: boom}, testCatalog(), 4, nil)
	_, err := svc.GetInventoryValuation(context.Background(), Request{
		BusinessID: 7, Method: MethodLIFO, AsOf: start.Add(24 * time.Hour),
	})
	require.ErrorIs(t, err, boom)
	var opErr *shared.OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, int64(7), opErr.BusinessID)
}

func TestGetInventoryValuationRejectsUnknownMethod(t *testing.T) {
	svc := NewService(seedStore(), testCatalog(), 1, nil)
	_, err := svc.GetInventoryValuation(context.Background(), Request{BusinessID: 7, Method: "hifo"})
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestQuoteConsumption(t *testing.T) {
	svc := NewService(seedStore(), testCatalog(), 1, nil)
	key := stockledger.Key{VariationID: 10, LocationID: 1}

	// 6@5 on hand; the 2 beyond it are costed at the last cost
	quote, err := svc.QuoteConsumption(context.Background(), ConsumptionRequest{
		Key: key, Method: MethodFIFO, AsOf: start.Add(24 * time.Hour), Quantity: d("8"),
	})
	require.NoError(t, err)
	require.True(t, d("40").Equal(quote.TotalCost), quote.TotalCost.String())
	require.True(t, d("5").Equal(quote.UnitCost))
	require.Equal(t, start.Add(24*time.Hour), quote.AsOf)

	// the later 100@1 receipt is on top of the LIFO stack
	quote, err = svc.QuoteConsumption(context.Background(), ConsumptionRequest{
		Key: key, Method: MethodLIFO, AsOf: start.Add(72 * time.Hour), Quantity: d("10"),
	})
	require.NoError(t, err)
	require.True(t, d("10").Equal(quote.TotalCost), quote.TotalCost.String())

	_, err = svc.QuoteConsumption(context.Background(), ConsumptionRequest{Key: key, Method: MethodFIFO, Quantity: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.QuoteConsumption(context.Background(), ConsumptionRequest{Key: key, Method: "hifo", Quantity: d("1")})
	require.ErrorIs(t, err, ErrUnknownMethod)

	boom := errors.New("ledger offline")
	failing := NewService(failingStore{MemoryStore: seedStore(), err: boom}, nil, 1, nil)
	_, err = failing.QuoteConsumption(context.Background(), ConsumptionRequest{Key: key, Method: MethodAVCO, Quantity: d("1")})
	require.ErrorIs(t, err, boom)
}
