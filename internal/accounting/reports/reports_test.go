package reports

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/reportcache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func value(purchase, sale string) inventory.StockValue {
	return inventory.StockValue{PurchaseBasis: d(purchase), SaleBasis: d(sale)}
}

func TestBuildProfitLossVariance(t *testing.T) {
	totals := documents.ZeroTotals()
	totals.TotalPurchases = d("500")
	pl := BuildProfitLoss(ProfitLossInput{
		Opening:             value("1000", "1800"),
		Closing:             value("800", "1500"),
		Totals:              totals,
		ActualCOGS:          d("650"),
		VarianceWarnPercent: d("5"),
	})
	require.True(t, d("700").Equal(pl.TraditionalCOGS))
	require.True(t, d("650").Equal(pl.COGS))
	require.True(t, d("50").Equal(pl.COGSVariance))
	require.Equal(t, "7.14", pl.COGSVariancePercent.StringFixed(2))
	require.Len(t, pl.Warnings, 1)

	quiet := BuildProfitLoss(ProfitLossInput{Opening: value("1000", "0"), Closing: value("800", "0"), Totals: totals,
		ActualCOGS: d("650"), VarianceWarnPercent: d("10")})
	require.Empty(t, quiet.Warnings)
}

func TestBuildProfitLossZeroTraditionalCOGS(t *testing.T) {
	pl := BuildProfitLoss(ProfitLossInput{Totals: documents.ZeroTotals(), ActualCOGS: d("12")})
	require.True(t, pl.TraditionalCOGS.IsZero())
	require.True(t, d("12").Equal(pl.COGSVariance))
	require.True(t, pl.COGSVariancePercent.IsZero())
}

func TestBuildProfitLossNetProfitFormula(t *testing.T) {
	totals := documents.PeriodTotals{
		TotalPurchases:             d("400"),
		TotalPurchaseReturns:       d("10"),
		TotalPurchaseShipping:      d("7"),
		TotalPurchaseDiscount:      d("3"),
		PurchaseAdditionalExpenses: d("2"),
		TotalSales:                 d("1000"),
		TotalSellReturns:           d("20"),
		TotalSellShipping:          d("15"),
		TotalSellDiscount:          d("25"),
		SellAdditionalExpenses:     d("4"),
		TotalCustomerReward:        d("6"),
		TotalTransferShipping:      d("5"),
		TotalExpenses:              d("100"),
		TotalStockAdjustment:       d("-30"),
		TotalStockRecovered:        d("8"),
	}
	pl := BuildProfitLoss(ProfitLossInput{Opening: value("200", "0"), Closing: value("150", "0"), Totals: totals, ActualCOGS: d("410")})

	// 200 + 400 - 30 - 150 - 10
	require.True(t, d("410").Equal(pl.TraditionalCOGS))
	require.True(t, pl.COGSVariance.IsZero())
	require.True(t, d("590").Equal(pl.GrossProfit))
	// 590 - 100 + 8 - 25 - 20 + 15 - 7 - 5 + 3 - 2 - 4 - 6
	require.True(t, d("447").Equal(pl.NetProfit), pl.NetProfit.String())
}

func TestActualCOGSSkipsVoidAndCancelled(t *testing.T) {
	line := []documents.SaleLine{{Quantity: d("2"), UnitCost: d("10")}}
	sales := []documents.Sale{
		{ID: 1, Status: documents.SaleFinal, Lines: line},
		{ID: 2, Status: documents.SaleVoid, Lines: line},
		{ID: 3, Status: documents.SaleCancelled, Lines: line},
		{ID: 4, Status: documents.SaleFinal, Lines: []documents.SaleLine{{Quantity: d("1.5"), UnitCost: d("4")}}},
	}
	require.True(t, d("26").Equal(ActualCOGS(sales)))
}

var march = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func fixture() (*inventory.Service, *documents.Memory) {
	ledger := stockledger.NewMemoryStore()
	entry := func(qty, unitCost string, at time.Time) {
		e := stockledger.Entry{BusinessID: 1, ProductID: 1, VariationID: 10, LocationID: 1,
			Type: stockledger.TypeReceipt, QuantityChange: d(qty), CreatedAt: at}
		if unitCost != "" {
			e.UnitCost = decimal.NewNullDecimal(d(unitCost))
		} else {
			e.Type = stockledger.TypeSale
		}
		ledger.Append(e)
	}
	entry("100", "10", march.Add(-48*time.Hour))
	entry("50", "10", march)
	entry("-60", "", march.Add(10*24*time.Hour))

	catalog := masterdata.StaticCatalog{VariationsByID: map[int64]masterdata.Variation{
		10: {ID: 10, ProductID: 1, ProductName: "Widget", PurchasePrice: d("10"), SellingPrice: d("18")},
	}}
	stock := inventory.NewService(ledger, catalog, nil)

	docs := documents.NewMemory()
	docs.Add(
		documents.PurchaseReceipt{ID: 1, BusinessID: 1, LocationID: 1, ReceivedAt: march,
			Lines: []documents.ReceiptLine{{VariationID: 10, AcceptedQty: d("50"), UnitCost: d("10")}}},
		documents.Sale{ID: 1, BusinessID: 1, LocationID: 1, TransactionDate: march.Add(10 * 24 * time.Hour),
			Status: documents.SaleFinal, Total: d("1080"),
			Lines: []documents.SaleLine{{VariationID: 10, Quantity: d("60"), UnitPrice: d("18"), UnitCost: d("10")}}},
		documents.Expense{ID: 1, BusinessID: 1, LocationID: 1, Date: march.Add(24 * time.Hour), Amount: d("80")},
	)
	return stock, docs
}

func TestAggregatorGetProfitLoss(t *testing.T) {
	stock, docs := fixture()
	agg := NewAggregator(stock, docs, nil, Config{Timeout: time.Second}, nil)

	pl, err := agg.GetProfitLoss(context.Background(), 1, march, march.AddDate(0, 0, 30), nil)
	require.NoError(t, err)
	// the receipt stamped exactly at start of day is a period purchase, not opening stock
	require.True(t, d("1000").Equal(pl.OpeningStockPurchase), pl.OpeningStockPurchase.String())
	require.True(t, d("500").Equal(pl.TotalPurchases))
	require.True(t, d("900").Equal(pl.ClosingStockPurchase))
	require.True(t, d("1620").Equal(pl.ClosingStockSale))
	require.True(t, d("600").Equal(pl.COGS))
	require.True(t, d("600").Equal(pl.TraditionalCOGS), pl.TraditionalCOGS.String())
	require.True(t, pl.COGSVariance.IsZero())
	require.True(t, d("480").Equal(pl.GrossProfit))
	require.True(t, d("400").Equal(pl.NetProfit))
	require.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC), pl.To)
}

func TestAggregatorCachesWithinTTL(t *testing.T) {
	stock, docs := fixture()
	cache := reportcache.New[ProfitLoss](reportcache.Options{})
	agg := NewAggregator(stock, docs, cache, Config{}, nil)
	ctx := context.Background()

	first, err := agg.GetProfitLoss(ctx, 1, march, march.AddDate(0, 0, 30), nil)
	require.NoError(t, err)
	docs.Add(documents.Expense{ID: 2, BusinessID: 1, LocationID: 1, Date: march.Add(48 * time.Hour), Amount: d("1000")})
	second, err := agg.GetProfitLoss(ctx, 1, march, march.AddDate(0, 0, 30), nil)
	require.NoError(t, err)
	require.True(t, first.NetProfit.Equal(second.NetProfit))

	uncached := NewAggregator(stock, docs, nil, Config{}, nil)
	fresh, err := uncached.GetProfitLoss(ctx, 1, march, march.AddDate(0, 0, 30), nil)
	require.NoError(t, err)
	require.True(t, d("-600").Equal(fresh.NetProfit))

	loc := int64(1)
	byLocation, err := agg.GetProfitLoss(ctx, 1, march, march.AddDate(0, 0, 30), &loc)
	require.NoError(t, err)
	require.True(t, fresh.NetProfit.Equal(byLocation.NetProfit))
}

func TestAggregatorReadsDatesInReportLocation(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	stock, docs := fixture()
	agg := NewAggregator(stock, docs, nil, Config{Location: newYork}, nil)

	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	pl, err := agg.GetProfitLoss(context.Background(), 1, day, day, nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, newYork), pl.From)
	require.Equal(t, time.Date(2025, 1, 10, 23, 59, 59, 999999999, newYork), pl.To)
}

type slowValuer struct{ calls atomic.Int32 }

func (s *slowValuer) ValueAsOf(ctx context.Context, _ int64, at time.Time, _ *int64) (inventory.StockValue, error) {
	s.calls.Add(1)
	select {
	case <-ctx.Done():
		return inventory.StockValue{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return inventory.StockValue{AsOf: at}, nil
	}
}

func TestAggregatorHonoursTimeout(t *testing.T) {
	_, docs := fixture()
	agg := NewAggregator(&slowValuer{}, docs, nil, Config{Timeout: 20 * time.Millisecond}, nil)
	_, err := agg.GetProfitLoss(context.Background(), 1, march, march.AddDate(0, 0, 30), nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	var opErr *shared.OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "reports.get_profit_loss", opErr.Op)
}

func TestAggregatorPropagatesDataSourceFailure(t *testing.T) {
	stock, docs := fixture()
	boom := errors.New("relation does not exist")
	docs.FailWith(boom)
	agg := NewAggregator(stock, docs, reportcache.New[ProfitLoss](reportcache.Options{}), Config{}, nil)
	_, err := agg.GetProfitLoss(context.Background(), 1, march, march.AddDate(0, 0, 30), nil)
	require.ErrorIs(t, err, boom)
}

func TestAggregatorRejectsInvertedRange(t *testing.T) {
	stock, docs := fixture()
	agg := NewAggregator(stock, docs, nil, Config{}, nil)
	_, err := agg.GetProfitLoss(context.Background(), 1, march, march.AddDate(0, 0, -1), nil)
	require.ErrorIs(t, err, shared.ErrInvalidRange)
}

func TestBuildTrialBalance(t *testing.T) {
	customer := int64(1)
	var entries []accounting.JournalEntry
	for _, src := range []documents.Source{
		documents.PurchaseReceipt{ID: 1, BusinessID: 1, Lines: []documents.ReceiptLine{{AcceptedQty: d("10"), UnitCost: d("5")}}},
		documents.Sale{ID: 2, BusinessID: 1, CustomerID: &customer, Total: d("150"),
			Lines: []documents.SaleLine{{Quantity: d("3"), UnitCost: d("20")}}},
	} {
		generated, err := accounting.Generate(src)
		require.NoError(t, err)
		entries = append(entries, generated...)
	}

	tb := BuildTrialBalance(entries)
	require.True(t, tb.Balanced)
	require.Equal(t, 3, tb.Entries)
	require.True(t, d("260").Equal(tb.TotalDebit))
	require.True(t, d("260").Equal(tb.TotalCredit))
	require.Len(t, tb.Groups, 4)
	require.Equal(t, "1", tb.Groups[0].Key)
	require.Equal(t, accounting.AccountReceivable, tb.Groups[0].Accounts[0].Code)
	inventoryRow := tb.Groups[0].Accounts[1]
	require.Equal(t, accounting.AccountInventory, inventoryRow.Code)
	require.True(t, d("-10").Equal(inventoryRow.Net()))
	require.True(t, d("150").Equal(tb.Groups[2].Accounts[0].Net()))
}

func TestWriteProfitLossXLSX(t *testing.T) {
	totals := documents.ZeroTotals()
	totals.TotalSales = d("1000")
	pl := BuildProfitLoss(ProfitLossInput{From: march, To: march.AddDate(0, 0, 30), Totals: totals, ActualCOGS: d("400"),
		Opening: value("0", "0"), Closing: value("0", "0"), VarianceWarnPercent: d("1")})

	var buf bytes.Buffer
	require.NoError(t, WriteProfitLossXLSX(&buf, pl))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(plSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, "Profit & Loss", rows[0][0])
	require.Equal(t, "2025-03-01 to 2025-03-31", rows[0][1])

	found := map[string]string{}
	for _, r := range rows {
		if len(r) == 2 {
			found[r[0]] = r[1]
		}
	}
	require.Equal(t, "600.00", found["Gross profit"])
	require.Equal(t, "400.00", found["COGS (sale lines)"])
}
