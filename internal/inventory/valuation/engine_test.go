package valuation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

var start = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// ledger builds a consistent single-key ledger from (qty, cost) pairs; an empty
// cost means a sale row without cost.
func ledger(rows ...[2]string) []stockledger.Entry {
	store := stockledger.NewMemoryStore()
	out := make([]stockledger.Entry, 0, len(rows))
	for i, r := range rows {
		e := stockledger.Entry{
			BusinessID: 1, ProductID: 1, VariationID: 10, LocationID: 1,
			Type:           stockledger.TypeReceipt,
			QuantityChange: d(r[0]),
			CreatedAt:      start.Add(time.Duration(i) * time.Hour),
		}
		if e.QuantityChange.IsNegative() {
			e.Type = stockledger.TypeSale
		}
		if r[1] != "" {
			e.UnitCost = decimal.NewNullDecimal(d(r[1]))
		}
		out = append(out, store.Append(e))
	}
	return out
}

func hasIssue(issues []inventory.Issue, kind inventory.IssueKind) bool {
	for _, i := range issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

func TestEvaluateMethods(t *testing.T) {
	entries := ledger([2]string{"10", "5"}, [2]string{"10", "7"}, [2]string{"-15", ""})

	cases := []struct {
		method   Method
		consumed string
		value    string
		unit     string
	}{
		{MethodFIFO, "85", "35", "7"},
		{MethodLIFO, "95", "25", "5"},
		{MethodAVCO, "90", "30", "6"},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			res, err := Evaluate(tc.method, entries)
			require.NoError(t, err)
			require.True(t, d("5").Equal(res.CurrentQty))
			require.True(t, d(tc.consumed).Equal(res.ConsumedCost), "consumed %s", res.ConsumedCost)
			require.True(t, d(tc.value).Equal(res.TotalValue), "value %s", res.TotalValue)
			require.True(t, d(tc.unit).Equal(res.UnitCost), "unit %s", res.UnitCost)
			require.Empty(t, res.Issues)
		})
	}
}

func TestFullLiquidationCostsAllReceivedStock(t *testing.T) {
	entries := ledger(
		[2]string{"4", "3"},
		[2]string{"6", "5"},
		[2]string{"-7", ""},
		[2]string{"2", "8"},
		[2]string{"-5", ""},
	)
	for _, m := range []Method{MethodFIFO, MethodLIFO, MethodAVCO} {
		res, err := Evaluate(m, entries)
		require.NoError(t, err)
		require.True(t, res.CurrentQty.IsZero(), m)
		require.True(t, d("58").Equal(res.ReceivedCost))
		require.True(t, res.ReceivedCost.Equal(res.ConsumedCost), "%s consumed %s", m, res.ConsumedCost)
		require.True(t, res.TotalValue.IsZero())
	}
}

func TestFIFOSplitsLayersAcrossConsumptions(t *testing.T) {
	entries := ledger([2]string{"3", "2"}, [2]string{"3", "4"}, [2]string{"-2", ""}, [2]string{"-2", ""})
	res, err := Evaluate(MethodFIFO, entries)
	require.NoError(t, err)
	require.Len(t, res.Consumptions, 2)
	require.True(t, d("4").Equal(res.Consumptions[0].Cost))
	require.True(t, d("6").Equal(res.Consumptions[1].Cost))
	require.True(t, d("8").Equal(res.TotalValue))
}

func TestOversellCostsShortfallAtLastCost(t *testing.T) {
	entries := ledger([2]string{"2", "5"}, [2]string{"-5", ""})

	res, err := Evaluate(MethodFIFO, entries)
	require.NoError(t, err)
	require.True(t, d("25").Equal(res.ConsumedCost))
	require.True(t, d("3").Equal(res.Consumptions[0].Shortfall))
	require.True(t, d("-3").Equal(res.CurrentQty))
	require.True(t, res.TotalValue.IsZero())
	require.True(t, hasIssue(res.Issues, inventory.IssueNegativeStock))

	// stock received later first covers the deficit
	refill := append(entries, stockledger.Entry{
		SequenceID: 99, BusinessID: 1, ProductID: 1, VariationID: 10, LocationID: 1,
		Type: stockledger.TypeReceipt, QuantityChange: d("4"), BalanceQtyAfter: d("1"),
		UnitCost: decimal.NewNullDecimal(d("6")), CreatedAt: start.Add(5 * time.Hour),
	})
	res, err = Evaluate(MethodFIFO, refill)
	require.NoError(t, err)
	require.True(t, d("1").Equal(res.CurrentQty))
	require.True(t, d("6").Equal(res.TotalValue))
}

func TestOversellWithoutAnyCostIsZero(t *testing.T) {
	entries := ledger([2]string{"-4", ""})
	res, err := Evaluate(MethodLIFO, entries)
	require.NoError(t, err)
	require.True(t, res.ConsumedCost.IsZero())
	require.True(t, res.TotalValue.IsZero())
}

func TestAverageFromEmptyStockFlagsDivisionByZero(t *testing.T) {
	entries := ledger([2]string{"-2", ""}, [2]string{"5", "4"})
	res, err := Evaluate(MethodAVCO, entries)
	require.NoError(t, err)
	require.True(t, res.Consumptions[0].Cost.IsZero())
	require.True(t, hasIssue(res.Issues, inventory.IssueDivisionByZero))
	require.True(t, d("3").Equal(res.CurrentQty))
	require.True(t, d("12").Equal(res.TotalValue))
	require.True(t, d("4").Equal(res.UnitCost))
}

func TestInboundWithoutCostUsesCurrentCost(t *testing.T) {
	entries := ledger([2]string{"5", "4"}, [2]string{"5", ""})
	res, err := Evaluate(MethodFIFO, entries)
	require.NoError(t, err)
	require.True(t, d("40").Equal(res.TotalValue))
	require.True(t, hasIssue(res.Issues, inventory.IssueMissingUnitCost))
}

func TestEvaluateReportsChainBreak(t *testing.T) {
	entries := ledger([2]string{"5", "4"}, [2]string{"-1", ""})
	entries[1].BalanceQtyAfter = d("7")
	res, err := Evaluate(MethodAVCO, entries)
	require.NoError(t, err)
	require.True(t, hasIssue(res.Issues, inventory.IssueChainBreak))
	require.True(t, d("4").Equal(res.CurrentQty))
}

func TestEvaluateDoesNotReorderInput(t *testing.T) {
	entries := ledger([2]string{"5", "4"}, [2]string{"-1", ""})
	reversed := []stockledger.Entry{entries[1], entries[0]}
	res, err := Evaluate(MethodFIFO, reversed)
	require.NoError(t, err)
	require.Equal(t, entries[1].SequenceID, reversed[0].SequenceID)
	require.True(t, d("16").Equal(res.TotalValue))
}

func TestCostToConsume(t *testing.T) {
	entries := ledger([2]string{"10", "5"}, [2]string{"10", "7"})
	fifo, err := CostToConsume(MethodFIFO, entries, d("12"))
	require.NoError(t, err)
	require.True(t, d("64").Equal(fifo))
	lifo, err := CostToConsume(MethodLIFO, entries, d("12"))
	require.NoError(t, err)
	require.True(t, d("80").Equal(lifo))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" FIFO ")
	require.NoError(t, err)
	require.Equal(t, MethodFIFO, m)
	m, err = ParseMethod("weighted_average")
	require.NoError(t, err)
	require.Equal(t, MethodAVCO, m)
	_, err = ParseMethod("hifo")
	require.True(t, errors.Is(err, ErrUnknownMethod))
	_, err = Evaluate("hifo", nil)
	require.ErrorIs(t, err, ErrUnknownMethod)
}
