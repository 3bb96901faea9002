package reports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// ProfitLoss is the full-period statement with both COGS figures.
type ProfitLoss struct {
	BusinessID int64     `json:"business_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	LocationID *int64    `json:"location_id,omitempty"`

	OpeningStockPurchase decimal.Decimal `json:"opening_stock_purchase_value"`
	OpeningStockSale     decimal.Decimal `json:"opening_stock_sale_value"`
	ClosingStockPurchase decimal.Decimal `json:"closing_stock_purchase_value"`
	ClosingStockSale     decimal.Decimal `json:"closing_stock_sale_value"`

	TotalPurchases             decimal.Decimal `json:"total_purchases"`
	TotalPurchaseReturns       decimal.Decimal `json:"total_purchase_returns"`
	TotalPurchaseShipping      decimal.Decimal `json:"total_purchase_shipping"`
	TotalPurchaseDiscount      decimal.Decimal `json:"total_purchase_discount"`
	PurchaseAdditionalExpenses decimal.Decimal `json:"purchase_additional_expenses"`
	TotalSales                 decimal.Decimal `json:"total_sales"`
	TotalSellReturns           decimal.Decimal `json:"total_sell_returns"`
	TotalSellShipping          decimal.Decimal `json:"total_sell_shipping"`
	TotalSellDiscount          decimal.Decimal `json:"total_sell_discount"`
	SellAdditionalExpenses     decimal.Decimal `json:"sell_additional_expenses"`
	TotalCustomerReward        decimal.Decimal `json:"total_customer_reward"`
	TotalTransferShipping      decimal.Decimal `json:"total_transfer_shipping"`
	TotalExpenses              decimal.Decimal `json:"total_expenses"`
	TotalStockAdjustment       decimal.Decimal `json:"total_stock_adjustment"`
	TotalStockRecovered        decimal.Decimal `json:"total_stock_recovered"`

	COGS                decimal.Decimal `json:"cogs"`
	TraditionalCOGS     decimal.Decimal `json:"traditional_cogs"`
	COGSVariance        decimal.Decimal `json:"cogs_variance"`
	COGSVariancePercent decimal.Decimal `json:"cogs_variance_percent"`
	GrossProfit         decimal.Decimal `json:"gross_profit"`
	NetProfit           decimal.Decimal `json:"net_profit"`

	Warnings []string          `json:"warnings,omitempty"`
	Issues   []inventory.Issue `json:"issues,omitempty"`
}

// ProfitLossInput gathers what BuildProfitLoss combines.
type ProfitLossInput struct {
	BusinessID int64
	From       time.Time
	To         time.Time
	LocationID *int64
	Opening    inventory.StockValue
	Closing    inventory.StockValue
	Totals     documents.PeriodTotals
	ActualCOGS decimal.Decimal
	// VarianceWarnPercent adds a warning when the COGS variance exceeds it. Zero disables.
	VarianceWarnPercent decimal.Decimal
}

// ActualCOGS sums line quantity times unit cost over sales that count,
// leaving out void, cancelled and draft sales.
func ActualCOGS(sales []documents.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		if !s.Status.Counts() {
			continue
		}
		total = total.Add(s.COGS())
	}
	return total
}

// BuildProfitLoss derives COGS both ways, the variance between them, and the
// profit figures. It is pure.
func BuildProfitLoss(in ProfitLossInput) ProfitLoss {
	t := in.Totals
	pl := ProfitLoss{
		BusinessID: in.BusinessID,
		From:       in.From,
		To:         in.To,
		LocationID: in.LocationID,

		OpeningStockPurchase: in.Opening.PurchaseBasis,
		OpeningStockSale:     in.Opening.SaleBasis,
		ClosingStockPurchase: in.Closing.PurchaseBasis,
		ClosingStockSale:     in.Closing.SaleBasis,

		TotalPurchases:             t.TotalPurchases,
		TotalPurchaseReturns:       t.TotalPurchaseReturns,
		TotalPurchaseShipping:      t.TotalPurchaseShipping,
		TotalPurchaseDiscount:      t.TotalPurchaseDiscount,
		PurchaseAdditionalExpenses: t.PurchaseAdditionalExpenses,
		TotalSales:                 t.TotalSales,
		TotalSellReturns:           t.TotalSellReturns,
		TotalSellShipping:          t.TotalSellShipping,
		TotalSellDiscount:          t.TotalSellDiscount,
		SellAdditionalExpenses:     t.SellAdditionalExpenses,
		TotalCustomerReward:        t.TotalCustomerReward,
		TotalTransferShipping:      t.TotalTransferShipping,
		TotalExpenses:              t.TotalExpenses,
		TotalStockAdjustment:       t.TotalStockAdjustment,
		TotalStockRecovered:        t.TotalStockRecovered,

		COGS: shared.Round2(in.ActualCOGS),
	}

	pl.TraditionalCOGS = shared.Round2(pl.OpeningStockPurchase.
		Add(pl.TotalPurchases).
		Add(pl.TotalStockAdjustment).
		Sub(pl.ClosingStockPurchase).
		Sub(pl.TotalPurchaseReturns))

	pl.COGSVariance = pl.COGS.Sub(pl.TraditionalCOGS).Abs()
	pl.COGSVariancePercent = decimal.Zero
	if !pl.TraditionalCOGS.IsZero() {
		pl.COGSVariancePercent = pl.COGSVariance.Div(pl.TraditionalCOGS).Mul(hundred).Round(2)
	}

	pl.GrossProfit = pl.TotalSales.Sub(pl.COGS)
	pl.NetProfit = pl.GrossProfit.
		Sub(pl.TotalExpenses).
		Add(pl.TotalStockRecovered).
		Sub(pl.TotalSellDiscount).
		Sub(pl.TotalSellReturns).
		Add(pl.TotalSellShipping).
		Sub(pl.TotalPurchaseShipping).
		Sub(pl.TotalTransferShipping).
		Add(pl.TotalPurchaseDiscount).
		Sub(pl.PurchaseAdditionalExpenses).
		Sub(pl.SellAdditionalExpenses).
		Sub(pl.TotalCustomerReward)

	pl.Issues = append(append([]inventory.Issue(nil), in.Opening.Issues...), in.Closing.Issues...)
	if in.VarianceWarnPercent.IsPositive() && pl.COGSVariancePercent.Abs().GreaterThan(in.VarianceWarnPercent) {
		pl.Warnings = append(pl.Warnings, fmt.Sprintf(
			"COGS variance %s (%s%%) between sale-line cost %s and inventory formula %s exceeds %s%%",
			shared.FormatAmount(pl.COGSVariance), pl.COGSVariancePercent.StringFixed(2),
			shared.FormatAmount(pl.COGS), shared.FormatAmount(pl.TraditionalCOGS), in.VarianceWarnPercent.String()))
	}
	if len(pl.Issues) > 0 {
		pl.Warnings = append(pl.Warnings, fmt.Sprintf("%d stock position(s) with data-quality issues", len(pl.Issues)))
	}
	return pl
}
