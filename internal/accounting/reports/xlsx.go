package reports

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const plSheet = "Profit & Loss"

type plRow struct {
	label  string
	amount decimal.Decimal
	bold   bool
}

func profitLossRows(pl ProfitLoss) []plRow {
	return []plRow{
		{label: "Opening stock (purchase price)", amount: pl.OpeningStockPurchase},
		{label: "Opening stock (selling price)", amount: pl.OpeningStockSale},
		{label: "Total purchases", amount: pl.TotalPurchases},
		{label: "Purchase returns", amount: pl.TotalPurchaseReturns},
		{label: "Purchase shipping", amount: pl.TotalPurchaseShipping},
		{label: "Purchase discount", amount: pl.TotalPurchaseDiscount},
		{label: "Purchase additional expenses", amount: pl.PurchaseAdditionalExpenses},
		{label: "Stock adjustment", amount: pl.TotalStockAdjustment},
		{label: "Stock recovered", amount: pl.TotalStockRecovered},
		{label: "Transfer shipping", amount: pl.TotalTransferShipping},
		{label: "Expenses", amount: pl.TotalExpenses},
		{label: "Total sales", amount: pl.TotalSales},
		{label: "Sell returns", amount: pl.TotalSellReturns},
		{label: "Sell shipping", amount: pl.TotalSellShipping},
		{label: "Sell discount", amount: pl.TotalSellDiscount},
		{label: "Sell additional expenses", amount: pl.SellAdditionalExpenses},
		{label: "Customer reward", amount: pl.TotalCustomerReward},
		{label: "Closing stock (purchase price)", amount: pl.ClosingStockPurchase},
		{label: "Closing stock (selling price)", amount: pl.ClosingStockSale},
		{label: "COGS (sale lines)", amount: pl.COGS, bold: true},
		{label: "COGS (inventory formula)", amount: pl.TraditionalCOGS},
		{label: "COGS variance", amount: pl.COGSVariance},
		{label: "COGS variance %", amount: pl.COGSVariancePercent},
		{label: "Gross profit", amount: pl.GrossProfit, bold: true},
		{label: "Net profit", amount: pl.NetProfit, bold: true},
	}
}

// WriteProfitLossXLSX renders pl as a two column workbook.
func WriteProfitLossXLSX(w io.Writer, pl ProfitLoss) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", plSheet); err != nil {
		return fmt.Errorf("reports: xlsx sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("reports: xlsx style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("reports: xlsx style: %w", err)
	}

	period := fmt.Sprintf("%s to %s", pl.From.Format("2006-01-02"), pl.To.Format("2006-01-02"))
	header := [][]any{
		{"Profit & Loss", period},
		{"Business", pl.BusinessID},
		{},
		{"Line", "Amount"},
	}
	row := 1
	for _, values := range header {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(plSheet, cell, &values); err != nil {
			return fmt.Errorf("reports: xlsx header: %w", err)
		}
		row++
	}
	_ = f.SetCellStyle(plSheet, "A1", "A1", bold)
	_ = f.SetCellStyle(plSheet, "A4", "B4", bold)

	for _, r := range profitLossRows(pl) {
		label, _ := excelize.CoordinatesToCellName(1, row)
		amount, _ := excelize.CoordinatesToCellName(2, row)
		if err := f.SetCellValue(plSheet, label, r.label); err != nil {
			return fmt.Errorf("reports: xlsx row: %w", err)
		}
		if err := f.SetCellFloat(plSheet, amount, r.amount.InexactFloat64(), 2, 64); err != nil {
			return fmt.Errorf("reports: xlsx row: %w", err)
		}
		_ = f.SetCellStyle(plSheet, amount, amount, money)
		if r.bold {
			_ = f.SetCellStyle(plSheet, label, label, bold)
		}
		row++
	}

	if len(pl.Warnings) > 0 {
		row++
		for _, warning := range pl.Warnings {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			_ = f.SetCellValue(plSheet, cell, "Warning: "+warning)
			row++
		}
	}
	_ = f.SetColWidth(plSheet, "A", "A", 36)
	_ = f.SetColWidth(plSheet, "B", "B", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("reports: xlsx write: %w", err)
	}
	return nil
}
