package shared

import "github.com/shopspring/decimal"

// BalanceTolerance is the accepted absolute gap between journal debit and
// credit totals.
var BalanceTolerance = decimal.RequireFromString("0.01")

// Round2 rounds a monetary amount to cents.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// FormatAmount renders a monetary amount with two fixed decimals.
func FormatAmount(v decimal.Decimal) string {
	return v.StringFixed(2)
}
