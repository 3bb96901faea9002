package accounting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ValidationResult reports why an entry is not postable. It is a value, never an error.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks that entry balances within shared.BalanceTolerance, has at
// least two lines, and has at least one debit and one credit.
func Validate(entry JournalEntry) ValidationResult {
	var errs []string
	if len(entry.Lines) < 2 {
		errs = append(errs, fmt.Sprintf("entry has %d line(s); at least 2 required", len(entry.Lines)))
	}

	debits, credits := decimal.Zero, decimal.Zero
	hasDebit, hasCredit := false, false
	for i, l := range entry.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			errs = append(errs, fmt.Sprintf("line %d (%s): negative amount", i+1, l.AccountCode))
		}
		if !l.Debit.IsZero() && !l.Credit.IsZero() {
			errs = append(errs, fmt.Sprintf("line %d (%s): both debit and credit set", i+1, l.AccountCode))
		}
		if l.Debit.IsZero() && l.Credit.IsZero() {
			errs = append(errs, fmt.Sprintf("line %d (%s): zero amount", i+1, l.AccountCode))
		}
		if _, ok := LookupAccount(l.AccountCode); !ok {
			errs = append(errs, fmt.Sprintf("line %d: unknown account %q", i+1, l.AccountCode))
		}
		hasDebit = hasDebit || l.Debit.IsPositive()
		hasCredit = hasCredit || l.Credit.IsPositive()
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	if !hasDebit {
		errs = append(errs, "no debit line")
	}
	if !hasCredit {
		errs = append(errs, "no credit line")
	}
	if !debits.Equal(entry.TotalDebit) || !credits.Equal(entry.TotalCredit) {
		errs = append(errs, fmt.Sprintf("totals %s/%s do not match lines %s/%s",
			shared.FormatAmount(entry.TotalDebit), shared.FormatAmount(entry.TotalCredit),
			shared.FormatAmount(debits), shared.FormatAmount(credits)))
	}
	if diff := entry.TotalDebit.Sub(entry.TotalCredit).Abs(); diff.GreaterThan(shared.BalanceTolerance) {
		errs = append(errs, fmt.Sprintf("unbalanced: debit %s, credit %s, difference %s",
			shared.FormatAmount(entry.TotalDebit), shared.FormatAmount(entry.TotalCredit), shared.FormatAmount(diff)))
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
