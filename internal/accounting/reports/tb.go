package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountBalance aggregates the generated lines posted to one account.
type AccountBalance struct {
	Code   string                 `json:"code"`
	Name   string                 `json:"name"`
	Type   accounting.AccountType `json:"type"`
	Debit  decimal.Decimal        `json:"debit"`
	Credit decimal.Decimal        `json:"credit"`
}

// Net is the balance on the account's normal side.
func (a AccountBalance) Net() decimal.Decimal {
	acct := accounting.Account{Code: a.Code, Type: a.Type}
	if acct.DebitNormal() {
		return a.Debit.Sub(a.Credit)
	}
	return a.Credit.Sub(a.Debit)
}

// GroupKey returns the leading digit of the code: 1 assets, 2 liabilities and so on.
func (a AccountBalance) GroupKey() string {
	if a.Code == "" {
		return ""
	}
	return a.Code[:1]
}

// TrialBalanceGroup aggregates accounts sharing a GroupKey.
type TrialBalanceGroup struct {
	Key      string           `json:"key"`
	Accounts []AccountBalance `json:"accounts"`
	Debit    decimal.Decimal  `json:"debit"`
	Credit   decimal.Decimal  `json:"credit"`
}

// TrialBalance sums a set of generated journal entries per account.
type TrialBalance struct {
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	Balanced    bool                `json:"balanced"`
	Entries     int                 `json:"entries"`
}

// BuildTrialBalance groups journal lines by account and checks that total
// debits equal total credits within shared.BalanceTolerance.
func BuildTrialBalance(entries []accounting.JournalEntry) TrialBalance {
	byCode := make(map[string]*AccountBalance)
	for _, e := range entries {
		for _, l := range e.Lines {
			bal, ok := byCode[l.AccountCode]
			if !ok {
				acct, _ := accounting.LookupAccount(l.AccountCode)
				bal = &AccountBalance{Code: l.AccountCode, Name: l.AccountName, Type: acct.Type, Debit: decimal.Zero, Credit: decimal.Zero}
				byCode[l.AccountCode] = bal
			}
			bal.Debit = bal.Debit.Add(l.Debit)
			bal.Credit = bal.Credit.Add(l.Credit)
		}
	}

	groups := make(map[string]*TrialBalanceGroup)
	var keys []string
	for _, bal := range byCode {
		key := bal.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Accounts = append(grp.Accounts, *bal)
		grp.Debit = grp.Debit.Add(bal.Debit)
		grp.Credit = grp.Credit.Add(bal.Credit)
	}

	sort.Strings(keys)
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, Entries: len(entries)}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.Balanced = result.TotalDebit.Sub(result.TotalCredit).Abs().LessThanOrEqual(shared.BalanceTolerance)
	return result
}
