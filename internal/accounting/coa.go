package accounting

import "sort"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account codes of the fixed chart used by generated journals.
const (
	AccountCash                = "1000"
	AccountReceivable          = "1100"
	AccountInventory           = "1200"
	AccountPayable             = "2000"
	AccountSalesRevenue        = "4000"
	AccountCOGS                = "5000"
	AccountPurchases           = "5100"
	AccountInventoryAdjustment = "5200"
	AccountInventoryShrinkage  = "5210"
	AccountInventoryWriteOff   = "5220"
)

// Account is one node of the chart of accounts.
type Account struct {
	Code string      `json:"code"`
	Name string      `json:"name"`
	Type AccountType `json:"type"`
}

// DebitNormal reports whether the account increases on the debit side.
func (a Account) DebitNormal() bool {
	return a.Type == AccountTypeAsset || a.Type == AccountTypeExpense
}

var chart = map[string]Account{
	AccountCash:                {AccountCash, "Cash", AccountTypeAsset},
	AccountReceivable:          {AccountReceivable, "Accounts Receivable", AccountTypeAsset},
	AccountInventory:           {AccountInventory, "Inventory Asset", AccountTypeAsset},
	AccountPayable:             {AccountPayable, "Accounts Payable", AccountTypeLiability},
	AccountSalesRevenue:        {AccountSalesRevenue, "Sales Revenue", AccountTypeRevenue},
	AccountCOGS:                {AccountCOGS, "Cost of Goods Sold", AccountTypeExpense},
	AccountPurchases:           {AccountPurchases, "Purchases", AccountTypeExpense},
	AccountInventoryAdjustment: {AccountInventoryAdjustment, "Inventory Adjustment", AccountTypeExpense},
	AccountInventoryShrinkage:  {AccountInventoryShrinkage, "Inventory Shrinkage", AccountTypeExpense},
	AccountInventoryWriteOff:   {AccountInventoryWriteOff, "Inventory Write-off", AccountTypeExpense},
}

// LookupAccount returns the account with code.
func LookupAccount(code string) (Account, bool) {
	a, ok := chart[code]
	return a, ok
}

// ChartOfAccounts lists the fixed chart ordered by code.
func ChartOfAccounts() []Account {
	out := make([]Account, 0, len(chart))
	for _, a := range chart {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
