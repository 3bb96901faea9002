package accounting

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Generate maps one source document to its journal entries. A transfer, a sale
// that is void, cancelled or draft, or a document whose amount rounds to zero
// yields no entries and no error.
func Generate(src documents.Source) ([]JournalEntry, error) {
	switch doc := src.(type) {
	case documents.PurchaseReceipt:
		return receiptEntries(doc), nil
	case documents.Sale:
		return saleEntries(doc), nil
	case documents.InventoryCorrection:
		return correctionEntries(doc)
	case documents.Transfer:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedSource, src)
}

func receiptEntries(p documents.PurchaseReceipt) []JournalEntry {
	total := shared.Round2(p.Total())
	if !total.IsPositive() {
		return nil
	}
	desc := describe("Purchase receipt", p.RefNo, p.ID)
	return []JournalEntry{newEntry(p.Ref(), 0, desc,
		debit(AccountInventory, total, "Inventory received"),
		credit(AccountPayable, total, "Amount owed to supplier"),
	)}
}

func saleEntries(s documents.Sale) []JournalEntry {
	if !s.Status.Counts() {
		return nil
	}
	ref := s.Ref()
	desc := describe("Sale", s.InvoiceNo, s.ID)
	var entries []JournalEntry

	// A zero total has no debit or credit to post and would fail Validate, so the
	// revenue entry is only written for a positive total.
	if total := shared.Round2(s.Total); total.IsPositive() {
		account, memo := AccountCash, "Cash sale"
		if s.CustomerID != nil {
			account, memo = AccountReceivable, "Invoice to customer"
		}
		entries = append(entries, newEntry(ref, 0, desc,
			debit(account, total, memo),
			credit(AccountSalesRevenue, total, "Revenue recognised"),
		))
	}

	if cogs := shared.Round2(s.COGS()); cogs.IsPositive() {
		entries = append(entries, newEntry(ref, 1, desc+" - cost of goods sold",
			debit(AccountCOGS, cogs, "Cost of goods sold"),
			credit(AccountInventory, cogs, "Inventory relieved"),
		))
	}
	return entries
}

func correctionEntries(c documents.InventoryCorrection) ([]JournalEntry, error) {
	if c.Difference.IsZero() {
		return nil, fmt.Errorf("correction %d: %w", c.ID, ErrZeroDifference)
	}
	amount := shared.Round2(c.Difference.Abs().Mul(c.UnitCost))
	if !amount.IsPositive() {
		return nil, nil
	}
	expense := adjustmentAccount(c.Reason)
	desc := describe("Inventory correction", c.RefNo, c.ID)
	if c.Reason != "" {
		desc += ": " + c.Reason
	}
	if c.Difference.IsNegative() {
		return []JournalEntry{newEntry(c.Ref(), 0, desc,
			debit(expense, amount, "Stock shortage"),
			credit(AccountInventory, amount, "Inventory reduced"),
		)}, nil
	}
	return []JournalEntry{newEntry(c.Ref(), 0, desc,
		debit(AccountInventory, amount, "Inventory increased"),
		credit(expense, amount, "Stock overage"),
	)}, nil
}

// adjustmentAccount picks the expense account from the free-text reason.
func adjustmentAccount(reason string) string {
	// Casers are stateful and must not be shared between goroutines.
	folded := cases.Fold().String(reason)
	switch {
	case strings.Contains(folded, "shrinkage"):
		return AccountInventoryShrinkage
	case strings.Contains(folded, "write-off"), strings.Contains(folded, "write off"), strings.Contains(folded, "writeoff"):
		return AccountInventoryWriteOff
	}
	return AccountInventoryAdjustment
}

func describe(label, number string, id int64) string {
	if number != "" {
		return label + " " + number
	}
	return fmt.Sprintf("%s #%d", label, id)
}
