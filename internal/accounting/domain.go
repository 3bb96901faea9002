// Package accounting turns source documents into balanced double-entry
// journal entries against a fixed chart of accounts.
package accounting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrZeroDifference indicates an inventory correction with nothing to post.
	ErrZeroDifference = fmt.Errorf("accounting: correction difference is zero: %w", shared.ErrInvalidInput)
	// ErrUnsupportedSource indicates a document type the generator cannot map.
	ErrUnsupportedSource = errors.New("accounting: unsupported source document")
)

// JournalLine is one debit or credit. Exactly one of Debit and Credit is non-zero.
type JournalLine struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// JournalEntry is a generated, unpersisted double-entry record.
type JournalEntry struct {
	ID              uuid.UUID        `json:"id"`
	BusinessID      int64            `json:"business_id"`
	EntryDate       time.Time        `json:"entry_date"`
	ReferenceType   documents.Kind   `json:"reference_type"`
	ReferenceID     int64            `json:"reference_id"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	Description     string           `json:"description"`
	Lines           []JournalLine    `json:"lines"`
	TotalDebit      decimal.Decimal  `json:"total_debit"`
	TotalCredit     decimal.Decimal  `json:"total_credit"`
	Balanced        bool             `json:"balanced"`
	Validation      ValidationResult `json:"validation"`
}

// entryNamespace scopes deterministic journal entry ids.
var entryNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("odyssey-ledger/journal-entry"))

func entryID(ref documents.Ref, seq int) uuid.UUID {
	name := fmt.Sprintf("%d:%s:%d:%d", ref.BusinessID, ref.Kind, ref.ID, seq)
	return uuid.NewSHA1(entryNamespace, []byte(name))
}

func debit(code string, amount decimal.Decimal, description string) JournalLine {
	acct, _ := LookupAccount(code)
	return JournalLine{AccountCode: code, AccountName: acct.Name, Debit: amount, Credit: decimal.Zero, Description: description}
}

func credit(code string, amount decimal.Decimal, description string) JournalLine {
	acct, _ := LookupAccount(code)
	return JournalLine{AccountCode: code, AccountName: acct.Name, Debit: decimal.Zero, Credit: amount, Description: description}
}

// newEntry totals lines and attaches the validation outcome.
func newEntry(ref documents.Ref, seq int, description string, lines ...JournalLine) JournalEntry {
	entry := JournalEntry{
		ID:              entryID(ref, seq),
		BusinessID:      ref.BusinessID,
		EntryDate:       ref.Date,
		ReferenceType:   ref.Kind,
		ReferenceID:     ref.ID,
		ReferenceNumber: ref.Number,
		Description:     description,
		Lines:           lines,
		TotalDebit:      decimal.Zero,
		TotalCredit:     decimal.Zero,
	}
	for _, l := range lines {
		entry.TotalDebit = entry.TotalDebit.Add(l.Debit)
		entry.TotalCredit = entry.TotalCredit.Add(l.Credit)
	}
	entry.Validation = Validate(entry)
	entry.Balanced = entry.Validation.Valid
	return entry
}
