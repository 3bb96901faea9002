package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

// Balance is the on-hand quantity and cost basis of one stock position at an instant.
type Balance struct {
	Key        stockledger.Key     `json:"key"`
	Qty        decimal.Decimal     `json:"qty"`
	UnitCost   decimal.NullDecimal `json:"unit_cost"`
	SequenceID int64               `json:"sequence_id,omitempty"`
	At         time.Time           `json:"at"`
	Found      bool                `json:"found"`
}

// StockValue aggregates on-hand value at an instant on purchase and sale bases.
type StockValue struct {
	AsOf          time.Time
	PurchaseBasis decimal.Decimal
	SaleBasis     decimal.Decimal
	Positions     int
	Issues        []Issue
}

// IssueKind classifies a data-quality finding.
type IssueKind string

const (
	IssueNegativeStock    IssueKind = "negative_stock"
	IssueMissingUnitCost  IssueKind = "missing_unit_cost"
	IssueDivisionByZero   IssueKind = "division_by_zero"
	IssueChainBreak       IssueKind = "chain_break"
	IssueUnknownVariation IssueKind = "unknown_variation"
)

// Issue is a data-quality warning. Computation continues with a documented fallback.
type Issue struct {
	Kind       IssueKind       `json:"kind"`
	Key        stockledger.Key `json:"key"`
	SequenceID int64           `json:"sequence_id,omitempty"`
	Message    string          `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s [%s]: %s", i.Kind, i.Key, i.Message)
}

// StockCardEntry describes one ledger movement with running balance.
type StockCardEntry struct {
	SequenceID int64                       `json:"sequence_id"`
	Type       stockledger.TransactionType `json:"type"`
	At         time.Time                   `json:"at"`
	QtyIn      decimal.Decimal             `json:"qty_in"`
	QtyOut     decimal.Decimal             `json:"qty_out"`
	BalanceQty decimal.Decimal             `json:"balance_qty"`
	UnitCost   decimal.NullDecimal         `json:"unit_cost"`
}

// StockCard lists movements of one position inside a window.
type StockCard struct {
	Key     stockledger.Key  `json:"key"`
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Opening Balance          `json:"opening"`
	Entries []StockCardEntry `json:"entries"`
	Closing Balance          `json:"closing"`
}

// ErrInvalidKey indicates a missing variation or location id.
var ErrInvalidKey = fmt.Errorf("inventory: variation and location required: %w", shared.ErrInvalidInput)
