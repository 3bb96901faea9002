// Package stockledger models the append-only log of inventory-affecting events
// and the read contract the financial reports consume.
package stockledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the inventory events recorded in the ledger.
type TransactionType string

const (
	TypeReceipt          TransactionType = "receipt"
	TypeSale             TransactionType = "sale"
	TypeAdjustment       TransactionType = "adjustment"
	TypeTransferIn       TransactionType = "transfer_in"
	TypeTransferOut      TransactionType = "transfer_out"
	TypeCorrection       TransactionType = "correction"
	TypeBeginningBalance TransactionType = "beginning_balance"
	TypeRecovery         TransactionType = "recovery"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeReceipt, TypeSale, TypeAdjustment, TypeTransferIn, TypeTransferOut,
		TypeCorrection, TypeBeginningBalance, TypeRecovery:
		return true
	}
	return false
}

// Key identifies one stock position.
type Key struct {
	ProductID   int64 `json:"product_id"`
	VariationID int64 `json:"variation_id"`
	LocationID  int64 `json:"location_id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d:%d", k.ProductID, k.VariationID, k.LocationID)
}

// Entry is one immutable ledger row. UnitCost is null for pure sales.
type Entry struct {
	SequenceID      int64
	BusinessID      int64
	ProductID       int64
	VariationID     int64
	LocationID      int64
	Type            TransactionType
	QuantityChange  decimal.Decimal
	BalanceQtyAfter decimal.Decimal
	UnitCost        decimal.NullDecimal
	CreatedAt       time.Time
}

// Key returns the stock position the entry belongs to.
func (e Entry) Key() Key {
	return Key{ProductID: e.ProductID, VariationID: e.VariationID, LocationID: e.LocationID}
}

// Before orders entries by (CreatedAt, SequenceID).
func (e Entry) Before(other Entry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.SequenceID < other.SequenceID
}

// Inbound reports whether the entry adds stock.
func (e Entry) Inbound() bool {
	return e.QuantityChange.IsPositive()
}
