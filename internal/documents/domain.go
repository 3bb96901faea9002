// Package documents reads the transactional records the ledger reports are
// derived from: sales, purchase receipts, inventory corrections and transfers.
package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = fmt.Errorf("documents: %w", shared.ErrNotFound)

// ErrUnknownKind indicates an unsupported reference type.
var ErrUnknownKind = fmt.Errorf("documents: unknown reference type: %w", shared.ErrInvalidInput)

// Kind is the reference type of a source document.
type Kind string

const (
	KindSale                Kind = "sale"
	KindPurchaseReceipt     Kind = "purchase_receipt"
	KindInventoryCorrection Kind = "inventory_correction"
	KindTransfer            Kind = "transfer"
)

// Kinds lists every reference type in generation order.
func Kinds() []Kind {
	return []Kind{KindSale, KindPurchaseReceipt, KindInventoryCorrection, KindTransfer}
}

// ParseKind accepts the canonical names plus a few aliases used by callers.
func ParseKind(raw string) (Kind, error) {
	switch raw {
	case "sale", "sell", "Sale":
		return KindSale, nil
	case "purchase_receipt", "purchase", "receipt", "grn", "PurchaseReceipt":
		return KindPurchaseReceipt, nil
	case "inventory_correction", "correction", "adjustment", "InventoryCorrection":
		return KindInventoryCorrection, nil
	case "transfer", "stock_transfer", "Transfer":
		return KindTransfer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// Label is the human form used in journal descriptions and exports.
func (k Kind) Label() string {
	switch k {
	case KindSale:
		return "Sale"
	case KindPurchaseReceipt:
		return "PurchaseReceipt"
	case KindInventoryCorrection:
		return "InventoryCorrection"
	case KindTransfer:
		return "Transfer"
	}
	return string(k)
}

// Source is one of Sale, PurchaseReceipt, InventoryCorrection or Transfer.
type Source interface {
	Kind() Kind
	Ref() Ref
	source()
}

// Ref identifies a source document.
type Ref struct {
	Kind       Kind
	ID         int64
	BusinessID int64
	Number     string
	Date       time.Time
}

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleFinal     SaleStatus = "final"
	SaleDraft     SaleStatus = "draft"
	SaleVoid      SaleStatus = "void"
	SaleCancelled SaleStatus = "cancelled"
)

// Counts reports whether a sale contributes to revenue and COGS.
func (s SaleStatus) Counts() bool {
	return s != SaleVoid && s != SaleCancelled && s != SaleDraft
}

// Sale is a sell transaction with its line items.
type Sale struct {
	ID                 int64
	BusinessID         int64
	LocationID         int64
	InvoiceNo          string
	TransactionDate    time.Time
	CustomerID         *int64
	Status             SaleStatus
	Total              decimal.Decimal
	Discount           decimal.Decimal
	ShippingCharges    decimal.Decimal
	AdditionalExpenses decimal.Decimal
	RewardAmount       decimal.Decimal
	Lines              []SaleLine
}

// SaleLine is one sold variation.
type SaleLine struct {
	VariationID int64
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	UnitCost    decimal.Decimal
}

// COGS sums quantity times unit cost over the sale lines.
func (s Sale) COGS() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Quantity.Mul(l.UnitCost))
	}
	return total
}

func (s Sale) Kind() Kind { return KindSale }
func (s Sale) Ref() Ref {
	return Ref{Kind: KindSale, ID: s.ID, BusinessID: s.BusinessID, Number: s.InvoiceNo, Date: s.TransactionDate}
}
func (Sale) source() {}

// PurchaseReceipt is a goods received note.
type PurchaseReceipt struct {
	ID                 int64
	BusinessID         int64
	LocationID         int64
	RefNo              string
	ReceivedAt         time.Time
	SupplierID         *int64
	Discount           decimal.Decimal
	ShippingCharges    decimal.Decimal
	AdditionalExpenses decimal.Decimal
	Lines              []ReceiptLine
}

// ReceiptLine is one received variation. Only the accepted quantity is stocked.
type ReceiptLine struct {
	VariationID int64
	AcceptedQty decimal.Decimal
	UnitCost    decimal.Decimal
}

// Total sums accepted quantity times unit cost.
func (p PurchaseReceipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.AcceptedQty.Mul(l.UnitCost))
	}
	return total
}

func (p PurchaseReceipt) Kind() Kind { return KindPurchaseReceipt }
func (p PurchaseReceipt) Ref() Ref {
	return Ref{Kind: KindPurchaseReceipt, ID: p.ID, BusinessID: p.BusinessID, Number: p.RefNo, Date: p.ReceivedAt}
}
func (PurchaseReceipt) source() {}

// InventoryCorrection records a counted difference for one variation.
// Difference is signed: negative for a shortage, positive for an overage.
type InventoryCorrection struct {
	ID              int64
	BusinessID      int64
	LocationID      int64
	VariationID     int64
	RefNo           string
	CorrectedAt     time.Time
	Difference      decimal.Decimal
	UnitCost        decimal.Decimal
	Reason          string
	AmountRecovered decimal.Decimal
}

// Value is the signed stock value the correction adds.
func (c InventoryCorrection) Value() decimal.Decimal {
	return c.Difference.Mul(c.UnitCost)
}

func (c InventoryCorrection) Kind() Kind { return KindInventoryCorrection }
func (c InventoryCorrection) Ref() Ref {
	return Ref{Kind: KindInventoryCorrection, ID: c.ID, BusinessID: c.BusinessID, Number: c.RefNo, Date: c.CorrectedAt}
}
func (InventoryCorrection) source() {}

// Transfer moves stock between two locations of one business.
type Transfer struct {
	ID              int64
	BusinessID      int64
	FromLocationID  int64
	ToLocationID    int64
	RefNo           string
	TransferredAt   time.Time
	ShippingCharges decimal.Decimal
}

func (t Transfer) Kind() Kind { return KindTransfer }
func (t Transfer) Ref() Ref {
	return Ref{Kind: KindTransfer, ID: t.ID, BusinessID: t.BusinessID, Number: t.RefNo, Date: t.TransferredAt}
}
func (Transfer) source() {}

// ReturnKind distinguishes customer and supplier returns.
type ReturnKind string

const (
	ReturnSell     ReturnKind = "sell"
	ReturnPurchase ReturnKind = "purchase"
)

// Return is a sell or purchase return total.
type Return struct {
	ID         int64
	BusinessID int64
	LocationID int64
	Kind       ReturnKind
	Date       time.Time
	Amount     decimal.Decimal
}

// Expense is an operating expense.
type Expense struct {
	ID         int64
	BusinessID int64
	LocationID int64
	Date       time.Time
	Category   string
	Amount     decimal.Decimal
}

// PeriodFilter selects documents of a business inside [From, To].
type PeriodFilter struct {
	BusinessID int64
	From       time.Time
	To         time.Time
	LocationID *int64
}

// PeriodTotals are the monetary aggregates a profit and loss statement needs.
type PeriodTotals struct {
	TotalPurchases             decimal.Decimal
	TotalPurchaseReturns       decimal.Decimal
	TotalPurchaseShipping      decimal.Decimal
	TotalPurchaseDiscount      decimal.Decimal
	PurchaseAdditionalExpenses decimal.Decimal
	TotalSales                 decimal.Decimal
	TotalSellReturns           decimal.Decimal
	TotalSellShipping          decimal.Decimal
	TotalSellDiscount          decimal.Decimal
	SellAdditionalExpenses     decimal.Decimal
	TotalCustomerReward        decimal.Decimal
	TotalTransferShipping      decimal.Decimal
	TotalExpenses              decimal.Decimal
	TotalStockAdjustment       decimal.Decimal
	TotalStockRecovered        decimal.Decimal
}

// ZeroTotals returns PeriodTotals with every field set to zero.
func ZeroTotals() PeriodTotals {
	z := decimal.Zero
	return PeriodTotals{z, z, z, z, z, z, z, z, z, z, z, z, z, z, z}
}

// Reader resolves documents by id and lists them by date.
type Reader interface {
	FindSale(ctx context.Context, businessID, id int64) (Sale, error)
	FindPurchaseReceipt(ctx context.Context, businessID, id int64) (PurchaseReceipt, error)
	FindInventoryCorrection(ctx context.Context, businessID, id int64) (InventoryCorrection, error)
	FindTransfer(ctx context.Context, businessID, id int64) (Transfer, error)
	// ListIDs returns ids of kind dated inside [from, to], oldest first.
	ListIDs(ctx context.Context, businessID int64, kind Kind, from, to time.Time) ([]int64, error)
}

// PeriodReader feeds the profit and loss aggregator.
type PeriodReader interface {
	ListSales(ctx context.Context, filter PeriodFilter) ([]Sale, error)
	PeriodTotals(ctx context.Context, filter PeriodFilter) (PeriodTotals, error)
}

// Find resolves any document kind through r.
func Find(ctx context.Context, r Reader, kind Kind, businessID, id int64) (Source, error) {
	switch kind {
	case KindSale:
		return r.FindSale(ctx, businessID, id)
	case KindPurchaseReceipt:
		return r.FindPurchaseReceipt(ctx, businessID, id)
	case KindInventoryCorrection:
		return r.FindInventoryCorrection(ctx, businessID, id)
	case KindTransfer:
		return r.FindTransfer(ctx, businessID, id)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
