// Package valuation costs inventory with FIFO, LIFO or weighted-average methods.
// The costing functions are pure over the ledger slice they are given.
package valuation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

// Method selects a costing method.
type Method string

const (
	MethodFIFO Method = "fifo"
	MethodLIFO Method = "lifo"
	MethodAVCO Method = "avco"
)

// ErrUnknownMethod indicates an unsupported costing method.
var ErrUnknownMethod = fmt.Errorf("valuation: unknown costing method: %w", shared.ErrInvalidInput)

// ParseMethod normalises a user supplied method name.
func ParseMethod(raw string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(raw))); m {
	case MethodFIFO, MethodLIFO, MethodAVCO:
		return m, nil
	case "average", "weighted_average", "wac":
		return MethodAVCO, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, raw)
}

// CostLayer is a batch of stock received at one unit cost.
type CostLayer struct {
	Remaining  decimal.Decimal
	UnitCost   decimal.Decimal
	ReceivedAt time.Time
}

// Consumption records the cost assigned to one outbound ledger event.
type Consumption struct {
	SequenceID int64
	At         time.Time
	Qty        decimal.Decimal
	Cost       decimal.Decimal
	// Shortfall is the part of Qty consumed beyond available stock.
	Shortfall decimal.Decimal
}

// Result is the costing outcome for one stock position.
type Result struct {
	Method       Method
	CurrentQty   decimal.Decimal
	UnitCost     decimal.Decimal
	TotalValue   decimal.Decimal
	ReceivedQty  decimal.Decimal
	ReceivedCost decimal.Decimal
	ConsumedQty  decimal.Decimal
	ConsumedCost decimal.Decimal
	Consumptions []Consumption
	Issues       []inventory.Issue
}

// Request selects what GetInventoryValuation values.
type Request struct {
	BusinessID int64
	Method     Method
	AsOf       time.Time
	LocationID *int64
}

// ItemValuation is one valued stock position.
type ItemValuation struct {
	Key          stockledger.Key   `json:"key"`
	ProductName  string            `json:"product_name"`
	SKU          string            `json:"sku"`
	LocationName string            `json:"location_name"`
	CurrentQty   decimal.Decimal   `json:"current_qty"`
	UnitCost     decimal.Decimal   `json:"unit_cost"`
	TotalValue   decimal.Decimal   `json:"total_value"`
	Issues       []inventory.Issue `json:"issues,omitempty"`
}

// Summary totals an inventory valuation.
type Summary struct {
	Items        int             `json:"items"`
	TotalQty     decimal.Decimal `json:"total_qty"`
	TotalValue   decimal.Decimal `json:"total_value"`
	FlaggedItems int             `json:"flagged_items"`
}

// Report is the output of GetInventoryValuation.
type Report struct {
	BusinessID int64           `json:"business_id"`
	Method     Method          `json:"method"`
	AsOf       time.Time       `json:"as_of"`
	LocationID *int64          `json:"location_id,omitempty"`
	Items      []ItemValuation `json:"items"`
	Summary    Summary         `json:"summary"`
}

// ConsumptionRequest asks what issuing Quantity from one position would cost.
type ConsumptionRequest struct {
	Key      stockledger.Key
	Method   Method
	AsOf     time.Time
	Quantity decimal.Decimal
}

// ConsumptionQuote is the method-dependent cost of a ConsumptionRequest.
type ConsumptionQuote struct {
	Key       stockledger.Key `json:"key"`
	Method    Method          `json:"method"`
	AsOf      time.Time       `json:"as_of"`
	Quantity  decimal.Decimal `json:"quantity"`
	TotalCost decimal.Decimal `json:"total_cost"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}
