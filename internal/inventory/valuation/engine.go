package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

// costBook tracks on-hand quantity and cost for one method.
type costBook interface {
	receive(qty, unitCost decimal.Decimal, e stockledger.Entry)
	// consume removes qty and returns its cost and the part not covered by stock.
	// ok is false when there was nothing to average over.
	consume(qty decimal.Decimal) (cost, shortfall decimal.Decimal, ok bool)
	// onHand returns quantity and cost of what is left.
	onHand() (qty, value decimal.Decimal)
	// currentCost is the cost a new inbound row without its own cost is booked at.
	currentCost() (decimal.Decimal, bool)
}

func newBook(method Method) (costBook, error) {
	switch method {
	case MethodFIFO:
		return &layerBook{}, nil
	case MethodLIFO:
		return &layerBook{lifo: true}, nil
	case MethodAVCO:
		return &averageBook{qty: decimal.Zero, cost: decimal.Zero}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}

// Evaluate replays entries of one stock position under method. Entries are
// ordered by (CreatedAt, SequenceID) first; the input slice is not modified.
func Evaluate(method Method, entries []stockledger.Entry) (Result, error) {
	book, err := newBook(method)
	if err != nil {
		return Result{}, err
	}
	ordered := make([]stockledger.Entry, len(entries))
	copy(ordered, entries)
	stockledger.Sort(ordered)

	res := Result{
		Method:       method,
		ReceivedQty:  decimal.Zero,
		ReceivedCost: decimal.Zero,
		ConsumedQty:  decimal.Zero,
		ConsumedCost: decimal.Zero,
	}
	for _, v := range stockledger.VerifyChain(ordered) {
		res.Issues = append(res.Issues, inventory.Issue{
			Kind:       inventory.IssueChainBreak,
			Key:        v.Key,
			SequenceID: v.SequenceID,
			Message:    v.String(),
		})
	}

	for _, e := range ordered {
		switch {
		case e.QuantityChange.IsPositive():
			unitCost, known := e.UnitCost.Decimal, e.UnitCost.Valid
			if !known {
				unitCost, known = book.currentCost()
				if !known {
					unitCost = decimal.Zero
				}
				res.Issues = append(res.Issues, inventory.Issue{
					Kind:       inventory.IssueMissingUnitCost,
					Key:        e.Key(),
					SequenceID: e.SequenceID,
					Message:    fmt.Sprintf("inbound %s without unit cost booked at %s", e.Type, unitCost.String()),
				})
			}
			book.receive(e.QuantityChange, unitCost, e)
			res.ReceivedQty = res.ReceivedQty.Add(e.QuantityChange)
			res.ReceivedCost = res.ReceivedCost.Add(e.QuantityChange.Mul(unitCost))
		case e.QuantityChange.IsNegative():
			qty := e.QuantityChange.Neg()
			cost, shortfall, ok := book.consume(qty)
			if !ok {
				res.Issues = append(res.Issues, inventory.Issue{
					Kind:       inventory.IssueDivisionByZero,
					Key:        e.Key(),
					SequenceID: e.SequenceID,
					Message:    "consumed from empty stock; unit cost zero",
				})
			} else if shortfall.IsPositive() {
				res.Issues = append(res.Issues, inventory.Issue{
					Kind:       inventory.IssueNegativeStock,
					Key:        e.Key(),
					SequenceID: e.SequenceID,
					Message:    fmt.Sprintf("oversold by %s", shortfall.String()),
				})
			}
			res.ConsumedQty = res.ConsumedQty.Add(qty)
			res.ConsumedCost = res.ConsumedCost.Add(cost)
			res.Consumptions = append(res.Consumptions, Consumption{
				SequenceID: e.SequenceID,
				At:         e.CreatedAt,
				Qty:        qty,
				Cost:       cost,
				Shortfall:  shortfall,
			})
		}
	}

	qty, value := book.onHand()
	res.CurrentQty = qty
	res.UnitCost = decimal.Zero
	res.TotalValue = decimal.Zero
	switch {
	case qty.IsPositive():
		res.UnitCost = value.Div(qty)
		res.TotalValue = value
	case qty.IsNegative():
		if len(ordered) > 0 {
			res.Issues = append(res.Issues, inventory.Issue{
				Kind:    inventory.IssueNegativeStock,
				Key:     ordered[len(ordered)-1].Key(),
				Message: fmt.Sprintf("on hand %s valued at zero", qty.String()),
			})
		}
	}
	if last, ok := book.currentCost(); ok && !qty.IsPositive() {
		res.UnitCost = last
	}
	return res, nil
}

// CostToConsume replays history and returns what consuming qty more would cost now.
func CostToConsume(method Method, history []stockledger.Entry, qty decimal.Decimal) (decimal.Decimal, error) {
	book, err := newBook(method)
	if err != nil {
		return decimal.Zero, err
	}
	ordered := make([]stockledger.Entry, len(history))
	copy(ordered, history)
	stockledger.Sort(ordered)
	for _, e := range ordered {
		switch {
		case e.QuantityChange.IsPositive():
			unitCost := e.UnitCost.Decimal
			if !e.UnitCost.Valid {
				unitCost, _ = book.currentCost()
			}
			book.receive(e.QuantityChange, unitCost, e)
		case e.QuantityChange.IsNegative():
			book.consume(e.QuantityChange.Neg())
		}
	}
	cost, _, _ := book.consume(qty)
	return cost, nil
}

// layerBook implements FIFO (front pops) and LIFO (back pops).
type layerBook struct {
	lifo    bool
	layers  []CostLayer
	deficit decimal.Decimal
	last    decimal.Decimal
	hasLast bool
}

func (b *layerBook) receive(qty, unitCost decimal.Decimal, e stockledger.Entry) {
	b.last, b.hasLast = unitCost, true
	// Stock arriving after an oversell first covers the deficit, which was
	// already costed when it was consumed.
	if b.deficit.IsPositive() {
		offset := decimal.Min(qty, b.deficit)
		b.deficit = b.deficit.Sub(offset)
		qty = qty.Sub(offset)
	}
	if !qty.IsPositive() {
		return
	}
	b.layers = append(b.layers, CostLayer{Remaining: qty, UnitCost: unitCost, ReceivedAt: e.CreatedAt})
}

func (b *layerBook) consume(qty decimal.Decimal) (decimal.Decimal, decimal.Decimal, bool) {
	cost := decimal.Zero
	remaining := qty
	for remaining.IsPositive() && len(b.layers) > 0 {
		idx := 0
		if b.lifo {
			idx = len(b.layers) - 1
		}
		layer := &b.layers[idx]
		take := decimal.Min(remaining, layer.Remaining)
		cost = cost.Add(take.Mul(layer.UnitCost))
		layer.Remaining = layer.Remaining.Sub(take)
		remaining = remaining.Sub(take)
		if !layer.Remaining.IsPositive() {
			if b.lifo {
				b.layers = b.layers[:idx]
			} else {
				b.layers = b.layers[1:]
			}
		}
	}
	shortfall := decimal.Zero
	if remaining.IsPositive() {
		shortfall = remaining
		b.deficit = b.deficit.Add(remaining)
		if b.hasLast {
			cost = cost.Add(remaining.Mul(b.last))
		}
	}
	return cost, shortfall, true
}

func (b *layerBook) onHand() (decimal.Decimal, decimal.Decimal) {
	qty := decimal.Zero
	value := decimal.Zero
	for _, l := range b.layers {
		qty = qty.Add(l.Remaining)
		value = value.Add(l.Remaining.Mul(l.UnitCost))
	}
	return qty.Sub(b.deficit), value
}

func (b *layerBook) currentCost() (decimal.Decimal, bool) {
	return b.last, b.hasLast
}

// averageBook implements the weighted-average method.
type averageBook struct {
	qty     decimal.Decimal
	cost    decimal.Decimal
	last    decimal.Decimal
	hasLast bool
}

func (b *averageBook) receive(qty, unitCost decimal.Decimal, _ stockledger.Entry) {
	prev := b.qty
	b.qty = b.qty.Add(qty)
	b.last, b.hasLast = unitCost, true
	switch {
	case !b.qty.IsPositive():
		b.cost = decimal.Zero
	case prev.IsNegative():
		// The deficit was already costed when it was consumed.
		b.cost = b.qty.Mul(unitCost)
	default:
		b.cost = b.cost.Add(qty.Mul(unitCost))
	}
}

func (b *averageBook) consume(qty decimal.Decimal) (decimal.Decimal, decimal.Decimal, bool) {
	if !b.qty.IsPositive() {
		b.qty = b.qty.Sub(qty)
		return decimal.Zero, qty, false
	}
	avg := b.cost.Div(b.qty)
	shortfall := decimal.Zero
	if qty.GreaterThan(b.qty) {
		shortfall = qty.Sub(b.qty)
	}
	cost := qty.Mul(avg)
	b.qty = b.qty.Sub(qty)
	b.cost = b.cost.Sub(cost)
	if !b.qty.IsPositive() {
		b.cost = decimal.Zero
	}
	return cost, shortfall, true
}

func (b *averageBook) onHand() (decimal.Decimal, decimal.Decimal) {
	return b.qty, b.cost
}

func (b *averageBook) currentCost() (decimal.Decimal, bool) {
	if b.qty.IsPositive() {
		return b.cost.Div(b.qty), true
	}
	return b.last, b.hasLast
}
