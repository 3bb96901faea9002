package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Reader and PeriodReader. It backs tests and the
// demo seed.
type Memory struct {
	mu          sync.RWMutex
	sales       map[int64]Sale
	receipts    map[int64]PurchaseReceipt
	corrections map[int64]InventoryCorrection
	transfers   map[int64]Transfer
	returns     []Return
	expenses    []Expense
	// fail, when set, is returned by every read.
	fail error
}

// NewMemory constructs an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		sales:       make(map[int64]Sale),
		receipts:    make(map[int64]PurchaseReceipt),
		corrections: make(map[int64]InventoryCorrection),
		transfers:   make(map[int64]Transfer),
	}
}

// Add stores documents. Supported types: Sale, PurchaseReceipt,
// InventoryCorrection, Transfer, Return and Expense.
func (m *Memory) Add(docs ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		switch v := doc.(type) {
		case Sale:
			m.sales[v.ID] = v
		case PurchaseReceipt:
			m.receipts[v.ID] = v
		case InventoryCorrection:
			m.corrections[v.ID] = v
		case Transfer:
			m.transfers[v.ID] = v
		case Return:
			m.returns = append(m.returns, v)
		case Expense:
			m.expenses = append(m.expenses, v)
		default:
			panic(fmt.Sprintf("documents: unsupported document %T", doc))
		}
	}
}

// Remove deletes a document so later lookups report ErrNotFound.
func (m *Memory) Remove(kind Kind, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case KindSale:
		delete(m.sales, id)
	case KindPurchaseReceipt:
		delete(m.receipts, id)
	case KindInventoryCorrection:
		delete(m.corrections, id)
	case KindTransfer:
		delete(m.transfers, id)
	}
}

// FailWith makes every subsequent read return err. Nil restores normal reads.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.fail
}

// FindSale implements Reader.
func (m *Memory) FindSale(ctx context.Context, businessID, id int64) (Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return Sale{}, err
	}
	s, ok := m.sales[id]
	if !ok || s.BusinessID != businessID {
		return Sale{}, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	return s, nil
}

// FindPurchaseReceipt implements Reader.
func (m *Memory) FindPurchaseReceipt(ctx context.Context, businessID, id int64) (PurchaseReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return PurchaseReceipt{}, err
	}
	p, ok := m.receipts[id]
	if !ok || p.BusinessID != businessID {
		return PurchaseReceipt{}, fmt.Errorf("purchase receipt %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// FindInventoryCorrection implements Reader.
func (m *Memory) FindInventoryCorrection(ctx context.Context, businessID, id int64) (InventoryCorrection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return InventoryCorrection{}, err
	}
	c, ok := m.corrections[id]
	if !ok || c.BusinessID != businessID {
		return InventoryCorrection{}, fmt.Errorf("inventory correction %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// FindTransfer implements Reader.
func (m *Memory) FindTransfer(ctx context.Context, businessID, id int64) (Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return Transfer{}, err
	}
	t, ok := m.transfers[id]
	if !ok || t.BusinessID != businessID {
		return Transfer{}, fmt.Errorf("transfer %d: %w", id, ErrNotFound)
	}
	return t, nil
}

// ListIDs implements Reader.
func (m *Memory) ListIDs(ctx context.Context, businessID int64, kind Kind, from, to time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	type dated struct {
		id int64
		at time.Time
	}
	var found []dated
	collect := func(ref Ref) {
		if ref.BusinessID == businessID && within(ref.Date, from, to) {
			found = append(found, dated{ref.ID, ref.Date})
		}
	}
	switch kind {
	case KindSale:
		for _, s := range m.sales {
			if s.Status.Counts() {
				collect(s.Ref())
			}
		}
	case KindPurchaseReceipt:
		for _, p := range m.receipts {
			collect(p.Ref())
		}
	case KindInventoryCorrection:
		for _, c := range m.corrections {
			collect(c.Ref())
		}
	case KindTransfer:
		for _, t := range m.transfers {
			collect(t.Ref())
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].at.Equal(found[j].at) {
			return found[i].at.Before(found[j].at)
		}
		return found[i].id < found[j].id
	})
	ids := make([]int64, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids, nil
}

// ListSales implements PeriodReader.
func (m *Memory) ListSales(ctx context.Context, filter PeriodFilter) ([]Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	var out []Sale
	for _, s := range m.sales {
		if s.BusinessID == filter.BusinessID && within(s.TransactionDate, filter.From, filter.To) &&
			atLocation(s.LocationID, filter.LocationID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PeriodTotals implements PeriodReader.
func (m *Memory) PeriodTotals(ctx context.Context, filter PeriodFilter) (PeriodTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return PeriodTotals{}, err
	}
	t := ZeroTotals()
	inScope := func(businessID, locationID int64, at time.Time) bool {
		return businessID == filter.BusinessID && within(at, filter.From, filter.To) && atLocation(locationID, filter.LocationID)
	}
	for _, s := range m.sales {
		if !inScope(s.BusinessID, s.LocationID, s.TransactionDate) || !s.Status.Counts() {
			continue
		}
		t.TotalSales = t.TotalSales.Add(s.Total)
		t.TotalSellDiscount = t.TotalSellDiscount.Add(s.Discount)
		t.TotalSellShipping = t.TotalSellShipping.Add(s.ShippingCharges)
		t.SellAdditionalExpenses = t.SellAdditionalExpenses.Add(s.AdditionalExpenses)
		t.TotalCustomerReward = t.TotalCustomerReward.Add(s.RewardAmount)
	}
	for _, p := range m.receipts {
		if !inScope(p.BusinessID, p.LocationID, p.ReceivedAt) {
			continue
		}
		t.TotalPurchases = t.TotalPurchases.Add(p.Total())
		t.TotalPurchaseDiscount = t.TotalPurchaseDiscount.Add(p.Discount)
		t.TotalPurchaseShipping = t.TotalPurchaseShipping.Add(p.ShippingCharges)
		t.PurchaseAdditionalExpenses = t.PurchaseAdditionalExpenses.Add(p.AdditionalExpenses)
	}
	for _, c := range m.corrections {
		if !inScope(c.BusinessID, c.LocationID, c.CorrectedAt) {
			continue
		}
		t.TotalStockAdjustment = t.TotalStockAdjustment.Add(c.Value())
		t.TotalStockRecovered = t.TotalStockRecovered.Add(c.AmountRecovered)
	}
	for _, tr := range m.transfers {
		if inScope(tr.BusinessID, tr.FromLocationID, tr.TransferredAt) {
			t.TotalTransferShipping = t.TotalTransferShipping.Add(tr.ShippingCharges)
		}
	}
	for _, r := range m.returns {
		if !inScope(r.BusinessID, r.LocationID, r.Date) {
			continue
		}
		switch r.Kind {
		case ReturnSell:
			t.TotalSellReturns = t.TotalSellReturns.Add(r.Amount)
		case ReturnPurchase:
			t.TotalPurchaseReturns = t.TotalPurchaseReturns.Add(r.Amount)
		}
	}
	for _, e := range m.expenses {
		if inScope(e.BusinessID, e.LocationID, e.Date) {
			t.TotalExpenses = t.TotalExpenses.Add(e.Amount)
		}
	}
	return t, nil
}

func within(at, from, to time.Time) bool {
	return !at.Before(from) && !at.After(to)
}

func atLocation(locationID int64, filter *int64) bool {
	return filter == nil || *filter == locationID
}
