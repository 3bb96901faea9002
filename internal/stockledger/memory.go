package stockledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store. Append assigns sequence ids and running
// balances the way the database triggers do.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	nextSeq int64
	balance map[Key]decimal.Decimal
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balance: make(map[Key]decimal.Decimal)}
}

// Append records e, filling SequenceID and BalanceQtyAfter. Entries must be
// appended in (CreatedAt) order per key for the running balance to be meaningful.
func (m *MemoryStore) Append(e Entry) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	e.SequenceID = m.nextSeq
	key := e.Key()
	e.BalanceQtyAfter = m.balance[key].Add(e.QuantityChange)
	m.balance[key] = e.BalanceQtyAfter
	m.entries = append(m.entries, e)
	return e
}

// AppendRaw records e verbatim, keeping caller supplied sequence and balance.
func (m *MemoryStore) AppendRaw(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.SequenceID > m.nextSeq {
		m.nextSeq = e.SequenceID
	}
	m.entries = append(m.entries, e)
}

// ListEntries implements Store.
func (m *MemoryStore) ListEntries(ctx context.Context, variationID, locationID int64, upTo time.Time) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.VariationID == variationID && e.LocationID == locationID && !e.CreatedAt.After(upTo) {
			out = append(out, e)
		}
	}
	Sort(out)
	return out, nil
}

// ListKeys implements Store.
func (m *MemoryStore) ListKeys(ctx context.Context, filter ScanFilter) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[Key]struct{})
	var keys []Key
	for _, e := range m.entries {
		if !matches(e, filter) {
			continue
		}
		if _, ok := seen[e.Key()]; ok {
			continue
		}
		seen[e.Key()] = struct{}{}
		keys = append(keys, e.Key())
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID < keys[j].ProductID
		}
		if keys[i].VariationID != keys[j].VariationID {
			return keys[i].VariationID < keys[j].VariationID
		}
		return keys[i].LocationID < keys[j].LocationID
	})
	return keys, nil
}

// ScanEntries implements Store.
func (m *MemoryStore) ScanEntries(ctx context.Context, filter ScanFilter, fn func(Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	snapshot := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if matches(e, filter) {
			snapshot = append(snapshot, e)
		}
	}
	m.mu.RUnlock()
	for _, e := range snapshot {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func matches(e Entry, filter ScanFilter) bool {
	if e.BusinessID != filter.BusinessID {
		return false
	}
	if filter.LocationID != nil && e.LocationID != *filter.LocationID {
		return false
	}
	return !e.CreatedAt.After(filter.UpTo)
}
