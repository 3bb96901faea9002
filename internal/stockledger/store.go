package stockledger

import (
	"context"
	"sort"
	"time"
)

// ScanFilter narrows a ledger scan to one business, an optional location and a cutoff.
type ScanFilter struct {
	BusinessID int64
	LocationID *int64
	UpTo       time.Time
}

// Store is the read-only contract over the ledger. Implementations never mutate entries.
type Store interface {
	// ListEntries returns entries for one variation/location with CreatedAt <= upTo,
	// ordered by (CreatedAt, SequenceID) ascending.
	ListEntries(ctx context.Context, variationID, locationID int64, upTo time.Time) ([]Entry, error)
	// ListKeys returns the distinct stock positions having at least one entry at or before upTo.
	ListKeys(ctx context.Context, filter ScanFilter) ([]Key, error)
	// ScanEntries streams every matching entry in no particular order.
	ScanEntries(ctx context.Context, filter ScanFilter, fn func(Entry) error) error
}

// Sort orders entries by (CreatedAt, SequenceID) ascending in place.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Before(entries[j]) })
}

// Latest returns the entry with the greatest (CreatedAt, SequenceID) among entries
// at or before cutoff.
func Latest(entries []Entry, cutoff time.Time) (Entry, bool) {
	var best Entry
	found := false
	for _, e := range entries {
		if e.CreatedAt.After(cutoff) {
			continue
		}
		if !found || best.Before(e) {
			best = e
			found = true
		}
	}
	return best, found
}
