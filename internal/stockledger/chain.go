package stockledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ChainViolation describes an entry whose recorded running balance disagrees
// with the previous balance plus its own quantity change.
type ChainViolation struct {
	Key        Key
	SequenceID int64
	Expected   decimal.Decimal
	Recorded   decimal.Decimal
}

func (v ChainViolation) String() string {
	return fmt.Sprintf("ledger %s seq %d: balance after %s, expected %s",
		v.Key, v.SequenceID, v.Recorded.String(), v.Expected.String())
}

// VerifyChain checks the running-balance invariant for entries of one or more keys.
// Entries need not be pre-sorted.
func VerifyChain(entries []Entry) []ChainViolation {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	Sort(ordered)

	running := make(map[Key]decimal.Decimal)
	var violations []ChainViolation
	for _, e := range ordered {
		key := e.Key()
		prev, seen := running[key]
		expected := e.QuantityChange
		if seen {
			expected = prev.Add(e.QuantityChange)
		}
		if !expected.Equal(e.BalanceQtyAfter) {
			violations = append(violations, ChainViolation{
				Key:        key,
				SequenceID: e.SequenceID,
				Expected:   expected,
				Recorded:   e.BalanceQtyAfter,
			})
		}
		// Continue from the recorded balance so one bad row is reported once.
		running[key] = e.BalanceQtyAfter
	}
	return violations
}
