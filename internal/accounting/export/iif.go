package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var iifHeaders = []string{
	"!TRNS\tTRNSID\tTRNSTYPE\tDATE\tACCNT\tNAME\tAMOUNT\tMEMO",
	"!SPL\tSPLID\tTRNSTYPE\tDATE\tACCNT\tNAME\tAMOUNT\tMEMO",
	"!ENDTRNS",
}

// iifField strips characters that would break the tab separated layout.
var iifField = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// WriteIIF writes entries as a QuickBooks general journal import. Every journal
// line becomes a TRNS row with a signed amount: positive for debits, negative for
// credits. Each entry is closed by ENDTRNS.
func WriteIIF(w io.Writer, entries []accounting.JournalEntry) error {
	s := newLineStreamer(w)
	for _, h := range iifHeaders {
		if err := s.writeLine(h, "\n"); err != nil {
			return fmt.Errorf("export: iif header: %w", err)
		}
	}
	for _, entry := range entries {
		date := entry.EntryDate.Format("1/2/2006")
		for _, line := range entry.Lines {
			amount := line.Debit
			if line.Debit.IsZero() {
				amount = line.Credit.Neg()
			}
			row := strings.Join([]string{
				"TRNS",
				"",
				"GENERAL JOURNAL",
				date,
				iifField.Replace(line.AccountName),
				"",
				shared.FormatAmount(amount),
				iifField.Replace(line.Description),
			}, "\t")
			if err := s.writeLine(row, "\n"); err != nil {
				return fmt.Errorf("export: iif: %w", err)
			}
		}
		if err := s.writeLine("ENDTRNS", "\n"); err != nil {
			return fmt.Errorf("export: iif: %w", err)
		}
	}
	if err := s.flush(); err != nil {
		return fmt.Errorf("export: iif flush: %w", err)
	}
	return nil
}
