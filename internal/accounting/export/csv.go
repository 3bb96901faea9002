// Package export renders generated journal entries as CSV and QuickBooks IIF.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	flushEvery = 200
	bufferSize = 32 * 1024
)

// CSVHeader is the first row of a journal CSV export.
var CSVHeader = []string{"Date", "Type", "Reference", "Ref Number", "Account", "Account Name", "Debit", "Credit", "Description"}

// lineStreamer buffers rows and flushes periodically so large exports stream.
type lineStreamer struct {
	buf     *bufio.Writer
	pending int
}

func newLineStreamer(w io.Writer) *lineStreamer {
	return &lineStreamer{buf: bufio.NewWriterSize(w, bufferSize)}
}

func (s *lineStreamer) writeLine(line, eol string) error {
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	if _, err := s.buf.WriteString(eol); err != nil {
		return err
	}
	s.pending++
	if s.pending >= flushEvery {
		return s.flush()
	}
	return nil
}

func (s *lineStreamer) flush() error {
	s.pending = 0
	return s.buf.Flush()
}

// quoteAll quotes every field and doubles embedded quotes.
func quoteAll(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

// WriteCSV writes one row per journal line with a blank row between entries.
// Every field is quoted; rows end in CRLF.
func WriteCSV(w io.Writer, entries []accounting.JournalEntry) error {
	s := newLineStreamer(w)
	if err := s.writeLine(quoteAll(CSVHeader), "\r\n"); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for i, entry := range entries {
		if i > 0 {
			if err := s.writeLine("", "\r\n"); err != nil {
				return fmt.Errorf("export: csv: %w", err)
			}
		}
		date := entry.EntryDate.Format("2006-01-02")
		for _, line := range entry.Lines {
			row := []string{
				date,
				entry.ReferenceType.Label(),
				fmt.Sprintf("%d", entry.ReferenceID),
				entry.ReferenceNumber,
				line.AccountCode,
				line.AccountName,
				shared.FormatAmount(line.Debit),
				shared.FormatAmount(line.Credit),
				line.Description,
			}
			if err := s.writeLine(quoteAll(row), "\r\n"); err != nil {
				return fmt.Errorf("export: csv: %w", err)
			}
		}
	}
	if err := s.flush(); err != nil {
		return fmt.Errorf("export: csv flush: %w", err)
	}
	return nil
}
