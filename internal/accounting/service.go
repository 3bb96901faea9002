package accounting

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const defaultConcurrency = 8

// SkippedRecord is a source document excluded from a batch because its
// generation failed.
type SkippedRecord struct {
	ReferenceType documents.Kind `json:"reference_type"`
	ReferenceID   int64          `json:"reference_id"`
	Reason        string         `json:"reason"`
}

// GLBatch is the outcome of GetGLEntriesForPeriod.
type GLBatch struct {
	BusinessID int64            `json:"business_id"`
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	Kinds      []documents.Kind `json:"reference_types"`
	Entries    []JournalEntry   `json:"entries"`
	Skipped    []SkippedRecord  `json:"skipped,omitempty"`
}

// Service generates journal entries from documents on demand.
type Service struct {
	docs        documents.Reader
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics
}

// NewService constructs the journal service. concurrency bounds batch fan-out.
func NewService(docs documents.Reader, concurrency int, logger *slog.Logger, metrics *Metrics) *Service {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, concurrency: concurrency, logger: logger, metrics: metrics}
}

// GenerateJournalEntries builds the entries for one document. A missing document
// yields an error matching shared.ErrNotFound.
func (s *Service) GenerateJournalEntries(ctx context.Context, kind documents.Kind, referenceID, businessID int64) ([]JournalEntry, error) {
	src, err := documents.Find(ctx, s.docs, kind, businessID, referenceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, documents.ErrUnknownKind) {
			return nil, err
		}
		return nil, shared.WrapOp("accounting.generate_journal_entries", businessID, time.Time{}, time.Time{}, err)
	}
	entries, err := Generate(src)
	if err != nil {
		return nil, err
	}
	s.metrics.addGenerated(string(kind), len(entries))
	return entries, nil
}

// GetGLEntriesForPeriod generates entries for every document of the requested
// kinds dated inside [from, to]. A failing record is logged and listed in
// Skipped; listing failures and cancellation fail the whole batch.
func (s *Service) GetGLEntriesForPeriod(ctx context.Context, businessID int64, from, to time.Time, kinds []documents.Kind) (GLBatch, error) {
	const op = "accounting.get_gl_entries_for_period"
	if to.Before(from) {
		return GLBatch{}, shared.ErrInvalidRange
	}
	if len(kinds) == 0 {
		kinds = documents.Kinds()
	}

	type task struct {
		kind documents.Kind
		id   int64
	}
	var tasks []task
	for _, kind := range kinds {
		ids, err := s.docs.ListIDs(ctx, businessID, kind, from, to)
		if err != nil {
			return GLBatch{}, shared.WrapOp(op, businessID, from, to, err)
		}
		for _, id := range ids {
			tasks = append(tasks, task{kind: kind, id: id})
		}
	}

	type outcome struct {
		entries []JournalEntry
		err     error
	}
	outcomes := make([]outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, t := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := s.GenerateJournalEntries(ctx, t.kind, t.id, businessID)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			outcomes[i] = outcome{entries: entries, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GLBatch{}, shared.WrapOp(op, businessID, from, to, err)
	}

	batch := GLBatch{BusinessID: businessID, From: from, To: to, Kinds: kinds, Entries: []JournalEntry{}}
	for i, out := range outcomes {
		t := tasks[i]
		if out.err != nil {
			if errors.Is(out.err, ErrZeroDifference) {
				continue
			}
			s.metrics.addFailed(string(t.kind))
			s.logger.Warn("gl batch record skipped",
				slog.Int64("business_id", businessID),
				slog.String("reference_type", string(t.kind)),
				slog.Int64("reference_id", t.id),
				slog.Any("error", out.err))
			batch.Skipped = append(batch.Skipped, SkippedRecord{ReferenceType: t.kind, ReferenceID: t.id, Reason: out.err.Error()})
			continue
		}
		batch.Entries = append(batch.Entries, out.entries...)
	}
	SortEntries(batch.Entries)
	return batch, nil
}

// SortEntries orders entries by date then reference. Entries of one document
// keep their generation order.
func SortEntries(entries []JournalEntry) {
	rank := make(map[documents.Kind]int)
	for i, k := range documents.Kinds() {
		rank[k] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		if a.ReferenceType != b.ReferenceType {
			return rank[a.ReferenceType] < rank[b.ReferenceType]
		}
		return a.ReferenceID < b.ReferenceID
	})
}
