package accounting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// phantomReader lists ids that no longer resolve, like a record deleted
// between listing and lookup.
type phantomReader struct {
	*documents.Memory
	phantom map[documents.Kind][]int64
	lookups atomic.Int64
}

func (p *phantomReader) ListIDs(ctx context.Context, businessID int64, kind documents.Kind, from, to time.Time) ([]int64, error) {
	ids, err := p.Memory.ListIDs(ctx, businessID, kind, from, to)
	if err != nil {
		return nil, err
	}
	return append(ids, p.phantom[kind]...), nil
}

func (p *phantomReader) FindSale(ctx context.Context, businessID, id int64) (documents.Sale, error) {
	p.lookups.Add(1)
	return p.Memory.FindSale(ctx, businessID, id)
}

func periodDocs() *documents.Memory {
	m := documents.NewMemory()
	customer := int64(5)
	m.Add(
		documents.Sale{ID: 1, BusinessID: 1, InvoiceNo: "INV-1", TransactionDate: txDate.Add(48 * time.Hour),
			CustomerID: &customer, Status: documents.SaleFinal, Total: d("150"),
			Lines: []documents.SaleLine{{VariationID: 10, Quantity: d("3"), UnitCost: d("20")}}},
		documents.Sale{ID: 2, BusinessID: 1, InvoiceNo: "INV-2", TransactionDate: txDate.Add(24 * time.Hour),
			Status: documents.SaleFinal, Total: d("30")},
		documents.PurchaseReceipt{ID: 5, BusinessID: 1, RefNo: "GRN-5", ReceivedAt: txDate, Lines: []documents.ReceiptLine{
			{VariationID: 10, AcceptedQty: d("10"), UnitCost: d("5")},
			{VariationID: 11, AcceptedQty: d("4"), UnitCost: d("7.5")},
		}},
		documents.InventoryCorrection{ID: 7, BusinessID: 1, CorrectedAt: txDate.Add(24 * time.Hour),
			Difference: d("-3"), UnitCost: d("20"), Reason: "shrinkage found"},
		documents.InventoryCorrection{ID: 8, BusinessID: 1, CorrectedAt: txDate.Add(25 * time.Hour),
			Difference: d("0"), UnitCost: d("20")},
		documents.Transfer{ID: 9, BusinessID: 1, FromLocationID: 1, ToLocationID: 2, TransferredAt: txDate},
		documents.Sale{ID: 99, BusinessID: 2, TransactionDate: txDate, Total: d("1")},
	)
	return m
}

func TestGenerateJournalEntriesNotFound(t *testing.T) {
	svc := NewService(periodDocs(), 2, nil, nil)
	_, err := svc.GenerateJournalEntries(context.Background(), documents.KindPurchaseReceipt, 404, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)

	entries, err := svc.GenerateJournalEntries(context.Background(), documents.KindPurchaseReceipt, 5, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestGenerateJournalEntriesWrapsDataSourceFailure(t *testing.T) {
	docs := periodDocs()
	boom := errors.New("connection refused")
	docs.FailWith(boom)
	svc := NewService(docs, 2, nil, nil)
	_, err := svc.GenerateJournalEntries(context.Background(), documents.KindSale, 1, 1)
	require.ErrorIs(t, err, boom)
	var opErr *shared.OpError
	require.ErrorAs(t, err, &opErr)
}

func TestGetGLEntriesForPeriodIsolatesFailures(t *testing.T) {
	reader := &phantomReader{Memory: periodDocs(), phantom: map[documents.Kind][]int64{documents.KindSale: {77}}}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	svc := NewService(reader, 3, nil, metrics)

	batch, err := svc.GetGLEntriesForPeriod(context.Background(), 1, txDate.Add(-time.Hour), txDate.Add(72*time.Hour), nil)
	require.NoError(t, err)

	require.Len(t, batch.Skipped, 1)
	require.Equal(t, int64(77), batch.Skipped[0].ReferenceID)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.failed.WithLabelValues("sale")))

	// receipt, sale 2 (no cost), correction 7, sale 1 (revenue + cost)
	require.Len(t, batch.Entries, 5)
	for i := 1; i < len(batch.Entries); i++ {
		require.False(t, batch.Entries[i].EntryDate.Before(batch.Entries[i-1].EntryDate))
	}
	require.Equal(t, documents.KindPurchaseReceipt, batch.Entries[0].ReferenceType)
	require.Equal(t, documents.KindSale, batch.Entries[1].ReferenceType)
	require.Equal(t, documents.KindInventoryCorrection, batch.Entries[2].ReferenceType)
	require.Equal(t, AccountReceivable, batch.Entries[3].Lines[0].AccountCode)
	require.Equal(t, AccountCOGS, batch.Entries[4].Lines[0].AccountCode)
	for _, e := range batch.Entries {
		require.True(t, e.Balanced)
		require.Equal(t, int64(1), e.BusinessID)
	}
	require.Equal(t, int64(3), reader.lookups.Load())
}

func TestGetGLEntriesForPeriodLeavesOutVoidSales(t *testing.T) {
	docs := documents.NewMemory()
	docs.Add(
		documents.Sale{ID: 1, BusinessID: 1, InvoiceNo: "INV-1", TransactionDate: txDate, Status: documents.SaleVoid,
			Total: d("500"), Lines: []documents.SaleLine{{VariationID: 10, Quantity: d("2"), UnitCost: d("100")}}},
		documents.Sale{ID: 2, BusinessID: 1, InvoiceNo: "INV-2", TransactionDate: txDate, Status: documents.SaleCancelled,
			Total: d("40")},
		documents.Sale{ID: 3, BusinessID: 1, InvoiceNo: "INV-3", TransactionDate: txDate, Status: documents.SaleFinal,
			Total: d("25")},
	)
	svc := NewService(docs, 2, nil, nil)
	batch, err := svc.GetGLEntriesForPeriod(context.Background(), 1, txDate.Add(-time.Hour), txDate.Add(time.Hour), nil)
	require.NoError(t, err)
	require.Empty(t, batch.Skipped)
	require.Len(t, batch.Entries, 1)
	require.Equal(t, int64(3), batch.Entries[0].ReferenceID)

	// looked up directly, a void sale still resolves but posts nothing
	entries, err := svc.GenerateJournalEntries(context.Background(), documents.KindSale, 1, 1)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGetGLEntriesForPeriodFiltersKinds(t *testing.T) {
	svc := NewService(periodDocs(), 1, nil, nil)
	batch, err := svc.GetGLEntriesForPeriod(context.Background(), 1, txDate.Add(-time.Hour), txDate.Add(72*time.Hour),
		[]documents.Kind{documents.KindInventoryCorrection, documents.KindTransfer})
	require.NoError(t, err)
	require.Len(t, batch.Entries, 1)
	require.Empty(t, batch.Skipped, "zero-difference correction is not a failure")
	require.Equal(t, AccountInventoryShrinkage, batch.Entries[0].Lines[0].AccountCode)
}

func TestGetGLEntriesForPeriodIsIdempotent(t *testing.T) {
	svc := NewService(periodDocs(), 4, nil, nil)
	from, to := txDate.Add(-time.Hour), txDate.Add(72*time.Hour)
	first, err := svc.GetGLEntriesForPeriod(context.Background(), 1, from, to, nil)
	require.NoError(t, err)
	second, err := svc.GetGLEntriesForPeriod(context.Background(), 1, from, to, nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGetGLEntriesForPeriodManyRecords(t *testing.T) {
	docs := documents.NewMemory()
	for i := int64(1); i <= 200; i++ {
		docs.Add(documents.PurchaseReceipt{ID: i, BusinessID: 1, RefNo: fmt.Sprintf("GRN-%d", i),
			ReceivedAt: txDate.Add(time.Duration(200-i) * time.Minute),
			Lines:      []documents.ReceiptLine{{VariationID: 1, AcceptedQty: d("1"), UnitCost: d("2")}}})
	}
	svc := NewService(docs, 8, nil, nil)
	batch, err := svc.GetGLEntriesForPeriod(context.Background(), 1, txDate, txDate.Add(24*time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, batch.Entries, 200)
	require.Equal(t, int64(200), batch.Entries[0].ReferenceID)
	require.Equal(t, int64(1), batch.Entries[199].ReferenceID)
}

func TestGetGLEntriesForPeriodCancelled(t *testing.T) {
	svc := NewService(periodDocs(), 2, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GetGLEntriesForPeriod(ctx, 1, txDate.Add(-time.Hour), txDate.Add(72*time.Hour), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGetGLEntriesForPeriodRejectsInvertedRange(t *testing.T) {
	svc := NewService(periodDocs(), 2, nil, nil)
	_, err := svc.GetGLEntriesForPeriod(context.Background(), 1, txDate, txDate.Add(-time.Hour), nil)
	require.ErrorIs(t, err, shared.ErrInvalidRange)
}
