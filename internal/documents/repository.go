package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads documents from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `id, business_id, location_id, invoice_no, transaction_date, customer_id, status,
	total, discount_amount, shipping_charges, additional_expenses, reward_amount`

// FindSale implements Reader.
func (r *Repository) FindSale(ctx context.Context, businessID, id int64) (Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE business_id = $1 AND id = $2`
	s, err := scanSale(r.pool.QueryRow(ctx, query, businessID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Sale{}, fmt.Errorf("documents: find sale: %w", err)
	}
	lines, err := r.saleLines(ctx, r.pool, []int64{id})
	if err != nil {
		return Sale{}, err
	}
	s.Lines = lines[id]
	return s, nil
}

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s      Sale
		status string
	)
	err := row.Scan(&s.ID, &s.BusinessID, &s.LocationID, &s.InvoiceNo, &s.TransactionDate, &s.CustomerID, &status,
		&s.Total, &s.Discount, &s.ShippingCharges, &s.AdditionalExpenses, &s.RewardAmount)
	s.Status = SaleStatus(status)
	return s, err
}

func (r *Repository) saleLines(ctx context.Context, q querier, saleIDs []int64) (map[int64][]SaleLine, error) {
	const query = `SELECT sale_id, variation_id, quantity, unit_price, unit_cost
FROM sale_lines WHERE sale_id = ANY($1) ORDER BY sale_id, id`
	rows, err := q.Query(ctx, query, saleIDs)
	if err != nil {
		return nil, fmt.Errorf("documents: sale lines: %w", err)
	}
	defer rows.Close()
	out := make(map[int64][]SaleLine, len(saleIDs))
	for rows.Next() {
		var (
			saleID int64
			l      SaleLine
		)
		if err := rows.Scan(&saleID, &l.VariationID, &l.Quantity, &l.UnitPrice, &l.UnitCost); err != nil {
			return nil, fmt.Errorf("documents: scan sale line: %w", err)
		}
		out[saleID] = append(out[saleID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("documents: sale lines: %w", err)
	}
	return out, nil
}

// FindPurchaseReceipt implements Reader.
func (r *Repository) FindPurchaseReceipt(ctx context.Context, businessID, id int64) (PurchaseReceipt, error) {
	const query = `SELECT id, business_id, location_id, ref_no, received_at, supplier_id,
	discount_amount, shipping_charges, additional_expenses
FROM purchase_receipts WHERE business_id = $1 AND id = $2`
	var p PurchaseReceipt
	err := r.pool.QueryRow(ctx, query, businessID, id).Scan(&p.ID, &p.BusinessID, &p.LocationID, &p.RefNo,
		&p.ReceivedAt, &p.SupplierID, &p.Discount, &p.ShippingCharges, &p.AdditionalExpenses)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseReceipt{}, fmt.Errorf("purchase receipt %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return PurchaseReceipt{}, fmt.Errorf("documents: find purchase receipt: %w", err)
	}
	const linesQuery = `SELECT variation_id, accepted_qty, unit_cost
FROM purchase_receipt_lines WHERE receipt_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, linesQuery, id)
	if err != nil {
		return PurchaseReceipt{}, fmt.Errorf("documents: receipt lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l ReceiptLine
		if err := rows.Scan(&l.VariationID, &l.AcceptedQty, &l.UnitCost); err != nil {
			return PurchaseReceipt{}, fmt.Errorf("documents: scan receipt line: %w", err)
		}
		p.Lines = append(p.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return PurchaseReceipt{}, fmt.Errorf("documents: receipt lines: %w", err)
	}
	return p, nil
}

// FindInventoryCorrection implements Reader.
func (r *Repository) FindInventoryCorrection(ctx context.Context, businessID, id int64) (InventoryCorrection, error) {
	const query = `SELECT id, business_id, location_id, variation_id, ref_no, corrected_at,
	difference, unit_cost, COALESCE(reason, ''), amount_recovered
FROM inventory_corrections WHERE business_id = $1 AND id = $2`
	var c InventoryCorrection
	err := r.pool.QueryRow(ctx, query, businessID, id).Scan(&c.ID, &c.BusinessID, &c.LocationID, &c.VariationID,
		&c.RefNo, &c.CorrectedAt, &c.Difference, &c.UnitCost, &c.Reason, &c.AmountRecovered)
	if errors.Is(err, pgx.ErrNoRows) {
		return InventoryCorrection{}, fmt.Errorf("inventory correction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return InventoryCorrection{}, fmt.Errorf("documents: find inventory correction: %w", err)
	}
	return c, nil
}

// FindTransfer implements Reader.
func (r *Repository) FindTransfer(ctx context.Context, businessID, id int64) (Transfer, error) {
	const query = `SELECT id, business_id, from_location_id, to_location_id, ref_no, transferred_at, shipping_charges
FROM stock_transfers WHERE business_id = $1 AND id = $2`
	var t Transfer
	err := r.pool.QueryRow(ctx, query, businessID, id).Scan(&t.ID, &t.BusinessID, &t.FromLocationID,
		&t.ToLocationID, &t.RefNo, &t.TransferredAt, &t.ShippingCharges)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transfer{}, fmt.Errorf("transfer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Transfer{}, fmt.Errorf("documents: find transfer: %w", err)
	}
	return t, nil
}

var listIDQueries = map[Kind]string{
	KindSale: `SELECT id FROM sales
WHERE business_id = $1 AND transaction_date BETWEEN $2 AND $3 AND status NOT IN ('void', 'cancelled', 'draft')
ORDER BY transaction_date, id`,
	KindPurchaseReceipt: `SELECT id FROM purchase_receipts
WHERE business_id = $1 AND received_at BETWEEN $2 AND $3 ORDER BY received_at, id`,
	KindInventoryCorrection: `SELECT id FROM inventory_corrections
WHERE business_id = $1 AND corrected_at BETWEEN $2 AND $3 ORDER BY corrected_at, id`,
	KindTransfer: `SELECT id FROM stock_transfers
WHERE business_id = $1 AND transferred_at BETWEEN $2 AND $3 ORDER BY transferred_at, id`,
}

// ListIDs implements Reader.
func (r *Repository) ListIDs(ctx context.Context, businessID int64, kind Kind, from, to time.Time) ([]int64, error) {
	query, ok := listIDQueries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	rows, err := r.pool.Query(ctx, query, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("documents: list %s: %w", kind, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("documents: list %s: %w", kind, err)
	}
	return ids, nil
}

// ListSales implements PeriodReader.
func (r *Repository) ListSales(ctx context.Context, filter PeriodFilter) ([]Sale, error) {
	var sales []Sale
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + saleColumns + ` FROM sales
WHERE business_id = $1 AND transaction_date BETWEEN $2 AND $3 AND ($4::bigint IS NULL OR location_id = $4)
ORDER BY id`
		rows, err := tx.Query(ctx, query, filter.BusinessID, filter.From, filter.To, filter.LocationID)
		if err != nil {
			return fmt.Errorf("documents: list sales: %w", err)
		}
		for rows.Next() {
			s, err := scanSale(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("documents: scan sale: %w", err)
			}
			sales = append(sales, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("documents: list sales: %w", err)
		}
		if len(sales) == 0 {
			return nil
		}
		ids := make([]int64, len(sales))
		for i, s := range sales {
			ids[i] = s.ID
		}
		lines, err := r.saleLines(ctx, tx, ids)
		if err != nil {
			return err
		}
		for i := range sales {
			sales[i].Lines = lines[sales[i].ID]
		}
		return nil
	})
	return sales, err
}

// PeriodTotals implements PeriodReader. All aggregates are read from one snapshot.
func (r *Repository) PeriodTotals(ctx context.Context, filter PeriodFilter) (PeriodTotals, error) {
	t := ZeroTotals()
	args := []any{filter.BusinessID, filter.From, filter.To, filter.LocationID}
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		const salesQuery = `SELECT COALESCE(SUM(total), 0), COALESCE(SUM(discount_amount), 0),
	COALESCE(SUM(shipping_charges), 0), COALESCE(SUM(additional_expenses), 0), COALESCE(SUM(reward_amount), 0)
FROM sales
WHERE business_id = $1 AND transaction_date BETWEEN $2 AND $3 AND ($4::bigint IS NULL OR location_id = $4)
	AND status NOT IN ('void', 'cancelled', 'draft')`
		if err := tx.QueryRow(ctx, salesQuery, args...).Scan(&t.TotalSales, &t.TotalSellDiscount,
			&t.TotalSellShipping, &t.SellAdditionalExpenses, &t.TotalCustomerReward); err != nil {
			return fmt.Errorf("documents: sales totals: %w", err)
		}

		const purchaseQuery = `SELECT
	COALESCE(SUM(l.line_total), 0), COALESCE(SUM(p.discount_amount), 0),
	COALESCE(SUM(p.shipping_charges), 0), COALESCE(SUM(p.additional_expenses), 0)
FROM purchase_receipts p
LEFT JOIN (
	SELECT receipt_id, SUM(accepted_qty * unit_cost) AS line_total
	FROM purchase_receipt_lines GROUP BY receipt_id
) l ON l.receipt_id = p.id
WHERE p.business_id = $1 AND p.received_at BETWEEN $2 AND $3 AND ($4::bigint IS NULL OR p.location_id = $4)`
		if err := tx.QueryRow(ctx, purchaseQuery, args...).Scan(&t.TotalPurchases, &t.TotalPurchaseDiscount,
			&t.TotalPurchaseShipping, &t.PurchaseAdditionalExpenses); err != nil {
			return fmt.Errorf("documents: purchase totals: %w", err)
		}

		const correctionQuery = `SELECT COALESCE(SUM(difference * unit_cost), 0), COALESCE(SUM(amount_recovered), 0)
FROM inventory_corrections
WHERE business_id = $1 AND corrected_at BETWEEN $2 AND $3 AND ($4::bigint IS NULL OR location_id = $4)`
		if err := tx.QueryRow(ctx, correctionQuery, args...).Scan(&t.TotalStockAdjustment, &t.TotalStockRecovered); err != nil {
			return fmt.Errorf("documents: correction totals: %w", err)
		}

		const transferQuery = `SELECT COALESCE(SUM(shipping_charges), 0)
FROM stock_transfers
WHERE business_id = $1 AND transferred_at BETWEEN $2 AND $3 AND ($4::bigint IS NULL OR from_location_id = $4)`
		if err := tx.QueryRow(ctx, transferQuery, args...).Scan(&t.TotalTransferShipping); err != nil {
			return fmt.Errorf("documents: transfer totals: %w", err)
		}

		const returnQuery = `SELECT
	COALESCE(SUM(amount) FILTER (WHERE kind = 'sell'), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'purchase'), 0)
FROM returns
WHERE business_id = $1 AND return_date BETWEEN $2 AND $3 AND ($4::bigint IS NULL OR location_id = $4)`
		if err := tx.QueryRow(ctx, returnQuery, args...).Scan(&t.TotalSellReturns, &t.TotalPurchaseReturns); err != nil {
			return fmt.Errorf("documents: return totals: %w", err)
		}

		const expenseQuery = `SELECT COALESCE(SUM(amount), 0)
FROM expenses
WHERE business_id = $1 AND expense_date BETWEEN $2 AND $3 AND ($4::bigint IS NULL OR location_id = $4)`
		if err := tx.QueryRow(ctx, expenseQuery, args...).Scan(&t.TotalExpenses); err != nil {
			return fmt.Errorf("documents: expense totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return PeriodTotals{}, err
	}
	return t, nil
}
