package stockledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the ledger from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, business_id, product_id, variation_id, location_id, transaction_type,
	quantity_change, balance_qty_after, unit_cost, created_at`

// ListEntries implements Store.
func (r *Repository) ListEntries(ctx context.Context, variationID, locationID int64, upTo time.Time) ([]Entry, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("stockledger: repository not initialised")
	}
	query := `SELECT ` + entryColumns + `
FROM stock_ledger_entries
WHERE variation_id = $1 AND location_id = $2 AND created_at <= $3
ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, variationID, locationID, upTo)
	if err != nil {
		return nil, fmt.Errorf("stockledger: list entries: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stockledger: list entries: %w", err)
	}
	return entries, nil
}

// ListKeys implements Store.
func (r *Repository) ListKeys(ctx context.Context, filter ScanFilter) ([]Key, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("stockledger: repository not initialised")
	}
	const query = `SELECT DISTINCT product_id, variation_id, location_id
FROM stock_ledger_entries
WHERE business_id = $1 AND created_at <= $2 AND ($3::bigint IS NULL OR location_id = $3)
ORDER BY product_id, variation_id, location_id`
	rows, err := r.pool.Query(ctx, query, filter.BusinessID, filter.UpTo, filter.LocationID)
	if err != nil {
		return nil, fmt.Errorf("stockledger: list keys: %w", err)
	}
	defer rows.Close()
	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.ProductID, &k.VariationID, &k.LocationID); err != nil {
			return nil, fmt.Errorf("stockledger: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stockledger: list keys: %w", err)
	}
	return keys, nil
}

// ScanEntries implements Store.
func (r *Repository) ScanEntries(ctx context.Context, filter ScanFilter, fn func(Entry) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("stockledger: repository not initialised")
	}
	query := `SELECT ` + entryColumns + `
FROM stock_ledger_entries
WHERE business_id = $1 AND created_at <= $2 AND ($3::bigint IS NULL OR location_id = $3)`
	rows, err := r.pool.Query(ctx, query, filter.BusinessID, filter.UpTo, filter.LocationID)
	if err != nil {
		return fmt.Errorf("stockledger: scan entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("stockledger: scan entries: %w", err)
	}
	return nil
}

func scanEntry(rows pgx.Rows) (Entry, error) {
	var (
		e      Entry
		txType string
	)
	if err := rows.Scan(
		&e.SequenceID,
		&e.BusinessID,
		&e.ProductID,
		&e.VariationID,
		&e.LocationID,
		&txType,
		&e.QuantityChange,
		&e.BalanceQtyAfter,
		&e.UnitCost,
		&e.CreatedAt,
	); err != nil {
		return Entry{}, fmt.Errorf("stockledger: scan entry: %w", err)
	}
	e.Type = TransactionType(txType)
	return e, nil
}
