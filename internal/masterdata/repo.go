package masterdata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements Catalog over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Variations implements Catalog.
func (r *Repository) Variations(ctx context.Context, businessID int64, ids []int64) (map[int64]Variation, error) {
	out := make(map[int64]Variation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const query = `SELECT v.id, v.product_id, p.name, v.name, v.sku,
	COALESCE(v.default_purchase_price, 0), COALESCE(v.sell_price_inc_tax, 0)
FROM variations v
JOIN products p ON p.id = v.product_id
WHERE p.business_id = $1 AND v.id = ANY($2)`
	rows, err := r.db.Query(ctx, query, businessID, ids)
	if err != nil {
		return nil, fmt.Errorf("masterdata: variations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v Variation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.ProductName, &v.VariationName, &v.SKU, &v.PurchasePrice, &v.SellingPrice); err != nil {
			return nil, fmt.Errorf("masterdata: scan variation: %w", err)
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

// Locations implements Catalog.
func (r *Repository) Locations(ctx context.Context, businessID int64) (map[int64]Location, error) {
	const query = `SELECT id, business_id, name FROM business_locations WHERE business_id = $1 ORDER BY name`
	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("masterdata: locations: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]Location)
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.BusinessID, &loc.Name); err != nil {
			return nil, fmt.Errorf("masterdata: scan location: %w", err)
		}
		out[loc.ID] = loc
	}
	return out, rows.Err()
}
