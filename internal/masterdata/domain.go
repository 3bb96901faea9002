// Package masterdata resolves product variations and business locations for
// display names and configured prices.
package masterdata

import (
	"context"

	"github.com/shopspring/decimal"
)

// Variation is a sellable product variation with its configured prices.
type Variation struct {
	ID            int64
	ProductID     int64
	ProductName   string
	VariationName string
	SKU           string
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
}

// DisplayName joins product and variation names the way reports print them.
func (v Variation) DisplayName() string {
	if v.VariationName == "" || v.VariationName == "DUMMY" {
		return v.ProductName
	}
	return v.ProductName + " - " + v.VariationName
}

// Location is a business location (store or warehouse).
type Location struct {
	ID         int64
	BusinessID int64
	Name       string
}

// Catalog looks up variations and locations for one business. Missing ids are
// simply absent from the returned maps.
type Catalog interface {
	Variations(ctx context.Context, businessID int64, ids []int64) (map[int64]Variation, error)
	Locations(ctx context.Context, businessID int64) (map[int64]Location, error)
}

// StaticCatalog is a fixed in-memory Catalog.
type StaticCatalog struct {
	VariationsByID map[int64]Variation
	LocationsByID  map[int64]Location
}

// Variations implements Catalog.
func (c StaticCatalog) Variations(_ context.Context, _ int64, ids []int64) (map[int64]Variation, error) {
	out := make(map[int64]Variation, len(ids))
	for _, id := range ids {
		if v, ok := c.VariationsByID[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// Locations implements Catalog.
func (c StaticCatalog) Locations(_ context.Context, businessID int64) (map[int64]Location, error) {
	out := make(map[int64]Location, len(c.LocationsByID))
	for id, loc := range c.LocationsByID {
		if loc.BusinessID == 0 || loc.BusinessID == businessID {
			out[id] = loc
		}
	}
	return out, nil
}
