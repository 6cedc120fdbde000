package domain

// Product carries the catalog fields order intake needs to freeze a line:
// identity, display snapshot and current pricing. Catalog management itself
// lives outside this service.
type Product struct {
	ID       int64
	Name     string
	ImageURL string
	Price    int64
}

// ProductVariant is an optional purchasable option of a product with its own
// surcharge and stock level.
type ProductVariant struct {
	ID        int64
	ProductID int64
	Name      string
	Surcharge int64
}

// InventoryLevel is the stock counter for a product or product variant.
// It is only ever changed through the ledger's atomic adjust primitives.
type InventoryLevel struct {
	ProductID int64
	VariantID *int64
	Available int
}
