package repository

import (
	"context"
	"fmt"
)

// Decrement takes qty units off the available count in a single guarded
// UPDATE. Zero rows affected means the guard rejected the change: either the
// row does not exist or fewer than qty units remain. Concurrent checkouts
// racing for the last unit serialize on this statement, so availability can
// never go negative.
func (r *Repository) Decrement(ctx context.Context, productID int64, variantID *int64, qty int) error {
	query := `UPDATE inventory_levels
	          SET available = available - $3, updated_at = NOW()
	          WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2 AND available >= $3`

	res, err := r.db.ExecContext(ctx, query, productID, variantID, qty)
	if err != nil {
		return fmt.Errorf("decrement inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement inventory: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// Increment puts qty units back, used by intake compensation and order
// cancellation.
func (r *Repository) Increment(ctx context.Context, productID int64, variantID *int64, qty int) error {
	query := `UPDATE inventory_levels
	          SET available = available + $3, updated_at = NOW()
	          WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2`

	res, err := r.db.ExecContext(ctx, query, productID, variantID, qty)
	if err != nil {
		return fmt.Errorf("increment inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment inventory: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
