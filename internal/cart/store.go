package cart

import (
	"context"
	"errors"

	"github.com/chanjin5212/myfarm-sub001/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// Store holds the shopper's pending selections until payment completes.
// Carts are ephemeral; Redis is their system of record.
type Store interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
	// RemoveMatching deletes cart items whose (product, variant) pair matches
	// one of the given order lines. Partial matches stay in the cart.
	RemoveMatching(ctx context.Context, userID string, lines []domain.OrderLine) error
}
