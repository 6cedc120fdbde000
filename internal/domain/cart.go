package domain

import "time"

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ProductID int64     `json:"product_id"`
	VariantID *int64    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// MatchesLine reports whether this cart item refers to the same
// (product, variant) pair as an order line. Both sides must agree on the
// variant: either neither has one or both carry the same id.
func (c CartItem) MatchesLine(l OrderLine) bool {
	if c.ProductID != l.ProductID {
		return false
	}
	if c.VariantID == nil && l.VariantID == nil {
		return true
	}
	if c.VariantID != nil && l.VariantID != nil {
		return *c.VariantID == *l.VariantID
	}
	return false
}
