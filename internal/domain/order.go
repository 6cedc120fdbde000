package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusShipping  OrderStatus = "SHIPPING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// IsTerminal reports whether no further lifecycle transitions are expected.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// AtLeastPaid reports whether payment has already been captured for an order
// in this status. Used for idempotent payment replays.
func (s OrderStatus) AtLeastPaid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusPreparing, OrderStatusShipping, OrderStatusDelivered, OrderStatusRefunded:
		return true
	}
	return false
}

// Cancellable reports whether the order may still move to CANCELLED.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusPreparing:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// ShippingSnapshot is copied from the shopper's address book at order
// creation time and never linked back to it.
type ShippingSnapshot struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	AddressDetail string `json:"address_detail,omitempty"`
	Memo          string `json:"memo,omitempty"`
}

type OrderLine struct {
	ProductID       int64  `json:"product_id"`
	VariantID       *int64 `json:"variant_id,omitempty"`
	ProductName     string `json:"product_name"`
	ProductImageURL string `json:"product_image_url,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	OptionSurcharge int64  `json:"option_surcharge"`
}

// Subtotal is the frozen line amount in minor currency units.
func (l OrderLine) Subtotal() int64 {
	return (l.UnitPrice + l.OptionSurcharge) * int64(l.Quantity)
}

type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	UserID        string
	Status        OrderStatus
	TotalAmount   int64
	Shipping      ShippingSnapshot
	PaymentMethod string
	Lines         []OrderLine
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LinesTotal recomputes the sum of line subtotals. TotalAmount is fixed at
// creation; this is only used to establish it once.
func (o *Order) LinesTotal() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.Subtotal()
	}
	return total
}
