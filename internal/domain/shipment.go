package domain

import (
	"time"

	"github.com/google/uuid"
)

// Shipment is the carrier registration attached to an order. At most one is
// active per order; re-registering replaces the previous row in place.
type Shipment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	CarrierID      string
	CarrierName    string
	TrackingNumber string
	// LastStatusCode holds the carrier's raw status vocabulary, not ours.
	LastStatusCode string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
