package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRecord is the audit row appended after the gateway confirms a
// charge. It is never mutated once written.
type PaymentRecord struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	TransactionKey string
	Method         string
	Amount         int64
	GatewayStatus  string
	// RawPayload is the gateway response as received, kept for replay and
	// manual reconciliation. It is not parsed beyond the fields above.
	RawPayload []byte
	CreatedAt  time.Time
}
