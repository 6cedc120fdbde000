package carrier

import "github.com/chanjin5212/myfarm-sub001/internal/domain"

// Carrier status vocabulary as delivered by the tracking provider. The raw
// code is stored on the shipment; orders only ever see the mapped status.
const (
	StatusDelivered           = "DELIVERED"
	StatusInTransit           = "IN_TRANSIT"
	StatusOutForDelivery      = "OUT_FOR_DELIVERY"
	StatusException           = "EXCEPTION"
	StatusAttemptFail         = "ATTEMPT_FAIL"
	StatusAvailableForPickup  = "AVAILABLE_FOR_PICKUP"
	StatusAtPickup            = "AT_PICKUP"
	StatusInformationReceived = "INFORMATION_RECEIVED"
	StatusUnknown             = "UNKNOWN"
	StatusNotFound            = "NOT_FOUND"
)

var statusTable = map[string]domain.OrderStatus{
	StatusDelivered:           domain.OrderStatusDelivered,
	StatusInTransit:           domain.OrderStatusShipping,
	StatusOutForDelivery:      domain.OrderStatusShipping,
	StatusException:           domain.OrderStatusShipping,
	StatusAttemptFail:         domain.OrderStatusShipping,
	StatusAvailableForPickup:  domain.OrderStatusShipping,
	StatusAtPickup:            domain.OrderStatusPreparing,
	StatusInformationReceived: domain.OrderStatusPreparing,
	StatusUnknown:             domain.OrderStatusPreparing,
	StatusNotFound:            domain.OrderStatusPreparing,
}

// MapStatus translates a carrier status code into an order status. Both the
// synchronous query path and the webhook path go through this table, so the
// two can never drift apart. Unrecognized codes fall back to PREPARING, the
// safe default for a package we know nothing about.
func MapStatus(code string) domain.OrderStatus {
	if status, ok := statusTable[code]; ok {
		return status
	}
	return domain.OrderStatusPreparing
}
