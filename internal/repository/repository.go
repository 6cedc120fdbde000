package repository

import (
	"context"
	"errors"

	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("product variant not found")
	ErrShipmentNotFound  = errors.New("shipment not found")
	ErrPaymentNotFound   = errors.New("payment record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateOrder    = errors.New("order already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository is the durable store for orders and everything hanging off
// them. There is no cross-entity transaction here on purpose: order intake
// compensates explicitly instead.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	// DeleteOrder is the compensating action for a failed intake. It must
	// succeed silently when the row is already gone.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderForUser(ctx context.Context, id uuid.UUID, userID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error

	CreatePayment(ctx context.Context, record *domain.PaymentRecord) error
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.PaymentRecord, error)

	GetShipmentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Shipment, error)
	// GetShipmentByTracking resolves a carrier push notification back to the
	// shipment it belongs to.
	GetShipmentByTracking(ctx context.Context, carrierID, trackingNumber string) (*domain.Shipment, error)
	UpsertShipment(ctx context.Context, shipment *domain.Shipment) error
	// DeleteShipment is scoped to both ids so a stale shipment id can never
	// remove another order's shipment.
	DeleteShipment(ctx context.Context, shipmentID, orderID uuid.UUID) error

	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	GetVariant(ctx context.Context, variantID, productID int64) (*domain.ProductVariant, error)

	RunMigrations(*Credentials) error
	Close() error
}

// InventoryLedger adjusts stock counters atomically. Callers never
// read-then-write stock; the single UPDATE with its own guard is the only
// thing keeping concurrent checkouts from overselling.
type InventoryLedger interface {
	// Decrement subtracts qty from the available count, failing with
	// ErrInsufficientStock when fewer than qty units remain.
	Decrement(ctx context.Context, productID int64, variantID *int64, qty int) error
	// Increment returns qty units to the available count.
	Increment(ctx context.Context, productID int64, variantID *int64, qty int) error
}
