package service

import (
	"context"
	"sync"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/carrier"
	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/chanjin5212/myfarm-sub001/internal/gateway"
	"github.com/chanjin5212/myfarm-sub001/internal/publisher"
	"github.com/chanjin5212/myfarm-sub001/internal/repository"
	"github.com/google/uuid"
)

// mockRepo is an in-memory repository.OrderRepository for testing
type mockRepo struct {
	mu sync.Mutex

	orders    map[uuid.UUID]*domain.Order
	payments  map[uuid.UUID]*domain.PaymentRecord
	shipments map[uuid.UUID]*domain.Shipment // by order id

	products map[int64]*domain.Product
	variants map[int64]*domain.ProductVariant

	createOrderErr   error
	createPaymentErr error
	upsertErr        error
	deleteShipErr    error

	// updateStatusFailures fails the first N UpdateOrderStatus calls; a
	// negative value fails every call.
	updateStatusFailures int
	updateStatusErr      error

	statusUpdates []domain.OrderStatus
	deletedOrders []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		orders:    make(map[uuid.UUID]*domain.Order),
		payments:  make(map[uuid.UUID]*domain.PaymentRecord),
		shipments: make(map[uuid.UUID]*domain.Shipment),
		products:  make(map[int64]*domain.Product),
		variants:  make(map[int64]*domain.ProductVariant),
	}
}

func (m *mockRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createOrderErr != nil {
		return m.createOrderErr
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteOrder(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	m.deletedOrders = append(m.deletedOrders, id)
	return nil
}

func (m *mockRepo) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *mockRepo) GetOrderForUser(_ context.Context, id uuid.UUID, userID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *mockRepo) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateOrderStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateStatusFailures != 0 {
		if m.updateStatusFailures > 0 {
			m.updateStatusFailures--
		}
		return m.updateStatusErr
	}
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockRepo) CreatePayment(_ context.Context, record *domain.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createPaymentErr != nil {
		return m.createPaymentErr
	}
	cp := *record
	m.payments[record.OrderID] = &cp
	return nil
}

func (m *mockRepo) GetPaymentByOrder(_ context.Context, orderID uuid.UUID) (*domain.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.payments[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *record
	return &cp, nil
}

func (m *mockRepo) GetShipmentByOrder(_ context.Context, orderID uuid.UUID) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shipment, ok := m.shipments[orderID]
	if !ok {
		return nil, repository.ErrShipmentNotFound
	}
	cp := *shipment
	return &cp, nil
}

func (m *mockRepo) GetShipmentByTracking(_ context.Context, carrierID, trackingNumber string) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, shipment := range m.shipments {
		if shipment.CarrierID == carrierID && shipment.TrackingNumber == trackingNumber {
			cp := *shipment
			return &cp, nil
		}
	}
	return nil, repository.ErrShipmentNotFound
}

func (m *mockRepo) UpsertShipment(_ context.Context, shipment *domain.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *shipment
	m.shipments[shipment.OrderID] = &cp
	return nil
}

func (m *mockRepo) DeleteShipment(_ context.Context, shipmentID, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteShipErr != nil {
		return m.deleteShipErr
	}
	shipment, ok := m.shipments[orderID]
	if !ok || shipment.ID != shipmentID {
		return repository.ErrShipmentNotFound
	}
	delete(m.shipments, orderID)
	return nil
}

func (m *mockRepo) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockRepo) GetVariant(_ context.Context, variantID, productID int64) (*domain.ProductVariant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	variant, ok := m.variants[variantID]
	if !ok || variant.ProductID != productID {
		return nil, repository.ErrVariantNotFound
	}
	return variant, nil
}

func (m *mockRepo) RunMigrations(*repository.Credentials) error { return nil }
func (m *mockRepo) Close() error                                { return nil }

// mockLedger implements repository.InventoryLedger with a real counter so
// concurrent decrements behave like the guarded UPDATE does.
type mockLedger struct {
	mu    sync.Mutex
	stock map[int64]int // keyed by product id; variants share the pool here

	// failDecrementAt fails the nth Decrement call (1-based) with failErr.
	failDecrementAt int
	failErr         error
	decrements      int
	increments      []int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{stock: make(map[int64]int)}
}

func (m *mockLedger) Decrement(_ context.Context, productID int64, _ *int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrements++
	if m.failDecrementAt != 0 && m.decrements == m.failDecrementAt {
		return m.failErr
	}
	if m.stock[productID] < qty {
		return repository.ErrInsufficientStock
	}
	m.stock[productID] -= qty
	return nil
}

func (m *mockLedger) Increment(_ context.Context, productID int64, _ *int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] += qty
	m.increments = append(m.increments, productID)
	return nil
}

func (m *mockLedger) available(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

// mockGateway implements gateway.PaymentClient for testing
type mockGateway struct {
	mu     sync.Mutex
	result *gateway.ConfirmResult
	err    error
	calls  int
}

func (m *mockGateway) Confirm(_ context.Context, _, _ string, _ int64) (*gateway.ConfirmResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCarts implements cart.Store for testing
type mockCarts struct {
	removed   [][]domain.OrderLine
	removeErr error
}

func (m *mockCarts) Get(_ context.Context, _ string) (*domain.Cart, error) { return nil, nil }
func (m *mockCarts) Set(_ context.Context, _ string, _ *domain.Cart) error { return nil }
func (m *mockCarts) Delete(_ context.Context, _ string) error              { return nil }
func (m *mockCarts) RemoveMatching(_ context.Context, _ string, lines []domain.OrderLine) error {
	m.removed = append(m.removed, lines)
	return m.removeErr
}

// mockTracker implements carrier.TrackingClient for testing
type mockTracker struct {
	queryStatus  *carrier.TrackingStatus
	queryErr     error
	webhookErr   error
	webhookCalls int
}

func (m *mockTracker) Query(_ context.Context, _, _ string) (*carrier.TrackingStatus, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryStatus, nil
}

func (m *mockTracker) RegisterWebhook(_ context.Context, _, _, _ string, _ time.Time) error {
	m.webhookCalls++
	return m.webhookErr
}

// mockPublisher implements publisher.EventPublisher for testing
type mockPublisher struct {
	mu     sync.Mutex
	events []publisher.OrderEvent
}

func (m *mockPublisher) Publish(_ context.Context, event publisher.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) published() []publisher.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publisher.OrderEvent(nil), m.events...)
}
