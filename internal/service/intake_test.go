package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/chanjin5212/myfarm-sub001/internal/storeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIntakeFixture() (*OrderIntakeService, *mockRepo, *mockLedger, *mockPublisher) {
	repo := newMockRepo()
	ledger := newMockLedger()
	events := &mockPublisher{}
	svc := NewOrderIntakeService(repo, ledger, events, zap.NewNop())
	return svc, repo, ledger, events
}

func seedCatalog(repo *mockRepo, ledger *mockLedger) {
	repo.products[1] = &domain.Product{ID: 1, Name: "Hallabong 3kg", Price: 25000}
	repo.products[2] = &domain.Product{ID: 2, Name: "Sweet Potato 5kg", Price: 18000}
	repo.variants[10] = &domain.ProductVariant{ID: 10, ProductID: 1, Name: "Gift Box", Surcharge: 3000}
	ledger.stock[1] = 10
	ledger.stock[2] = 10
}

func validInput(lines ...OrderLineRequest) CreateOrderInput {
	return CreateOrderInput{
		UserID: "user-1",
		Lines:  lines,
		Shipping: domain.ShippingSnapshot{
			RecipientName: "Kim Jiho",
			Phone:         "010-1234-5678",
			Address:       "12 Orchard Road, Jeju",
		},
		PaymentMethod: "CARD",
	}
}

func TestCreateOrder_Success(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)

	variantID := int64(10)
	order, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 1, VariantID: &variantID, Quantity: 2},
		OrderLineRequest{ProductID: 2, Quantity: 1},
	))

	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	// (25000+3000)*2 + 18000
	assert.Equal(t, int64(74000), order.TotalAmount)
	assert.Equal(t, "Hallabong 3kg", order.Lines[0].ProductName)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))

	assert.Equal(t, 8, ledger.available(1))
	assert.Equal(t, 9, ledger.available(2))

	stored, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)
}

func TestCreateOrder_EmptyLines(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)

	_, err := svc.CreateOrder(context.Background(), validInput())

	assert.ErrorIs(t, err, storeerr.ErrValidation)
}

func TestCreateOrder_MissingShippingAddress(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)

	input := validInput(OrderLineRequest{ProductID: 1, Quantity: 1})
	input.Shipping.Address = "  "

	_, err := svc.CreateOrder(context.Background(), input)

	assert.ErrorIs(t, err, storeerr.ErrValidation)
	assert.Empty(t, repo.orders)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)

	_, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 999, Quantity: 1},
	))

	assert.ErrorIs(t, err, storeerr.ErrValidation)
	// rejected before any row or counter moved
	assert.Empty(t, repo.orders)
	assert.Equal(t, 0, ledger.decrements)
}

func TestCreateOrder_UnknownVariant(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)

	wrong := int64(77)
	_, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 1, VariantID: &wrong, Quantity: 1},
	))

	assert.ErrorIs(t, err, storeerr.ErrValidation)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)
	ledger.stock[2] = 1

	_, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 2, Quantity: 3},
	))

	assert.ErrorIs(t, err, storeerr.ErrConflict)
	assert.Empty(t, repo.orders, "order row must be compensated away")
	assert.Equal(t, 1, ledger.available(2), "stock untouched")
}

func TestCreateOrder_RollbackRestoresEarlierLines(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)
	ledger.stock[2] = 0 // second line fails after the first decremented

	_, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 1, Quantity: 4},
		OrderLineRequest{ProductID: 2, Quantity: 1},
	))

	assert.ErrorIs(t, err, storeerr.ErrConflict)
	assert.Empty(t, repo.orders)
	assert.Equal(t, 10, ledger.available(1), "first line's units restocked")
	assert.Len(t, repo.deletedOrders, 1)
}

func TestCreateOrder_PersistenceFailureDuringDecrement(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)
	ledger.failDecrementAt = 1
	ledger.failErr = errors.New("connection reset")

	_, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 1, Quantity: 1},
	))

	assert.ErrorIs(t, err, storeerr.ErrPersistence)
	assert.Empty(t, repo.orders)
}

func TestCreateOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)
	ledger.stock[1] = 5

	const shoppers = 10
	var wg sync.WaitGroup
	successes := make(chan struct{}, shoppers)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			input := validInput(OrderLineRequest{ProductID: 1, Quantity: 1})
			if _, err := svc.CreateOrder(context.Background(), input); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	assert.Len(t, successes, 5, "exactly the available units get sold")
	assert.Equal(t, 0, ledger.available(1))
	assert.Len(t, repo.orders, 5)
}

func TestCancelOrder_RestocksAndPublishes(t *testing.T) {
	svc, repo, ledger, events := newIntakeFixture()
	seedCatalog(repo, ledger)

	order, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 1, Quantity: 2},
	))
	require.NoError(t, err)
	require.Equal(t, 8, ledger.available(1))

	err = svc.CancelOrder(context.Background(), "user-1", order.ID)

	require.NoError(t, err)
	stored, _ := repo.GetOrder(context.Background(), order.ID)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
	assert.Equal(t, 10, ledger.available(1))

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, "order.cancelled", published[0].EventType)
}

func TestCancelOrder_ShippingOrderRejected(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)

	order, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)
	repo.orders[order.ID].Status = domain.OrderStatusShipping

	err = svc.CancelOrder(context.Background(), "user-1", order.ID)

	assert.ErrorIs(t, err, storeerr.ErrConflict)
}

func TestCancelOrder_WrongUser(t *testing.T) {
	svc, repo, ledger, _ := newIntakeFixture()
	seedCatalog(repo, ledger)

	order, err := svc.CreateOrder(context.Background(), validInput(
		OrderLineRequest{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)

	err = svc.CancelOrder(context.Background(), "someone-else", order.ID)

	assert.ErrorIs(t, err, storeerr.ErrNotFound)
}
