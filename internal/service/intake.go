package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/chanjin5212/myfarm-sub001/internal/publisher"
	"github.com/chanjin5212/myfarm-sub001/internal/repository"
	"github.com/chanjin5212/myfarm-sub001/internal/storeerr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderIntakeService turns cart selections into a pending order, reserving
// inventory as it goes. Stock is decremented here, at creation time, so two
// shoppers racing for the last unit find out at checkout rather than after
// one of them has paid.
type OrderIntakeService struct {
	repo   repository.OrderRepository
	ledger repository.InventoryLedger
	events publisher.EventPublisher
	log    *zap.Logger
}

func NewOrderIntakeService(
	repo repository.OrderRepository,
	ledger repository.InventoryLedger,
	events publisher.EventPublisher,
	log *zap.Logger,
) *OrderIntakeService {
	return &OrderIntakeService{
		repo:   repo,
		ledger: ledger,
		events: events,
		log:    log.Named("order_intake"),
	}
}

type OrderLineRequest struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

type CreateOrderInput struct {
	UserID        string
	Lines         []OrderLineRequest
	Shipping      domain.ShippingSnapshot
	PaymentMethod string
	// DeclaredTotal is the client-computed total. It is not trusted: the
	// order total is always the sum of server-side prices, and the gateway
	// amount check at payment time is what catches tampering.
	DeclaredTotal int64
}

func (in CreateOrderInput) validate() error {
	if len(in.Lines) == 0 {
		return storeerr.Validationf("order must contain at least one line")
	}
	for i, l := range in.Lines {
		if l.Quantity <= 0 {
			return storeerr.Validationf("line %d: quantity must be greater than zero", i)
		}
	}
	if strings.TrimSpace(in.Shipping.RecipientName) == "" {
		return storeerr.Validationf("recipient name is required")
	}
	if strings.TrimSpace(in.Shipping.Phone) == "" {
		return storeerr.Validationf("recipient phone is required")
	}
	if strings.TrimSpace(in.Shipping.Address) == "" {
		return storeerr.Validationf("shipping address is required")
	}
	return nil
}

// CreateOrder is all-or-nothing: if anything fails after the order row went
// in, the row and every inventory decrement made so far are compensated
// before the error is returned.
func (s *OrderIntakeService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	// Resolve every product before touching anything. A single bad reference
	// rejects the whole request; there are no partial orders.
	lines := make([]domain.OrderLine, 0, len(input.Lines))
	for _, req := range input.Lines {
		line, err := s.resolveLine(ctx, req)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:            uuid.New(),
		OrderNumber:   newOrderNumber(now),
		UserID:        input.UserID,
		Status:        domain.OrderStatusPending,
		Shipping:      input.Shipping,
		PaymentMethod: input.PaymentMethod,
		Lines:         lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.TotalAmount = order.LinesTotal()

	if input.DeclaredTotal != 0 && input.DeclaredTotal != order.TotalAmount {
		s.log.Warn("declared total differs from computed total",
			zap.String("order_id", order.ID.String()),
			zap.Int64("declared", input.DeclaredTotal),
			zap.Int64("computed", order.TotalAmount))
	}

	comp := newCompensator(s.log)

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, storeerr.Persistence("create order", err)
	}
	comp.push("delete order", func(ctx context.Context) error {
		return s.repo.DeleteOrder(ctx, order.ID)
	})

	for _, line := range order.Lines {
		line := line
		if err := s.ledger.Decrement(ctx, line.ProductID, line.VariantID, line.Quantity); err != nil {
			comp.rollback(ctx)
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, storeerr.Conflictf("insufficient stock for product %d", line.ProductID)
			}
			return nil, storeerr.Persistence("decrement inventory", err)
		}
		comp.push("restock "+fmt.Sprint(line.ProductID), func(ctx context.Context) error {
			return s.ledger.Increment(ctx, line.ProductID, line.VariantID, line.Quantity)
		})
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount))
	return order, nil
}

func (s *OrderIntakeService) resolveLine(ctx context.Context, req OrderLineRequest) (*domain.OrderLine, error) {
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, storeerr.Validationf("product %d does not exist", req.ProductID)
	}
	if err != nil {
		return nil, storeerr.Persistence("load product", err)
	}

	line := &domain.OrderLine{
		ProductID:       product.ID,
		ProductName:     product.Name,
		ProductImageURL: product.ImageURL,
		Quantity:        req.Quantity,
		UnitPrice:       product.Price,
	}

	if req.VariantID != nil {
		variant, err := s.repo.GetVariant(ctx, *req.VariantID, req.ProductID)
		if errors.Is(err, repository.ErrVariantNotFound) {
			return nil, storeerr.Validationf("variant %d does not exist for product %d", *req.VariantID, req.ProductID)
		}
		if err != nil {
			return nil, storeerr.Persistence("load product variant", err)
		}
		line.VariantID = &variant.ID
		line.OptionSurcharge = variant.Surcharge
	}
	return line, nil
}

// CancelOrder drives the side branch of the state machine, restoring the
// units the order had reserved. Restock failures are logged and do not
// block the cancellation; the order is already cancelled at that point.
func (s *OrderIntakeService) CancelOrder(ctx context.Context, userID string, orderID uuid.UUID) error {
	order, err := s.repo.GetOrderForUser(ctx, orderID, userID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return storeerr.NotFoundf("order %s", orderID)
	}
	if err != nil {
		return storeerr.Persistence("load order", err)
	}
	if !order.Status.Cancellable() {
		return storeerr.Conflictf("order in status %s cannot be cancelled", order.Status)
	}

	if err := s.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
		return storeerr.Persistence("cancel order", err)
	}

	for _, line := range order.Lines {
		if err := s.ledger.Increment(ctx, line.ProductID, line.VariantID, line.Quantity); err != nil {
			s.log.Error("restock after cancellation failed",
				zap.String("order_id", order.ID.String()),
				zap.Int64("product_id", line.ProductID),
				zap.Error(err))
		}
	}

	s.publishEvent(ctx, "order.cancelled", order, domain.OrderStatusCancelled)
	return nil
}

func (s *OrderIntakeService) publishEvent(ctx context.Context, eventType string, order *domain.Order, status domain.OrderStatus) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := s.events.Publish(pubCtx, publisher.OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      status,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("order event publish failed",
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
