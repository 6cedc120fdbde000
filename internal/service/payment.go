package service

import (
	"context"
	"errors"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/cart"
	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/chanjin5212/myfarm-sub001/internal/gateway"
	"github.com/chanjin5212/myfarm-sub001/internal/publisher"
	"github.com/chanjin5212/myfarm-sub001/internal/repository"
	"github.com/chanjin5212/myfarm-sub001/internal/storeerr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	statusUpdateAttempts = 3
	statusUpdateBackoff  = 200 * time.Millisecond
)

// PaymentReconciliationService confirms a charge with the gateway and brings
// the order's financial state in line with it. The gateway is authoritative:
// its failure aborts the whole operation, while persistence failures after a
// successful capture degrade to best-effort with alerting, because at that
// point reporting failure to the shopper would be a lie.
type PaymentReconciliationService struct {
	repo    repository.OrderRepository
	carts   cart.Store
	gateway gateway.PaymentClient
	events  publisher.EventPublisher
	log     *zap.Logger
}

func NewPaymentReconciliationService(
	repo repository.OrderRepository,
	carts cart.Store,
	gw gateway.PaymentClient,
	events publisher.EventPublisher,
	log *zap.Logger,
) *PaymentReconciliationService {
	return &PaymentReconciliationService{
		repo:    repo,
		carts:   carts,
		gateway: gw,
		events:  events,
		log:     log.Named("payment_reconciliation"),
	}
}

// Receipt is what the shopper gets back. Degraded marks the
// "money captured, bookkeeping incomplete" outcome: still a success for the
// caller, but flagged so operations can reconcile by hand.
type Receipt struct {
	OrderID        uuid.UUID
	OrderNumber    string
	TransactionKey string
	Method         string
	GatewayStatus  string
	Amount         int64
	Degraded       bool
	AlertReason    string
}

// ConfirmPayment is safe to retry: once the order is paid, replays return
// the recorded receipt without a second gateway call.
func (s *PaymentReconciliationService) ConfirmPayment(
	ctx context.Context,
	userID string,
	orderID uuid.UUID,
	transactionKey string,
	claimedAmount int64,
) (*Receipt, error) {
	if transactionKey == "" {
		return nil, storeerr.Validationf("transaction key is required")
	}

	order, err := s.repo.GetOrderForUser(ctx, orderID, userID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, storeerr.NotFoundf("order %s", orderID)
	}
	if err != nil {
		return nil, storeerr.Persistence("load order", err)
	}

	if order.Status.AtLeastPaid() {
		return s.replayReceipt(ctx, order)
	}
	if order.Status != domain.OrderStatusPending {
		return nil, storeerr.Conflictf("order in status %s cannot be paid", order.Status)
	}

	// Hard rejection before any money moves: a mismatch means the client
	// state is stale or tampered with.
	if claimedAmount != order.TotalAmount {
		return nil, storeerr.Conflictf("claimed amount %d does not match order total %d", claimedAmount, order.TotalAmount)
	}

	result, err := s.gateway.Confirm(ctx, transactionKey, order.ID.String(), order.TotalAmount)
	if err != nil {
		s.log.Warn("gateway confirm failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
		return nil, storeerr.Externalf("payment confirmation failed: %v", err)
	}

	receipt := &Receipt{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		TransactionKey: result.TransactionKey,
		Method:         result.Method,
		GatewayStatus:  result.GatewayStatus,
		Amount:         result.Amount,
	}

	if result.Amount != 0 && result.Amount != order.TotalAmount {
		// Money moved for a different amount than we booked. Nothing to roll
		// back from here; flag it loudly for manual reconciliation.
		receipt.Degraded = true
		receipt.AlertReason = "gateway-reported amount differs from order total"
		s.log.Error("gateway amount mismatch after capture",
			zap.String("order_id", order.ID.String()),
			zap.Int64("order_total", order.TotalAmount),
			zap.Int64("gateway_amount", result.Amount))
	}

	// Money has moved; the order must not silently stay PENDING. Retry the
	// status update a few times, then alert instead of failing the shopper.
	if err := s.markPaidWithRetry(ctx, order.ID); err != nil {
		receipt.Degraded = true
		receipt.AlertReason = "order status update failed after payment capture"
		s.log.Error("order stuck in PENDING after successful capture, manual reconciliation required",
			zap.String("order_id", order.ID.String()),
			zap.String("transaction_key", result.TransactionKey),
			zap.Error(err))
	}

	record := &domain.PaymentRecord{
		ID:             uuid.New(),
		OrderID:        order.ID,
		TransactionKey: result.TransactionKey,
		Method:         result.Method,
		Amount:         result.Amount,
		GatewayStatus:  result.GatewayStatus,
		RawPayload:     result.RawPayload,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.CreatePayment(ctx, record); err != nil {
		// Audit data, not authoritative state.
		s.log.Error("payment record insert failed",
			zap.String("order_id", order.ID.String()),
			zap.String("transaction_key", result.TransactionKey),
			zap.Error(err))
	}

	s.cleanupCart(ctx, order)
	s.publishEvent(ctx, "order.paid", order, domain.OrderStatusPaid)

	return receipt, nil
}

// replayReceipt serves retried confirmations for orders that are already
// paid, from the stored payment record when one exists.
func (s *PaymentReconciliationService) replayReceipt(ctx context.Context, order *domain.Order) (*Receipt, error) {
	receipt := &Receipt{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
	}
	record, err := s.repo.GetPaymentByOrder(ctx, order.ID)
	if err == nil {
		receipt.TransactionKey = record.TransactionKey
		receipt.Method = record.Method
		receipt.GatewayStatus = record.GatewayStatus
		receipt.Amount = record.Amount
		return receipt, nil
	}
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, storeerr.Persistence("load payment record", err)
	}
	// Paid order without an audit row: the record insert was the degraded
	// path of an earlier call. The replay is still a success.
	receipt.Degraded = true
	receipt.AlertReason = "payment record missing for paid order"
	return receipt, nil
}

func (s *PaymentReconciliationService) markPaidWithRetry(ctx context.Context, orderID uuid.UUID) error {
	var lastErr error
	for attempt := 1; attempt <= statusUpdateAttempts; attempt++ {
		lastErr = s.repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPaid)
		if lastErr == nil {
			return nil
		}
		s.log.Warn("order status update failed",
			zap.String("order_id", orderID.String()),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt < statusUpdateAttempts {
			select {
			case <-time.After(statusUpdateBackoff):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}

// cleanupCart removes the items the shopper just paid for. Only exact
// (product, variant) matches are deleted; everything else stays.
func (s *PaymentReconciliationService) cleanupCart(ctx context.Context, order *domain.Order) {
	if err := s.carts.RemoveMatching(ctx, order.UserID, order.Lines); err != nil {
		s.log.Warn("cart cleanup failed",
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", order.UserID),
			zap.Error(err))
	}
}

func (s *PaymentReconciliationService) publishEvent(ctx context.Context, eventType string, order *domain.Order, status domain.OrderStatus) {
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
