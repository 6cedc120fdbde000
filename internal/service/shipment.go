package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/carrier"
	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/chanjin5212/myfarm-sub001/internal/publisher"
	"github.com/chanjin5212/myfarm-sub001/internal/repository"
	"github.com/chanjin5212/myfarm-sub001/internal/storeerr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// webhookTTL is how long a carrier push registration stays alive. Operators
// re-register by correcting the shipment; tracking keeps working through the
// query path once the window expires.
const webhookTTL = 48 * time.Hour

// ShipmentTrackingService keeps an order's lifecycle in sync with the
// carrier. Both ingestion paths, the synchronous query and the webhook push,
// run the carrier's vocabulary through the same mapping, so interleaved
// updates are idempotent and last-write-wins on the order status is safe.
type ShipmentTrackingService struct {
	repo        repository.OrderRepository
	tracker     carrier.TrackingClient
	events      publisher.EventPublisher
	callbackURL string
	log         *zap.Logger
}

func NewShipmentTrackingService(
	repo repository.OrderRepository,
	tracker carrier.TrackingClient,
	events publisher.EventPublisher,
	callbackURL string,
	log *zap.Logger,
) *ShipmentTrackingService {
	return &ShipmentTrackingService{
		repo:        repo,
		tracker:     tracker,
		events:      events,
		callbackURL: callbackURL,
		log:         log.Named("shipment_tracking"),
	}
}

// ShipmentInfo is the register/lookup result. TrackingAvailable is false
// when the carrier could not be queried; the shipment row still exists and
// tracking recovers on the next query or push.
type ShipmentInfo struct {
	Shipment          domain.Shipment
	OrderStatus       domain.OrderStatus
	TrackingAvailable bool
}

// RegisterShipment attaches carrier info to an order, replacing any previous
// registration in place. It then refreshes the order status from the carrier
// and registers a push webhook; both of those are best-effort.
func (s *ShipmentTrackingService) RegisterShipment(
	ctx context.Context,
	orderID uuid.UUID,
	carrierID, carrierName, trackingNumber string,
) (*ShipmentInfo, error) {
	if strings.TrimSpace(carrierID) == "" {
		return nil, storeerr.Validationf("carrier id is required")
	}
	if strings.TrimSpace(trackingNumber) == "" {
		return nil, storeerr.Validationf("tracking number is required")
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, storeerr.NotFoundf("order %s", orderID)
	}
	if err != nil {
		return nil, storeerr.Persistence("load order", err)
	}
	if !order.Status.AtLeastPaid() {
		return nil, storeerr.Conflictf("order in status %s cannot be shipped", order.Status)
	}
	if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusRefunded {
		return nil, storeerr.Conflictf("order in status %s cannot be shipped", order.Status)
	}

	shipment := &domain.Shipment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		CarrierID:      carrierID,
		CarrierName:    carrierName,
		TrackingNumber: trackingNumber,
	}
	if existing, err := s.repo.GetShipmentByOrder(ctx, order.ID); err == nil {
		shipment.ID = existing.ID // correction replaces in place
	} else if !errors.Is(err, repository.ErrShipmentNotFound) {
		return nil, storeerr.Persistence("load shipment", err)
	}

	if err := s.repo.UpsertShipment(ctx, shipment); err != nil {
		return nil, storeerr.Persistence("save shipment", err)
	}

	info := &ShipmentInfo{
		Shipment:    *shipment,
		OrderStatus: order.Status,
	}

	// Tracking refresh is display data, not a financial operation: a carrier
	// or persistence hiccup here is logged, never escalated to the operator.
	if status, err := s.tracker.Query(ctx, carrierID, trackingNumber); err != nil {
		s.log.Warn("carrier query failed, tracking unavailable for now",
			zap.String("order_id", order.ID.String()),
			zap.String("tracking_number", trackingNumber),
			zap.Error(err))
	} else {
		info.TrackingAvailable = true
		info.OrderStatus = s.applyStatus(ctx, order, shipment, status.StatusCode)
		info.Shipment.LastStatusCode = status.StatusCode
	}

	expiresAt := time.Now().UTC().Add(webhookTTL)
	if err := s.tracker.RegisterWebhook(ctx, carrierID, trackingNumber, s.callbackURL, expiresAt); err != nil {
		s.log.Warn("webhook registration failed, falling back to query-only tracking",
			zap.String("order_id", order.ID.String()),
			zap.String("tracking_number", trackingNumber),
			zap.Error(err))
	}

	return info, nil
}

// RemoveShipment undoes a shipping mistake: the shipment row disappears and
// the order reverts to PAID no matter how far tracking had advanced it.
func (s *ShipmentTrackingService) RemoveShipment(ctx context.Context, orderID, shipmentID uuid.UUID) error {
	err := s.repo.DeleteShipment(ctx, shipmentID, orderID)
	if errors.Is(err, repository.ErrShipmentNotFound) {
		return storeerr.NotFoundf("shipment %s for order %s", shipmentID, orderID)
	}
	if err != nil {
		return storeerr.Persistence("delete shipment", err)
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPaid); err != nil {
		// The shipment is already gone; a stale status is the lesser failure.
		s.log.Error("status revert failed after shipment removal",
			zap.String("order_id", orderID.String()),
			zap.Error(err))
	}
	return nil
}

// HandleTrackingPush is the webhook counterpart of the query refresh. The
// carrier tells us a tracking number changed state; we look up the shipment
// and apply the shared mapping.
func (s *ShipmentTrackingService) HandleTrackingPush(ctx context.Context, carrierID, trackingNumber, statusCode string) error {
	if strings.TrimSpace(trackingNumber) == "" {
		return storeerr.Validationf("tracking number is required")
	}

	shipment, err := s.repo.GetShipmentByTracking(ctx, carrierID, trackingNumber)
	if errors.Is(err, repository.ErrShipmentNotFound) {
		// Push for a shipment we no longer know about, e.g. removed after a
		// mistake. Acknowledge and drop it.
		s.log.Info("tracking push for unknown shipment ignored",
			zap.String("carrier_id", carrierID),
			zap.String("tracking_number", trackingNumber))
		return nil
	}
	if err != nil {
		return storeerr.Persistence("load shipment", err)
	}

	order, err := s.repo.GetOrder(ctx, shipment.OrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil
	}
	if err != nil {
		return storeerr.Persistence("load order", err)
	}

	s.applyStatus(ctx, order, shipment, statusCode)
	return nil
}

// applyStatus records the carrier's raw code on the shipment and moves the
// order to the mapped status. Failures are logged only: both ingestion paths
// will apply the same mapping again on the next event.
func (s *ShipmentTrackingService) applyStatus(
	ctx context.Context,
	order *domain.Order,
	shipment *domain.Shipment,
	statusCode string,
) domain.OrderStatus {
	mapped := carrier.MapStatus(statusCode)

	shipment.LastStatusCode = statusCode
	if err := s.repo.UpsertShipment(ctx, shipment); err != nil {
		s.log.Warn("recording carrier status failed",
			zap.String("order_id", order.ID.String()),
			zap.String("status_code", statusCode),
			zap.Error(err))
	}

	if order.Status == mapped {
		return mapped
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, mapped); err != nil {
		s.log.Warn("order status refresh failed",
			zap.String("order_id", order.ID.String()),
			zap.String("status_code", statusCode),
			zap.String("mapped_status", string(mapped)),
			zap.Error(err))
		return order.Status
	}

	s.log.Info("order status advanced from tracking",
		zap.String("order_id", order.ID.String()),
		zap.String("carrier_status", statusCode),
		zap.String("order_status", string(mapped)))
	s.publishEvent(ctx, "order.tracking_updated", order, mapped)
	return mapped
}

func (s *ShipmentTrackingService) publishEvent(ctx context.Context, eventType string, order *domain.Order, status domain.OrderStatus) {
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
