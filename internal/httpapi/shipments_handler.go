package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ShipmentTracker is the slice of the tracking service the admin and webhook
// handlers use.
type ShipmentTracker interface {
	RegisterShipment(ctx context.Context, orderID uuid.UUID, carrierID, carrierName, trackingNumber string) (*service.ShipmentInfo, error)
	RemoveShipment(ctx context.Context, orderID, shipmentID uuid.UUID) error
	HandleTrackingPush(ctx context.Context, carrierID, trackingNumber, statusCode string) error
}

type ShipmentsHandler struct {
	tracker ShipmentTracker
	timeout time.Duration
}

func NewShipmentsHandler(tracker ShipmentTracker, timeout time.Duration) *ShipmentsHandler {
	return &ShipmentsHandler{tracker: tracker, timeout: timeout}
}

type registerShipmentRequestDTO struct {
	CarrierID      string `json:"carrier_id"`
	CarrierName    string `json:"carrier_name"`
	TrackingNumber string `json:"tracking_number"`
}

type shipmentResponseDTO struct {
	ShipmentID        string `json:"shipment_id"`
	OrderID           string `json:"order_id"`
	CarrierID         string `json:"carrier_id"`
	CarrierName       string `json:"carrier_name"`
	TrackingNumber    string `json:"tracking_number"`
	CarrierStatus     string `json:"carrier_status,omitempty"`
	OrderStatus       string `json:"order_status"`
	TrackingAvailable bool   `json:"tracking_available"`
}

// PUT /api/v1/admin/orders/{orderID}/shipment
func (h *ShipmentsHandler) RegisterShipment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order id", false)
		return
	}

	var req registerShipmentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}

	info, err := h.tracker.RegisterShipment(ctx, orderID, req.CarrierID, req.CarrierName, req.TrackingNumber)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, shipmentResponseDTO{
		ShipmentID:        info.Shipment.ID.String(),
		OrderID:           info.Shipment.OrderID.String(),
		CarrierID:         info.Shipment.CarrierID,
		CarrierName:       info.Shipment.CarrierName,
		TrackingNumber:    info.Shipment.TrackingNumber,
		CarrierStatus:     info.Shipment.LastStatusCode,
		OrderStatus:       string(info.OrderStatus),
		TrackingAvailable: info.TrackingAvailable,
	})
}

// DELETE /api/v1/admin/orders/{orderID}/shipment/{shipmentID}
func (h *ShipmentsHandler) RemoveShipment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order id", false)
		return
	}
	shipmentID, err := uuid.Parse(chi.URLParam(r, "shipmentID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid shipment id", false)
		return
	}

	if err := h.tracker.RemoveShipment(ctx, orderID, shipmentID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type trackingPushDTO struct {
	CarrierID      string `json:"carrier_id"`
	TrackingNumber string `json:"tracking_number"`
	StatusCode     string `json:"status_code"`
}

// POST /api/v1/webhooks/tracking
//
// The carrier retries undelivered pushes, so anything transient must come
// back non-2xx and anything unprocessable must be acknowledged to stop the
// retry loop.
func (h *ShipmentsHandler) TrackingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var push trackingPushDTO
	if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}

	if err := h.tracker.HandleTrackingPush(ctx, push.CarrierID, push.TrackingNumber, push.StatusCode); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
