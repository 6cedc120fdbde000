package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/auth"
	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/chanjin5212/myfarm-sub001/internal/repository"
	"github.com/chanjin5212/myfarm-sub001/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderIntake is the slice of the intake service the handlers use.
type OrderIntake interface {
	CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID string, orderID uuid.UUID) error
}

// PaymentReconciler confirms charges for orders.
type PaymentReconciler interface {
	ConfirmPayment(ctx context.Context, userID string, orderID uuid.UUID, transactionKey string, claimedAmount int64) (*service.Receipt, error)
}

// OrderQueries is the read side, served straight from the repository.
type OrderQueries interface {
	GetOrderForUser(ctx context.Context, id uuid.UUID, userID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	intake   OrderIntake
	payments PaymentReconciler
	queries  OrderQueries
	timeout  time.Duration
}

func NewOrdersHandler(intake OrderIntake, payments PaymentReconciler, queries OrderQueries, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		intake:   intake,
		payments: payments,
		queries:  queries,
		timeout:  timeout,
	}
}

type orderLineDTO struct {
	ProductID       int64  `json:"product_id"`
	VariantID       *int64 `json:"variant_id,omitempty"`
	ProductName     string `json:"product_name,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price,omitempty"`
	OptionSurcharge int64  `json:"option_surcharge,omitempty"`
}

type createOrderRequestDTO struct {
	Lines         []orderLineDTO          `json:"lines"`
	Shipping      domain.ShippingSnapshot `json:"shipping"`
	PaymentMethod string                  `json:"payment_method"`
	DeclaredTotal int64                   `json:"declared_total"`
}

type orderResponseDTO struct {
	OrderID     string                  `json:"order_id"`
	OrderNumber string                  `json:"order_number"`
	Status      string                  `json:"status"`
	TotalAmount int64                   `json:"total_amount"`
	Shipping    domain.ShippingSnapshot `json:"shipping"`
	Lines       []orderLineDTO          `json:"lines"`
	CreatedAt   time.Time               `json:"created_at"`
}

func toOrderResponse(order *domain.Order) orderResponseDTO {
	lines := make([]orderLineDTO, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = orderLineDTO{
			ProductID:       l.ProductID,
			VariantID:       l.VariantID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			OptionSurcharge: l.OptionSurcharge,
		}
	}
	return orderResponseDTO{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		Shipping:    order.Shipping,
		Lines:       lines,
		CreatedAt:   order.CreatedAt,
	}
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing identity", false)
		return
	}

	var req createOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}

	lines := make([]service.OrderLineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.OrderLineRequest{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
		}
	}

	order, err := h.intake.CreateOrder(ctx, service.CreateOrderInput{
		UserID:        identity.UserID,
		Lines:         lines,
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
		DeclaredTotal: req.DeclaredTotal,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GET /api/v1/orders/{orderID}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing identity", false)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order id", false)
		return
	}

	order, err := h.queries.GetOrderForUser(ctx, orderID, identity.UserID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "order not found", false)
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing identity", false)
		return
	}

	orders, err := h.queries.ListOrdersByUser(ctx, identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]orderResponseDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": out})
}

type confirmPaymentRequestDTO struct {
	TransactionKey string `json:"transaction_key"`
	Amount         int64  `json:"amount"`
}

type receiptResponseDTO struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	TransactionKey string `json:"transaction_key"`
	Method         string `json:"method"`
	GatewayStatus  string `json:"gateway_status"`
	Amount         int64  `json:"amount"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// POST /api/v1/orders/{orderID}/payment
func (h *OrdersHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing identity", false)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order id", false)
		return
	}

	var req confirmPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}

	receipt, err := h.payments.ConfirmPayment(ctx, identity.UserID, orderID, req.TransactionKey, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, receiptResponseDTO{
		OrderID:        receipt.OrderID.String(),
		OrderNumber:    receipt.OrderNumber,
		TransactionKey: receipt.TransactionKey,
		Method:         receipt.Method,
		GatewayStatus:  receipt.GatewayStatus,
		Amount:         receipt.Amount,
		Degraded:       receipt.Degraded,
	})
}

// POST /api/v1/orders/{orderID}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing identity", false)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order id", false)
		return
	}

	if err := h.intake.CancelOrder(ctx, identity.UserID, orderID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(domain.OrderStatusCancelled)})
}
