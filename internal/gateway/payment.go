// Package gateway talks to the external payment provider. The provider is
// the authority on whether money moved: callers never retry a failed
// confirmation.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrUnavailable marks a transport-level failure or timeout before the
	// gateway produced an answer.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrDeclined marks an authoritative rejection from the gateway.
	ErrDeclined = errors.New("payment declined by gateway")
)

const defaultTimeout = 10 * time.Second

type PaymentClient interface {
	Confirm(ctx context.Context, transactionKey, orderID string, amount int64) (*ConfirmResult, error)
}

// ConfirmResult carries the fields reconciliation needs plus the raw body
// for the audit record.
type ConfirmResult struct {
	TransactionKey string
	Method         string
	GatewayStatus  string
	Amount         int64
	ApprovedAt     time.Time
	RawPayload     []byte
}

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type confirmRequest struct {
	TransactionKey string `json:"paymentKey"`
	OrderID        string `json:"orderId"`
	Amount         int64  `json:"amount"`
}

type confirmResponse struct {
	TransactionKey string    `json:"paymentKey"`
	Method         string    `json:"method"`
	Status         string    `json:"status"`
	TotalAmount    int64     `json:"totalAmount"`
	ApprovedAt     time.Time `json:"approvedAt"`
	Code           string    `json:"code"`
	Message        string    `json:"message"`
}

func (c *Client) Confirm(ctx context.Context, transactionKey, orderID string, amount int64) (*ConfirmResult, error) {
	body, err := json.Marshal(confirmRequest{
		TransactionKey: transactionKey,
		OrderID:        orderID,
		Amount:         amount,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments/confirm", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	var out confirmResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %s (http %d)", ErrDeclined, out.Code, out.Message, resp.StatusCode)
	}

	return &ConfirmResult{
		TransactionKey: out.TransactionKey,
		Method:         out.Method,
		GatewayStatus:  out.Status,
		Amount:         out.TotalAmount,
		ApprovedAt:     out.ApprovedAt,
		RawPayload:     raw,
	}, nil
}
