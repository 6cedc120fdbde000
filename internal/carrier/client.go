// Package carrier wraps the external shipment-tracking provider. Tracking is
// display data, never financial truth, so every failure here is survivable:
// the client downgrades "not registered yet" responses to a NOT_FOUND status
// and a circuit breaker keeps a flapping provider from tying up request
// workers.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrQueryFailed = errors.New("carrier tracking query failed")

const defaultTimeout = 8 * time.Second

type TrackingClient interface {
	Query(ctx context.Context, carrierID, trackingNumber string) (*TrackingStatus, error)
	RegisterWebhook(ctx context.Context, carrierID, trackingNumber, callbackURL string, expiresAt time.Time) error
}

type TrackingStatus struct {
	StatusCode    string
	StatusName    string
	LastEventTime time.Time
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*TrackingStatus]
}

func NewClient(baseURL, apiKey string) *Client {
	breaker := gobreaker.NewCircuitBreaker[*TrackingStatus](gobreaker.Settings{
		Name:        "carrier-tracking",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

type queryResponse struct {
	StatusCode    string    `json:"status_code"`
	StatusName    string    `json:"status_name"`
	LastEventTime time.Time `json:"last_event_time"`
	Code          string    `json:"code"`
	Message       string    `json:"message"`
}

// transientNotFoundMarkers are the provider's ways of saying "this tracking
// number exists but has no scan events yet". Fresh shipments sit in that
// state for hours; it is a normal answer, not an error.
var transientNotFoundMarkers = []string{
	"NOT_FOUND",
	"no tracking info",
	"not yet registered",
	"상품준비중", // provider passes some carrier messages through untranslated
}

func (c *Client) Query(ctx context.Context, carrierID, trackingNumber string) (*TrackingStatus, error) {
	return c.breaker.Execute(func() (*TrackingStatus, error) {
		return c.query(ctx, carrierID, trackingNumber)
	})
}

func (c *Client) query(ctx context.Context, carrierID, trackingNumber string) (*TrackingStatus, error) {
	endpoint := fmt.Sprintf("%s/carriers/%s/tracks/%s",
		c.baseURL, url.PathEscape(carrierID), url.PathEscape(trackingNumber))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build tracking request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrQueryFailed, err)
	}

	var out queryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrQueryFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		if isTransientNotFound(out.Code, out.Message) {
			return &TrackingStatus{StatusCode: StatusNotFound, StatusName: "not found"}, nil
		}
		return nil, fmt.Errorf("%w: %s %s (http %d)", ErrQueryFailed, out.Code, out.Message, resp.StatusCode)
	}

	return &TrackingStatus{
		StatusCode:    out.StatusCode,
		StatusName:    out.StatusName,
		LastEventTime: out.LastEventTime,
	}, nil
}

func isTransientNotFound(code, message string) bool {
	for _, marker := range transientNotFoundMarkers {
		if strings.EqualFold(code, marker) || strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

type webhookRequest struct {
	CarrierID      string    `json:"carrier_id"`
	TrackingNumber string    `json:"tracking_number"`
	CallbackURL    string    `json:"callback_url"`
	ExpirationTime time.Time `json:"expiration_time"`
}

func (c *Client) RegisterWebhook(ctx context.Context, carrierID, trackingNumber, callbackURL string, expiresAt time.Time) error {
	body, err := json.Marshal(webhookRequest{
		CarrierID:      carrierID,
		TrackingNumber: trackingNumber,
		CallbackURL:    callbackURL,
		ExpirationTime: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhooks", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("register webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
