// Package publisher streams order lifecycle events to Kafka for downstream
// consumers (notifications, reporting). Publishing is strictly best-effort:
// a broker outage must never fail a checkout or a shipment update.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/segmentio/kafka-go"
)

const topic = "order-events"

type OrderEvent struct {
	EventType   string             `json:"event_type"`
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	UserID      string             `json:"user_id"`
	Status      domain.OrderStatus `json:"status"`
	TotalAmount int64              `json:"total_amount"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID), // orders events keep per-order ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }
