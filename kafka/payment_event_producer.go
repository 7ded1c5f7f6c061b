package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scotthooker/commerce-stripe/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentEventProducer publishes payment lifecycle events keyed by order id,
// so all events of one order land on the same partition in order.
type PaymentEventProducer struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

func NewPaymentEventProducer(brokers []string, topic string, logger *zap.Logger) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return NewPaymentEventProducerWithWriter(w, topic, logger)
}

func NewPaymentEventProducerWithWriter(w MessageWriter, topic string, logger *zap.Logger) *PaymentEventProducer {
	return &PaymentEventProducer{writer: w, topic: topic, logger: logger}
}

// Publish implements services.EventPublisher.
func (p *PaymentEventProducer) Publish(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event to %s: %w", event.Type, p.topic, err)
	}

	p.logger.Debug("Payment event sent",
		zap.String("type", event.Type),
		zap.String("payment_id", event.PaymentID),
	)
	return nil
}

func (p *PaymentEventProducer) Close() error {
	return p.writer.Close()
}
