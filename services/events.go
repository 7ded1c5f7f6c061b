package services

import (
	"context"
	"encoding/json"
	"fmt"

	awspkg "github.com/scotthooker/commerce-stripe/aws"
	"github.com/scotthooker/commerce-stripe/models"
)

// EventPublisher delivers payment lifecycle events. Publishing happens after
// the transition is persisted, so a failure here never undoes a payment.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
}

// NoopEventPublisher drops every event.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, models.PaymentEvent) error { return nil }

// SNSEventPublisher publishes events as JSON to a single SNS topic.
type SNSEventPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client awspkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.client.Publish(ctx, p.topicArn, b)
}

// MultiEventPublisher fans an event out to every publisher and returns the
// first error after all of them have been tried.
type MultiEventPublisher []EventPublisher

func (m MultiEventPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
