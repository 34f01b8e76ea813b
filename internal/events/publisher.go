package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing governance events to
// JetStream. A nil Publisher drops everything, so callers don't need to
// guard the no-NATS configuration.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

func (p *Publisher) PublishQuotaExceeded(ctx context.Context, ev QuotaExceededEvent) error {
	return p.publish(ctx, SubjectQuotaExceeded, ev)
}

func (p *Publisher) PublishBonusGranted(ctx context.Context, ev BonusGrantedEvent) error {
	return p.publish(ctx, SubjectBonusGranted, ev)
}

func (p *Publisher) PublishRateLimitTripped(ctx context.Context, ev RateLimitTrippedEvent) error {
	return p.publish(ctx, SubjectRateLimitTripped, ev)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
