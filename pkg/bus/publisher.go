package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Publisher emits outbound events. Events are fire-and-forget: a publish
// failure is reported to the caller but there is no delivery guarantee
// beyond the transport's own.
type Publisher struct {
	client *Client
	logger *zap.Logger
}

// NewPublisher creates an event publisher.
func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// PublishEvent serializes the payload and publishes it on the event's
// channel.
func (p *Publisher) PublishEvent(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	if err := p.client.rdb.Publish(ctx, eventChannelPrefix+event, body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event, err)
	}

	p.logger.Debug("Published event", zap.String("event", event))
	return nil
}
