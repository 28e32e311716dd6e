package bus

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const eventChannelPrefix = "rosterd:evt:"

// HandlerFunc processes one event payload. Returning an error marks the
// event as failed for logging; it never stops the consumer.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Consumer subscribes to lifecycle event channels and dispatches each
// message to its registered handler. Delivery is at-least-once and
// possibly out of order; handlers are responsible for version gating and
// idempotency. One event's failure never blocks subsequent events.
type Consumer struct {
	client   *Client
	logger   *zap.Logger
	handlers map[string]HandlerFunc
}

// NewConsumer creates an event consumer.
func NewConsumer(client *Client, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:   client,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers a handler for an event name. Registration must happen
// before Run.
func (c *Consumer) Handle(event string, handler HandlerFunc) {
	c.handlers[event] = handler
}

// Run subscribes to every registered event channel and processes messages
// until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no event handlers registered")
	}

	channels := make([]string, 0, len(c.handlers))
	for event := range c.handlers {
		channels = append(channels, eventChannelPrefix+event)
	}

	sub := c.client.rdb.Subscribe(ctx, channels...)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event channels: %w", err)
	}

	c.logger.Info("Event consumer started", zap.Int("channels", len(channels)))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Event consumer stopping")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.dispatch(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// dispatch routes one message to its handler. Handler errors are logged
// and swallowed so an unrelated bad event cannot stall the stream; the
// transport's own redelivery handles transient failures.
func (c *Consumer) dispatch(ctx context.Context, channel string, payload []byte) {
	event := channel
	if len(channel) > len(eventChannelPrefix) && channel[:len(eventChannelPrefix)] == eventChannelPrefix {
		event = channel[len(eventChannelPrefix):]
	}

	handler, ok := c.handlers[event]
	if !ok {
		c.logger.Warn("No handler for event", zap.String("event", event))
		return
	}

	if err := handler(ctx, payload); err != nil {
		c.logger.Error("Event processing failed",
			zap.String("event", event),
			zap.Error(err))
	}
}
