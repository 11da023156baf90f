package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer reads ticket events off a topic as part of a consumer group.
type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume decodes ticket events and hands them to handler until ctx is
// canceled or the reader fails. Undecodable messages are skipped and handler
// errors are logged without stopping the loop: notification delivery is
// best-effort and one bad event must not stall the group.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, TicketEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		var event TicketEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("skipping undecodable event",
				zap.String("topic", msg.Topic), zap.Error(err))
			continue
		}

		if err := handler(ctx, event); err != nil {
			c.logger.Warn("event handler failed",
				zap.String("reference", event.Reference), zap.String("type", event.Type), zap.Error(err))
		}
	}
}
