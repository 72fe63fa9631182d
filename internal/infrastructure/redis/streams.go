package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RefundStream carries refund lifecycle events published from the outbox.
	RefundStream = "refunds:events"
	// DLQStream receives events whose publication exhausted retries.
	DLQStream = "refunds:dlq"
)

// StreamProducer publishes refund events to Redis Streams. Payloads are
// JSON-encoded into a single field so consumers in other services don't
// depend on this service's field layout.
type StreamProducer struct {
	client *redis.Client
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client}
}

func (p *StreamProducer) PublishRefundEvent(ctx context.Context, refundID, eventType string, data map[string]any) error {
	return p.add(ctx, RefundStream, map[string]any{
		"refund_id":  refundID,
		"event_type": eventType,
	}, data)
}

func (p *StreamProducer) PublishToDLQ(ctx context.Context, refundID, reason string, originalData map[string]any) error {
	return p.add(ctx, DLQStream, map[string]any{
		"refund_id": refundID,
		"reason":    reason,
	}, originalData)
}

func (p *StreamProducer) add(ctx context.Context, stream string, fields map[string]any, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	fields["payload"] = string(payload)
	fields["timestamp"] = time.Now().Unix()

	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fields}).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

// StreamConsumer reads a stream through a consumer group. The worker uses
// it to watch the DLQ; downstream services consume the event stream with
// their own groups.
type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(client *redis.Client, stream, group, consumer string, batchSize int64, blockDuration time.Duration) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

// CreateGroup registers the consumer group, creating the stream when it
// does not exist yet. Re-registering an existing group is not an error.
func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Read blocks up to the configured duration for new messages. No messages
// within the window returns (nil, nil).
func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XStream, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", c.stream, err)
	}
	return streams, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("ack message %s: %w", messageID, err)
	}
	return nil
}
