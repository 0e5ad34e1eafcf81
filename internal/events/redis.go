package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wardtrack-server/internal/metrics"
)

const streamField = "event"

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher creates a publisher writing to stream.
func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

// Publish appends ev with XADD.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{streamField: string(payload)},
	}).Err()
	metrics.RecordEvent("redis", err == nil)
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// StreamConsumer reads events from a Redis stream through a consumer group and
// hands them to a Handler. Every message is acknowledged after one attempt.
type StreamConsumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	batch    int64
	block    time.Duration
	handler  Handler
	logger   *zap.Logger
}

// StreamConsumerConfig configures a StreamConsumer. A negative Block makes reads
// return immediately.
type StreamConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Batch    int64
	Block    time.Duration
}

// NewStreamConsumer creates a consumer.
func NewStreamConsumer(client *redis.Client, cfg StreamConsumerConfig, handler Handler, logger *zap.Logger) *StreamConsumer {
	if cfg.Batch <= 0 {
		cfg.Batch = 10
	}
	return &StreamConsumer{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		batch:    cfg.Batch,
		block:    cfg.Block,
		handler:  handler,
		logger:   logger,
	}
}

// EnsureGroup creates the consumer group and the stream if missing.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group, err)
	}
	return nil
}

// ConsumeOnce reads one batch and returns how many messages were processed.
func (c *StreamConsumer) ConsumeOnce(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batch,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("xreadgroup %s: %w", c.stream, err)
	}

	n := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			c.process(ctx, msg)
			if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
				c.logger.Warn("Failed to ack event", zap.String("message_id", msg.ID), zap.Error(err))
			}
			n++
		}
	}
	return n, nil
}

func (c *StreamConsumer) process(ctx context.Context, msg redis.XMessage) {
	raw, ok := msg.Values[streamField].(string)
	if !ok {
		c.logger.Warn("Dropping stream message without event field", zap.String("message_id", msg.ID))
		return
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		c.logger.Warn("Dropping malformed event", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	err := c.handler.Handle(ctx, ev)
	metrics.RecordEvent("redis_consume", err == nil)
	if err != nil {
		c.logger.Warn("Event handler failed",
			zap.String("message_id", msg.ID),
			zap.String("event_id", ev.ID),
			zap.String("table", ev.Table),
			zap.Error(err),
		)
	}
}

// Run consumes until ctx is cancelled.
func (c *StreamConsumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("Event consumer started",
		zap.String("stream", c.stream),
		zap.String("group", c.group),
		zap.String("consumer", c.consumer),
	)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.ConsumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Event consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}
