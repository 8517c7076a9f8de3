package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

const (
	handleAttempts = 3
	retryPause     = 200 * time.Millisecond
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type MessageHandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

func (f MessageHandlerFunc) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return f(ctx, msg)
}

// Consumer feeds a consumer group's messages to one handler. A message is
// retried a few times and then committed anyway, so one bad record cannot
// stall its partition.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("kafka: consumer handler is required")
	}
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Version = sarama.V2_5_0_0
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
		cfg.Consumer.Return.Errors = true
	}
	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: group, handler: handler, logger: logger.With("group", groupID)}, nil
}

// Run consumes topics until ctx is cancelled, rejoining the group after
// every rebalance.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	go c.drainErrors(ctx)
	session := groupSession{handler: c.handler, logger: c.logger}
	for {
		err := c.group.Consume(ctx, topics, session)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case err != nil:
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) drainErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.WarnContext(ctx, "kafka consumer group error", "err", err)
		}
	}
}

type groupSession struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (groupSession) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (groupSession) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g groupSession) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := deliver(ctx, g.handler, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				g.logger.ErrorContext(ctx, "kafka message dropped",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

// deliver calls h up to handleAttempts times, pausing between attempts.
func deliver(ctx context.Context, h MessageHandler, msg *sarama.ConsumerMessage) error {
	var err error
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		if err = h.Handle(ctx, msg); err == nil {
			return nil
		}
		if attempt == handleAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryPause * time.Duration(attempt)):
		}
	}
	return err
}
