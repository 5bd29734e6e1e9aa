package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// HandlerFunc processes one decoded mutation event; returning an error leaves
// the message unmarked so it is redelivered
type HandlerFunc func(ctx context.Context, event MutationEvent) error

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler HandlerFunc
	Logger  *slog.Logger
}

// Consumer follows the mutation event topic with a consumer group
type Consumer struct {
	group   sarama.ConsumerGroup
	handler HandlerFunc
	topic   string
	groupID string
	logger  *slog.Logger
	ready   chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("consumer handler is required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		logger:  logger,
		ready:   make(chan bool),
	}, nil
}

// Start begins consuming and returns once the first session is set up
func (c *Consumer) Start(ctx context.Context) error {
	handler := &groupHandler{consumer: c, ready: c.ready}

	go func() {
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("kafka consume failed", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.logger.Info("kafka consumer started", "group", c.groupID, "topic", c.topic)

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the consumer
func (c *Consumer) Close() error {
	return c.group.Close()
}

// handleMessage decodes a record and reports whether it should be marked
func (c *Consumer) handleMessage(ctx context.Context, value []byte) bool {
	var event MutationEvent
	if err := json.Unmarshal(value, &event); err != nil {
		c.logger.Warn("skipping undecodable event", "error", err)
		return true
	}
	if event.ID == "" || event.Kind == "" {
		c.logger.Warn("skipping incomplete event", "slug", event.Slug)
		return true
	}
	if err := c.handler(ctx, event); err != nil {
		c.logger.Error("event handler failed", "id", event.ID, "error", err)
		return false
	}
	return true
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	consumer *Consumer
	ready    chan bool
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			if h.consumer.handleMessage(session.Context(), message.Value) {
				session.MarkMessage(message, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}
