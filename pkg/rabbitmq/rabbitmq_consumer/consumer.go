package rabbitmq_consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"property-catalog/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler processes one delivery. A nil error acks the message; any
// error rejects it without requeue.
type MessageHandler func(ctx context.Context, d amqp.Delivery) error

// ConsumerConfig describes the queue a Consumer reads and how it is bound.
type ConsumerConfig struct {
	rabbitmq_common.Config
	// QueueName may be empty; the broker then generates one.
	QueueName       string
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table

	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	RoutingKeysForBind     []string

	PrefetchCount int // 0 means unlimited
	ConsumerTag   string

	Logger rabbitmq_common.Logger
}

func (c ConsumerConfig) validate() error {
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("consumer: invalid base config: %w", err)
	}
	if c.DeclareExchangeForBind && (c.ExchangeNameForBind == "" || c.ExchangeTypeForBind == "") {
		return errors.New("consumer: exchange name and type are required when declaring an exchange for binding")
	}
	if c.QueueName == "" && !c.ExclusiveQueue {
		return errors.New("consumer: a server-named queue must be exclusive")
	}
	return nil
}

// Consumer declares its queue on start and dispatches deliveries to a handler
// one at a time.
type Consumer struct {
	config  ConsumerConfig
	channel *amqp.Channel
	queue   string
	wg      sync.WaitGroup

	Logger rabbitmq_common.Logger
}

func NewConsumer(cfg ConsumerConfig, connManager *rabbitmq_common.ConnectionManager) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	_, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to get channel from manager: %w", err)
	}
	c := &Consumer{config: cfg, channel: ch, Logger: logger}
	if err := c.setup(); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) setup() error {
	if c.config.PrefetchCount > 0 {
		if err := c.channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	if c.config.DeclareExchangeForBind {
		c.Logger.Debug("Declaring exchange",
			"name", c.config.ExchangeNameForBind,
			"type", c.config.ExchangeTypeForBind,
		)
		err := c.channel.ExchangeDeclare(
			c.config.ExchangeNameForBind,
			c.config.ExchangeTypeForBind,
			c.config.DurableExchangeForBind,
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s' for binding: %w", c.config.ExchangeNameForBind, err)
		}
	}

	q, err := c.channel.QueueDeclare(
		c.config.QueueName,
		c.config.DurableQueue,
		c.config.AutoDeleteQueue,
		c.config.ExclusiveQueue,
		false, // no-wait
		c.config.QueueArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", c.config.QueueName, err)
	}
	c.queue = q.Name

	if c.config.ExchangeNameForBind != "" {
		keys := c.config.RoutingKeysForBind
		if len(keys) == 0 {
			keys = []string{""}
		}
		for _, key := range keys {
			c.Logger.Debug("Binding queue to exchange",
				"queue_name", c.queue,
				"exchange_name", c.config.ExchangeNameForBind,
				"routing_key", key,
			)
			if err := c.channel.QueueBind(c.queue, key, c.config.ExchangeNameForBind, false, nil); err != nil {
				return fmt.Errorf("failed to bind queue '%s' to exchange '%s': %w", c.queue, c.config.ExchangeNameForBind, err)
			}
		}
	}

	c.Logger.Debug("Consumer setup complete", "queue", c.queue)
	return nil
}

// QueueName is the declared (possibly broker generated) queue name.
func (c *Consumer) QueueName() string {
	return c.queue
}

// Start consumes until ctx is cancelled or the channel closes. It blocks.
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		c.config.ConsumerTag,
		false, // auto-ack
		c.config.ExclusiveQueue,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer: failed to start consuming from '%s': %w", c.queue, err)
	}
	c.Logger.Info("Consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("Consumer stopping", "queue", c.queue)
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("consumer: delivery channel closed")
			}
			c.dispatch(ctx, handler, d)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, handler MessageHandler, d amqp.Delivery) {
	c.wg.Add(1)
	defer c.wg.Done()

	if err := handler(ctx, d); err != nil {
		c.Logger.Error(err, "Handler failed, rejecting message",
			"routing_key", d.RoutingKey,
			"message_id", d.MessageId,
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.Logger.Error(nackErr, "Failed to nack message")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.Logger.Error(err, "Failed to ack message")
	}
}

// Close waits for the handler in progress and closes the channel.
func (c *Consumer) Close() error {
	c.wg.Wait()
	if c.channel == nil {
		return nil
	}
	err := c.channel.Close()
	c.channel = nil
	if err != nil {
		c.Logger.Error(err, "Error closing channel")
		return err
	}
	c.Logger.Info("Consumer closed")
	return nil
}
