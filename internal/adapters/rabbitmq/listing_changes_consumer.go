package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/contracts"
	"property-catalog/internal/core/port"
	"property-catalog/internal/core/port/usecases_port"
	"property-catalog/pkg/rabbitmq/rabbitmq_common"
	"property-catalog/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ListingChangesConsumerAdapter listens for catalog events from every
// instance and hands them to the listing changes use case.
type ListingChangesConsumerAdapter struct {
	consumer *rabbitmq_consumer.Consumer
	useCase  usecases_port.ListingChangesUseCase
	logger   port.LoggerPort
}

func NewListingChangesConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	useCase usecases_port.ListingChangesUseCase,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*ListingChangesConsumerAdapter, error) {
	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewConsumer(consumerCfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for listing changes: %w", err)
	}
	return &ListingChangesConsumerAdapter{consumer: consumer, useCase: useCase, logger: logger}, nil
}

// Start blocks until ctx is cancelled.
func (a *ListingChangesConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.Start(ctx, a.handle)
}

func (a *ListingChangesConsumerAdapter) Close() error {
	return a.consumer.Close()
}

func (a *ListingChangesConsumerAdapter) handle(ctx context.Context, d amqp.Delivery) error {
	traceID, _ := d.Headers[traceIDHeader].(string)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"message_id":   d.MessageId,
		"routing_key":  d.RoutingKey,
		"adapter_name": "ListingChangesConsumerAdapter",
	})
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	return handleListingChanged(ctx, a.useCase, d.Body)
}

func handleListingChanged(ctx context.Context, useCase usecases_port.ListingChangesUseCase, body []byte) error {
	logger := contextkeys.LoggerFromContext(ctx)

	if err := contracts.Validate(contracts.ListingChangedSchema, body); err != nil {
		logger.Error("Message failed schema validation, rejecting", err, nil)
		return err
	}
	var dto ListingChangedDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return fmt.Errorf("failed to unmarshal listing event: %w", err)
	}
	event, err := dto.toDomain()
	if err != nil {
		return fmt.Errorf("failed to map listing event: %w", err)
	}
	if err := useCase.HandleListingChanged(ctx, event); err != nil {
		logger.Error("Listing event handling failed", err, nil)
		return err
	}
	return nil
}
