package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/contracts"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 10 * time.Second

// messagePublisher is satisfied by *rabbitmq_producer.Publisher.
type messagePublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// CatalogEventsPublisher announces admin mutations on the catalog exchange.
// The routing key is the event type ("listing.updated"), so consumers can
// bind to a subset with a topic pattern.
type CatalogEventsPublisher struct {
	producer messagePublisher
}

var _ port.CatalogEventsPort = (*CatalogEventsPublisher)(nil)

func NewCatalogEventsPublisher(producer messagePublisher) (*CatalogEventsPublisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	return &CatalogEventsPublisher{producer: producer}, nil
}

func (a *CatalogEventsPublisher) PublishListingChanged(ctx context.Context, event domain.ListingChangedEvent) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "CatalogEventsPublisher",
		"routing_key": string(event.Type),
		"listing_id":  event.ListingID,
	})

	msg, err := newListingChangedMessage(ctx, event)
	if err != nil {
		logger.Error("Refusing to publish invalid event", err, nil)
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.producer.Publish(publishCtx, string(event.Type), msg); err != nil {
		logger.Error("Failed to publish listing event", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish %s for listing %s: %w", event.Type, event.ListingID, err)
	}
	logger.Debug("Listing event published", nil)
	return nil
}

// newListingChangedMessage encodes event and checks it against the event
// contract before it leaves the process.
func newListingChangedMessage(ctx context.Context, event domain.ListingChangedEvent) (amqp.Publishing, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	body, err := json.Marshal(toListingChangedDTO(event))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode listing event: %w", err)
	}
	if err := contracts.Validate(contracts.ListingChangedSchema, body); err != nil {
		return amqp.Publishing{}, fmt.Errorf("listing event violates its contract: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Headers: amqp.Table{
			eventTypeHeader:    string(event.Type),
			eventVersionHeader: listingChangedVersion,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[traceIDHeader] = traceID
	}
	return msg, nil
}

// NoopCatalogEvents is used when the broker is disabled.
type NoopCatalogEvents struct{}

func (NoopCatalogEvents) PublishListingChanged(context.Context, domain.ListingChangedEvent) error {
	return nil
}
