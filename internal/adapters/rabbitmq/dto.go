package rabbitmq

import (
	"fmt"
	"time"

	"property-catalog/internal/core/domain"
)

const (
	eventTypeHeader    = "event-type"
	eventVersionHeader = "event-version"
	traceIDHeader      = "x-trace-id"

	listingChangedVersion = "1.0.0"
)

// ListingChangedDTO is the wire form of domain.ListingChangedEvent.
type ListingChangedDTO struct {
	EventType  string    `json:"event_type"`
	Category   string    `json:"category"`
	ListingID  string    `json:"listing_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toListingChangedDTO(e domain.ListingChangedEvent) ListingChangedDTO {
	return ListingChangedDTO{
		EventType:  string(e.Type),
		Category:   string(e.Category),
		ListingID:  string(e.ListingID),
		OccurredAt: e.OccurredAt.UTC(),
	}
}

func (d ListingChangedDTO) toDomain() (domain.ListingChangedEvent, error) {
	category, err := domain.ParseCategory(d.Category)
	if err != nil {
		return domain.ListingChangedEvent{}, err
	}
	id, err := domain.NormalizeListingID(d.ListingID)
	if err != nil {
		return domain.ListingChangedEvent{}, fmt.Errorf("event listing id: %w", err)
	}
	return domain.ListingChangedEvent{
		Type:       domain.ListingChangeType(d.EventType),
		Category:   category,
		ListingID:  id,
		OccurredAt: d.OccurredAt,
	}, nil
}
