package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Psycaptr/rBNB/internal/domain"
	pkgkafka "github.com/Psycaptr/rBNB/pkg/kafka"
	"github.com/Psycaptr/rBNB/pkg/logger"
)

// Kafka topic constants for property domain events.
const (
	TopicPropertyCreated = "rbnb.property.created"
	TopicPropertyDeleted = "rbnb.property.deleted"
	TopicPropertyRated   = "rbnb.property.rated"
)

// Aggregate type constant.
const AggregateTypeProperty = "property"

// Source identifier for events originating from the property service.
const SourcePropertyService = "property-service"

// PropertyCreatedData is the payload for a property.created event.
type PropertyCreatedData struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	IsListed bool   `json:"is_listed"`
	Name     string `json:"name,omitempty"`
	City     string `json:"city,omitempty"`
}

// PropertyDeletedData is the payload for a property.deleted event.
type PropertyDeletedData struct {
	ID string `json:"id"`
}

// PropertyRatedData is the payload for a property.rated event carrying the
// new aggregate.
type PropertyRatedData struct {
	ID     string  `json:"id"`
	Value  float64 `json:"value"`
	Amount int     `json:"amount"`
}

// Producer publishes property domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the property service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishPropertyCreated publishes a property.created event.
func (p *Producer) PublishPropertyCreated(ctx context.Context, property *domain.Property) error {
	data := PropertyCreatedData{
		ID:       property.ID,
		OwnerID:  property.OwnerID,
		IsListed: property.IsListed,
		Name:     property.Name,
		City:     property.City,
	}

	event, err := pkgkafka.NewEvent(TopicPropertyCreated, property.ID, AggregateTypeProperty, SourcePropertyService, data)
	if err != nil {
		return fmt.Errorf("create property.created event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicPropertyCreated, event); err != nil {
		return fmt.Errorf("publish property.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published property.created event",
		slog.String("property_id", property.ID),
		slog.String("owner_id", property.OwnerID),
	)

	return nil
}

// PublishPropertyDeleted publishes a property.deleted event.
func (p *Producer) PublishPropertyDeleted(ctx context.Context, id string) error {
	data := PropertyDeletedData{ID: id}

	event, err := pkgkafka.NewEvent(TopicPropertyDeleted, id, AggregateTypeProperty, SourcePropertyService, data)
	if err != nil {
		return fmt.Errorf("create property.deleted event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicPropertyDeleted, event); err != nil {
		return fmt.Errorf("publish property.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published property.deleted event",
		slog.String("property_id", id),
	)

	return nil
}

// PublishPropertyRated publishes a property.rated event with the aggregate
// that resulted from the submission.
func (p *Producer) PublishPropertyRated(ctx context.Context, id string, rating domain.Rating) error {
	data := PropertyRatedData{
		ID:     id,
		Value:  rating.Value,
		Amount: rating.Amount,
	}

	event, err := pkgkafka.NewEvent(TopicPropertyRated, id, AggregateTypeProperty, SourcePropertyService, data)
	if err != nil {
		return fmt.Errorf("create property.rated event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicPropertyRated, event); err != nil {
		return fmt.Errorf("publish property.rated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published property.rated event",
		slog.String("property_id", id),
		slog.Int("amount", rating.Amount),
	)

	return nil
}
