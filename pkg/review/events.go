package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
)

// Redis channel for review events
const (
	ChannelDuplicateReviewed = "events.duplicate.reviewed"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Source        string    `json:"source"`
	Version       string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent stamped with the current time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "grantqa",
		Version:   "1.0",
	}
}

// DuplicateReviewedEvent is published when a reviewer decides a candidate.
// The merge step downstream consumes confirmed pairs.
type DuplicateReviewedEvent struct {
	BaseEvent

	CandidateID     string              `json:"candidate_id"`
	EntityType      string              `json:"entity_type"`
	Entity1ID       string              `json:"entity_1_id"`
	Entity2ID       string              `json:"entity_2_id"`
	SimilarityScore float64             `json:"similarity_score"`
	State           catalog.ReviewState `json:"state"`
	IsDuplicate     bool                `json:"is_duplicate"`
	Notes           *string             `json:"notes,omitempty"`
	ReviewedAt      time.Time           `json:"reviewed_at"`
}

// NewDuplicateReviewedEvent builds the event for a decided candidate.
func NewDuplicateReviewedEvent(d *catalog.DuplicateCandidate, correlationID string) DuplicateReviewedEvent {
	event := DuplicateReviewedEvent{
		BaseEvent:       NewBaseEvent("duplicate.reviewed"),
		CandidateID:     d.ID,
		EntityType:      d.EntityType,
		Entity1ID:       d.Entity1ID,
		Entity2ID:       d.Entity2ID,
		SimilarityScore: d.SimilarityScore,
		State:           d.State(),
		IsDuplicate:     d.IsDuplicate != nil && *d.IsDuplicate,
	}
	if d.ReviewedAt != nil {
		event.ReviewedAt = d.ReviewedAt.UTC()
	} else {
		event.ReviewedAt = event.Timestamp
	}
	if d.Notes != "" {
		notes := d.Notes
		event.Notes = &notes
	}
	if correlationID != "" {
		event.CorrelationID = &correlationID
	}
	return event
}

// Publisher announces review decisions.
type Publisher interface {
	PublishDuplicateReviewed(ctx context.Context, event DuplicateReviewedEvent) error
}

// RedisPublisher publishes review events to Redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	logger  logging.Logger
	metrics *observability.Metrics
}

// PublisherConfig holds Redis connection configuration.
type PublisherConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisPublisher creates a publisher over an existing client.
func NewRedisPublisher(client *redis.Client, logger logging.Logger, metrics *observability.Metrics) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		logger:  logger.With(logging.F("component", "event_publisher")),
		metrics: metrics,
	}
}

// NewRedisPublisherFromConfig creates a publisher with a new Redis connection.
func NewRedisPublisherFromConfig(cfg PublisherConfig, logger logging.Logger, metrics *observability.Metrics) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return NewRedisPublisher(client, logger, metrics), nil
}

// PublishDuplicateReviewed publishes a duplicate.reviewed event.
func (p *RedisPublisher) PublishDuplicateReviewed(ctx context.Context, event DuplicateReviewedEvent) error {
	return p.publish(ctx, ChannelDuplicateReviewed, event)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.metrics.RecordEvent(channel, observability.StatusError)
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.metrics.RecordEvent(channel, observability.StatusOK)
	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
