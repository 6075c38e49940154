package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"booking-engine/internal/domain"
)

// EventPublisher publishes hold and booking lifecycle events
type EventPublisher interface {
	// PublishHoldCreated publishes a hold created event
	PublishHoldCreated(ctx context.Context, hold *domain.Hold) error

	// PublishHoldReleased publishes a hold released event
	PublishHoldReleased(ctx context.Context, hold *domain.Hold) error

	// PublishHoldExpired publishes a hold expired event
	PublishHoldExpired(ctx context.Context, hold *domain.Hold) error

	// PublishBookingConfirmed publishes a booking confirmed event
	PublishBookingConfirmed(ctx context.Context, summary *domain.BookingSummary) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using franz-go
type KafkaEventPublisher struct {
	client      *kgo.Client
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "booking-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "booking-engine"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "booking-engine-producer"
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.RecordRetries(3),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping kafka: %w", err)
	}

	return &KafkaEventPublisher{
		client:      client,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishHoldCreated publishes a hold created event
func (p *KafkaEventPublisher) PublishHoldCreated(ctx context.Context, hold *domain.Hold) error {
	return p.publishHoldEvent(ctx, domain.EventHoldCreated, hold)
}

// PublishHoldReleased publishes a hold released event
func (p *KafkaEventPublisher) PublishHoldReleased(ctx context.Context, hold *domain.Hold) error {
	return p.publishHoldEvent(ctx, domain.EventHoldReleased, hold)
}

// PublishHoldExpired publishes a hold expired event
func (p *KafkaEventPublisher) PublishHoldExpired(ctx context.Context, hold *domain.Hold) error {
	return p.publishHoldEvent(ctx, domain.EventHoldExpired, hold)
}

// PublishBookingConfirmed publishes a booking confirmed event
func (p *KafkaEventPublisher) PublishBookingConfirmed(ctx context.Context, summary *domain.BookingSummary) error {
	data, err := json.Marshal(domain.BookingConfirmedData{Summary: *summary})
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	return p.produce(ctx, domain.EventBookingConfirmed, summary.BookingID, data)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

func (p *KafkaEventPublisher) publishHoldEvent(ctx context.Context, eventType string, hold *domain.Hold) error {
	data, err := json.Marshal(domain.HoldEventData{
		HoldID:    hold.ID,
		UserID:    hold.UserID,
		ShowingID: hold.ShowingID,
		Seats:     hold.SeatLabels(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	return p.produce(ctx, eventType, hold.ID, data)
}

func (p *KafkaEventPublisher) produce(ctx context.Context, eventType, key string, data []byte) error {
	event := domain.Event{
		EventID:    uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Source:     p.serviceName,
		Data:       data,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "source", Value: []byte(p.serviceName)},
			{Key: "content_type", Value: []byte("application/json")},
		},
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for
// development and tests
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

func (p *NoOpEventPublisher) PublishHoldCreated(ctx context.Context, hold *domain.Hold) error {
	return nil
}

func (p *NoOpEventPublisher) PublishHoldReleased(ctx context.Context, hold *domain.Hold) error {
	return nil
}

func (p *NoOpEventPublisher) PublishHoldExpired(ctx context.Context, hold *domain.Hold) error {
	return nil
}

func (p *NoOpEventPublisher) PublishBookingConfirmed(ctx context.Context, summary *domain.BookingSummary) error {
	return nil
}

func (p *NoOpEventPublisher) Close() error {
	return nil
}
