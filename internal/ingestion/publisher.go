package ingestion

import (
	"context"
	"fmt"

	"github.com/your-org/assetmanager/pkg/eventgrid"
	"github.com/your-org/assetmanager/pkg/kafka"
)

// Publisher delivers JobStartedEvents to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event eventgrid.Event) error
	Close(ctx context.Context) error
}

// EventSender is satisfied by *eventgrid.Client.
type EventSender interface {
	PublishEvents(ctx context.Context, events []eventgrid.Event) error
}

// GridPublisher posts each event to an Event Grid topic.
type GridPublisher struct {
	sender EventSender
}

func NewGridPublisher(sender EventSender) *GridPublisher {
	return &GridPublisher{sender: sender}
}

func (p *GridPublisher) Publish(ctx context.Context, event eventgrid.Event) error {
	if err := p.sender.PublishEvents(ctx, []eventgrid.Event{event}); err != nil {
		return fmt.Errorf("publish to event grid: %w", err)
	}
	return nil
}

func (p *GridPublisher) Close(context.Context) error { return nil }

// KafkaPublisher writes events to a Kafka topic keyed by job id.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event eventgrid.Event) error {
	key := event.ID
	if data, ok := event.Data.(JobStartedData); ok {
		key = data.JobID
	}
	headers := map[string]string{
		"event_id":   event.ID,
		"event_type": event.EventType,
	}
	if err := p.producer.PublishJSON(ctx, key, event, headers); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close(ctx context.Context) error {
	return p.producer.Close(ctx)
}

// NopPublisher drops events. Used when EVENTS_PUBLISHER is "none".
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, eventgrid.Event) error { return nil }
func (NopPublisher) Close(context.Context) error { return nil }
