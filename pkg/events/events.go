package events

import (
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"

	"github.com/crossingcast/crossingcast/pkg/redis_client"
)

type EventType string

const (
	EventTypeClosureStarted EventType = "ClosureStarted"
	EventTypeClosureEnded   EventType = "ClosureEnded"
	EventTypeBriefOpening   EventType = "BriefOpening"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Body      interface{}
}

// Publisher pushes closure lifecycle events towards the notification
// consumers. Implementations must never block the recompute loop.
type Publisher interface {
	Publish(event Event)
}

const QueueName = "closure-events"

// QueuePublisher publishes onto the redis-backed event queue drained by the
// notify service.
type QueuePublisher struct {
	queue rmq.Queue
}

func NewQueuePublisher() (*QueuePublisher, error) {
	queue, err := redis_client.QueueConnection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	return &QueuePublisher{queue: queue}, nil
}

func (p *QueuePublisher) Publish(event Event) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to encode event")
		return
	}

	if err := p.queue.PublishBytes(eventBytes); err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to publish event")
	}
}

// NullPublisher drops events, for instances running without redis.
type NullPublisher struct{}

func (p NullPublisher) Publish(event Event) {}
