package notify

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"

	"github.com/crossingcast/crossingcast/pkg/events"
)

type NotifyBatchConsumer struct {
}

func NewNotifyBatchConsumer() *NotifyBatchConsumer {
	return &NotifyBatchConsumer{}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var event events.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Error().Err(err).Msg("Failed to decode closure event")
			continue
		}

		switch event.Type {
		case events.EventTypeClosureStarted:
			log.Info().Time("at", event.Timestamp).Msg("Barriers down")
		case events.EventTypeClosureEnded:
			log.Info().Time("at", event.Timestamp).Msg("Barriers up")
		case events.EventTypeBriefOpening:
			log.Info().Time("at", event.Timestamp).Interface("gap", event.Body).Msg("Brief opening only")
		default:
			pretty.Println(string(payload))
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume from queue")
		}
	}
}
