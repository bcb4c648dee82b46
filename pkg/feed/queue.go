package feed

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/tracker"
)

// Item is one unit of work for the tracker: either a movement update or a
// fresh schedule record.
type Item struct {
	Update   *crossing.TrainUpdate
	Schedule *crossing.ServiceRecord
}

// BatchProcessingQueue decouples STOMP delivery cadence from tracker apply
// cadence. The bounded channel gives natural backpressure: if the tracker
// ever falls behind, the subscriber blocks rather than buffering without
// limit.
type BatchProcessingQueue struct {
	Timeout time.Duration
	Items   chan Item
}

func (b *BatchProcessingQueue) Add(item Item) {
	b.Items <- item
}

// Process drains the queue into the tracker on a ticker, preserving arrival
// order within each batch.
func (b *BatchProcessingQueue) Process(t *tracker.Tracker) {
	go func(b *BatchProcessingQueue) {
		ticker := time.NewTicker(b.Timeout)

		for range ticker.C {
			batchItems := []Item{}

			running := true

			for running {
				select {
				case i := <-b.Items:
					batchItems = append(batchItems, i)
				default:
					running = false
				}
			}

			if len(batchItems) == 0 {
				continue
			}

			for _, item := range batchItems {
				if item.Schedule != nil {
					t.ApplySchedule(item.Schedule)
				}
				if item.Update != nil {
					t.Apply(*item.Update)
				}
			}

			log.Debug().Int("length", len(batchItems)).Msg("Applied feed batch")
		}
	}(b)
}
