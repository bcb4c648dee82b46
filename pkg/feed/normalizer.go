package feed

import (
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"

	"github.com/crossingcast/crossingcast/pkg/calibration"
	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/timetable"
)

// Normalizer reduces raw Push Port documents to the canonical TrainUpdate
// vocabulary, discarding everything that cannot affect the crossing. The
// mapping is total: any element it does not recognise is ignored, never
// misclassified.
type Normalizer struct {
	Crossing *crossing.Crossing
	Table    *calibration.Table

	crossingTiplocs  []string
	referenceTiplocs []string
}

func NewNormalizer(c *crossing.Crossing, table *calibration.Table) *Normalizer {
	crossingTiplocs := []string{c.Tiploc}
	if c.StationTiploc != c.Tiploc {
		crossingTiplocs = append(crossingTiplocs, c.StationTiploc)
	}

	return &Normalizer{
		Crossing:         c,
		Table:            table,
		crossingTiplocs:  crossingTiplocs,
		referenceTiplocs: table.ReferenceLocations(),
	}
}

func (n *Normalizer) relevantTiploc(tiploc string) bool {
	return slices.Contains(n.crossingTiplocs, tiploc) || slices.Contains(n.referenceTiplocs, tiploc)
}

// Normalize converts one decoded message into queue items. An empty result
// just means the message was about somewhere else.
func (n *Normalizer) Normalize(message PushPortMessage) []Item {
	var items []Item

	for _, trainStatus := range message.TrainStatuses {
		items = append(items, n.normalizeStatus(trainStatus, message.Timestamp)...)
	}

	for _, schedule := range message.Schedules {
		items = append(items, n.normalizeSchedule(schedule, message.Timestamp)...)
	}

	for _, deactivated := range message.Deactivations {
		if deactivated.RID == "" {
			continue
		}

		items = append(items, Item{Update: &crossing.TrainUpdate{
			RID:             deactivated.RID,
			Event:           crossing.UpdateEventCancellation,
			SourceTimestamp: message.Timestamp,
		}})
	}

	return items
}

func (n *Normalizer) normalizeStatus(trainStatus TrainStatus, sourceTimestamp time.Time) []Item {
	if trainStatus.RID == "" {
		return nil
	}

	day := operatingDay(trainStatus.SSD)

	var items []Item

	for _, location := range trainStatus.Locations {
		if !n.relevantTiploc(location.TPL) {
			continue
		}

		for _, timing := range []struct {
			element *TrainStatusTiming
			event   crossing.UpdateEvent
		}{
			{location.Arrival, crossing.UpdateEventArrival},
			{location.Departure, crossing.UpdateEventDeparture},
			{location.Pass, crossing.UpdateEventPassing},
		} {
			if timing.element == nil {
				continue
			}

			reportedTime, actual, err := timing.element.GetTiming(day)
			if err != nil {
				continue
			}

			items = append(items, Item{Update: &crossing.TrainUpdate{
				RID:             trainStatus.RID,
				Location:        location.TPL,
				Event:           timing.event,
				ReportedTime:    reportedTime,
				Actual:          actual,
				SourceTimestamp: sourceTimestamp,
			}})
		}
	}

	return items
}

// normalizeSchedule handles mid-day schedule messages: cancellations,
// reinstatements and entirely new trains.
func (n *Normalizer) normalizeSchedule(schedule timetable.Journey, sourceTimestamp time.Time) []Item {
	if schedule.RID == "" {
		return nil
	}

	day := operatingDay(schedule.SSD)

	cancelled := schedule.CancelReason != ""

	record := schedule.ToServiceRecord(day, n.crossingTiplocs, n.referenceTiplocs)
	if record == nil {
		// A schedule with every crossing call marked cancelled still means
		// the train isn't coming through.
		if cancelled || scheduleCallCancelled(&schedule, n.crossingTiplocs) {
			return []Item{{Update: &crossing.TrainUpdate{
				RID:             schedule.RID,
				Event:           crossing.UpdateEventCancellation,
				SourceTimestamp: sourceTimestamp,
			}}}
		}

		return nil
	}

	record.RoutePattern = n.Table.MatchPattern(record)

	if cancelled {
		return []Item{{Update: &crossing.TrainUpdate{
			RID:             schedule.RID,
			Event:           crossing.UpdateEventCancellation,
			SourceTimestamp: sourceTimestamp,
		}}}
	}

	// A clean schedule doubles as a reinstatement; the tracker ignores the
	// reinstatement unless the service was cancelled.
	return []Item{
		{Schedule: record},
		{Update: &crossing.TrainUpdate{
			RID:             schedule.RID,
			Event:           crossing.UpdateEventReinstatement,
			SourceTimestamp: sourceTimestamp,
		}},
	}
}

func scheduleCallCancelled(schedule *timetable.Journey, crossingTiplocs []string) bool {
	for _, stop := range schedule.AllStops() {
		if slices.Contains(crossingTiplocs, stop.Tiploc) && stop.Cancelled == "true" {
			return true
		}
	}

	return false
}

func operatingDay(ssd string) time.Time {
	if day, err := time.Parse("2006-01-02", ssd); err == nil {
		return day
	}

	log.Debug().Str("ssd", ssd).Msg("Message without valid service start date")

	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
