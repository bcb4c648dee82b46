package predictor

import (
	"time"

	"github.com/crossingcast/crossingcast/pkg/crossing"
)

// BuildTimeline windows the closure list into alternating closure/opening
// segments covering [now, now+horizon], clipping windows at both ends.
// Pure formatting over the predictor output - no state of its own.
func BuildTimeline(windows []crossing.ClosureWindow, now time.Time, horizon time.Duration) []crossing.TimelineSegment {
	end := now.Add(horizon)

	var segments []crossing.TimelineSegment
	cursor := now

	for _, window := range windows {
		if !window.End.After(now) || !window.Start.Before(end) {
			continue
		}

		start := window.Start
		if start.Before(cursor) {
			start = cursor
		}

		stop := window.End
		if stop.After(end) {
			stop = end
		}

		if start.After(cursor) {
			segments = append(segments, crossing.TimelineSegment{
				Type:  crossing.SegmentTypeOpening,
				Start: cursor,
				End:   start,
			})
		}

		segments = append(segments, crossing.TimelineSegment{
			Type:        crossing.SegmentTypeClosure,
			Start:       start,
			End:         stop,
			ServiceRIDs: window.ServiceRIDs,
		})

		cursor = stop

		if !cursor.Before(end) {
			break
		}
	}

	if cursor.Before(end) {
		segments = append(segments, crossing.TimelineSegment{
			Type:  crossing.SegmentTypeOpening,
			Start: cursor,
			End:   end,
		})
	}

	return segments
}
