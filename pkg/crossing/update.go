package crossing

import "time"

type UpdateEvent string

const (
	UpdateEventDeparture     UpdateEvent = "departure"
	UpdateEventArrival       UpdateEvent = "arrival"
	UpdateEventPassing       UpdateEvent = "passing"
	UpdateEventCancellation  UpdateEvent = "cancellation"
	UpdateEventReinstatement UpdateEvent = "reinstatement"
)

// TrainUpdate is a normalised movement report from the real-time feed.
// Consumed once by the tracker and not retained.
type TrainUpdate struct {
	RID      string
	Location string
	Event    UpdateEvent

	// ReportedTime is the estimated or actual event time. Zero for
	// cancellations and reinstatements.
	ReportedTime time.Time
	Actual       bool

	// SourceTimestamp orders updates for the same service. An update older
	// than the last applied one for its service is dropped.
	SourceTimestamp time.Time
}
