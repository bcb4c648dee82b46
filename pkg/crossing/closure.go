package crossing

import "time"

type ClosureKind string

const (
	ClosureKindSingle ClosureKind = "single"
	ClosureKindMerged ClosureKind = "merged"
)

// ClosureWindow is one barrier-down period, possibly merged from several
// trains whose intervals overlap or nearly touch. Rebuilt from scratch on
// every recompute - never cached across feed updates.
type ClosureWindow struct {
	Start time.Time   `json:"start" groups:"basic,detailed"`
	End   time.Time   `json:"end" groups:"basic,detailed"`
	Kind  ClosureKind `json:"kind" groups:"basic,detailed"`

	// ServiceRIDs lists the contributing services in ascending RID order.
	ServiceRIDs []string `json:"services" groups:"basic,detailed"`
}

func (w *ClosureWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w *ClosureWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type SegmentType string

const (
	SegmentTypeClosure SegmentType = "closure"
	SegmentTypeOpening SegmentType = "opening"
)

// TimelineSegment is one closure or opening period in the presentation
// timeline, clipped to the requested horizon.
type TimelineSegment struct {
	Type  SegmentType `json:"type" groups:"basic,detailed"`
	Start time.Time   `json:"start" groups:"basic,detailed"`
	End   time.Time   `json:"end" groups:"basic,detailed"`

	ServiceRIDs []string `json:"services,omitempty" groups:"basic,detailed"`
}
