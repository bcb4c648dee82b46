package crossing

import "time"

type TrainStatus string

const (
	TrainStatusScheduled    TrainStatus = "scheduled"
	TrainStatusRunningEarly TrainStatus = "running-early"
	TrainStatusRunningLate  TrainStatus = "running-late"
	TrainStatusPassed       TrainStatus = "passed"
	TrainStatusCancelled    TrainStatus = "cancelled"
)

// Classification is the stopping/passing variant assigned once per service
// per operating day. Exactly one of Stopping/Passing is set.
type Classification struct {
	Stopping *StoppingClassification `json:"stopping,omitempty" groups:"detailed"`
	Passing  *PassingClassification  `json:"passing,omitempty" groups:"detailed"`
}

// StoppingClassification covers services that call at the crossing station.
// Their crossing estimate comes straight from the reported times there.
type StoppingClassification struct {
	CallTiploc string `json:"call_tiploc" groups:"detailed"`
}

// PassingClassification covers services that run through at speed. Their
// estimate always goes through the route calibration table.
type PassingClassification struct {
	CalibrationKey string `json:"calibration_key" groups:"detailed"`
}

func (c Classification) IsStopping() bool {
	return c.Stopping != nil
}

func (c Classification) String() string {
	if c.Stopping != nil {
		return "stopping"
	}

	return "passing"
}

// TrainState is the tracker's live view of one service. Owned exclusively
// by the tracker; readers only ever see deep copies.
type TrainState struct {
	RID      string `json:"rid" groups:"basic,detailed"`
	Headcode string `json:"headcode" groups:"basic,detailed"`
	TOC      string `json:"toc" groups:"detailed"`

	OriginName      string `json:"origin" groups:"basic,detailed"`
	DestinationName string `json:"destination" groups:"basic,detailed"`

	// ScheduledCrossing is the timetable baseline crossing time.
	ScheduledCrossing time.Time `json:"scheduled_crossing" groups:"basic,detailed"`

	// Estimate is the current best crossing-time projection, superseded by
	// any later-stamped update for this service.
	Estimate time.Time     `json:"estimate" groups:"basic,detailed"`
	Delay    time.Duration `json:"delay" groups:"basic,detailed"`
	Actual   bool          `json:"actual" groups:"detailed"`

	Status         TrainStatus    `json:"status" groups:"basic,detailed"`
	Classification Classification `json:"classification" groups:"detailed"`

	RoutePattern string `json:"route_pattern" groups:"detailed"`

	// LastSourceTimestamp is the source timestamp of the newest applied
	// update, used for out-of-order protection.
	LastSourceTimestamp time.Time `json:"last_updated" groups:"detailed"`
}

// Active reports whether this service still contributes to closure
// prediction.
func (s *TrainState) Active() bool {
	return s.Status != TrainStatusPassed && s.Status != TrainStatusCancelled
}
