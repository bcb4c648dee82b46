package crossing

import (
	"time"
)

type CallType string

const (
	CallTypeStop CallType = "stop"
	CallTypePass CallType = "pass"
)

// ServiceCall is a single scheduled timing at a location.
type ServiceCall struct {
	Tiploc        string    `json:"tiploc" groups:"detailed"`
	ScheduledTime time.Time `json:"scheduled_time" groups:"detailed"`
	CallType      CallType  `json:"call_type" groups:"detailed"`
}

// ServiceRecord is the immutable daily schedule of one train as it affects
// the crossing. Loaded once per operating day and never mutated.
type ServiceRecord struct {
	RID      string `json:"rid" groups:"basic,detailed"`
	UID      string `json:"uid" groups:"detailed"`
	Headcode string `json:"headcode" groups:"basic,detailed"`
	TOC      string `json:"toc" groups:"detailed"`

	OriginTiploc      string `json:"origin" groups:"basic,detailed"`
	DestinationTiploc string `json:"destination" groups:"basic,detailed"`

	// Calls only contains the calls at the crossing, its station and any
	// calibration reference locations - not the full journey.
	Calls []ServiceCall `json:"calls" groups:"detailed"`

	// RoutePattern is the calibration key assigned at timetable load, empty
	// when no calibration rule matched.
	RoutePattern string `json:"route_pattern" groups:"detailed"`
}

// CallAt returns the scheduled call at the given tiploc, or nil.
func (r *ServiceRecord) CallAt(tiploc string) *ServiceCall {
	for index, call := range r.Calls {
		if call.Tiploc == tiploc {
			return &r.Calls[index]
		}
	}

	return nil
}
