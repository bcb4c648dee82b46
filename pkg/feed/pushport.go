package feed

import (
	"errors"
	"time"

	"github.com/crossingcast/crossingcast/pkg/timetable"
)

// PushPortMessage is one decoded Darwin Push Port document. A single
// message may carry any mix of forecasts, schedules and deactivations.
type PushPortMessage struct {
	// Timestamp is the feed's own message timestamp, used for out-of-order
	// protection downstream.
	Timestamp time.Time

	TrainStatuses []TrainStatus
	Schedules     []timetable.Journey
	Deactivations []Deactivated
}

// TrainStatus is a TS forecast element: estimated and actual timings per
// location for one running train.
type TrainStatus struct {
	RID string `xml:"rid,attr"`
	UID string `xml:"uid,attr"`
	SSD string `xml:"ssd,attr"`

	LateReason string `xml:"LateReason"`

	Locations []TrainStatusLocation `xml:"Location"`
}

type TrainStatusLocation struct {
	TPL string `xml:"tpl,attr"`

	WTA string `xml:"wta,attr"`
	WTD string `xml:"wtd,attr"`
	WTP string `xml:"wtp,attr"`
	PTA string `xml:"pta,attr"`
	PTD string `xml:"ptd,attr"`

	Arrival   *TrainStatusTiming `xml:"arr"`
	Departure *TrainStatusTiming `xml:"dep"`
	Pass      *TrainStatusTiming `xml:"pass"`
}

type TrainStatusTiming struct {
	AT    string `xml:"at,attr"`
	ATMIN string `xml:"atmin,attr"`

	ET    string `xml:"et,attr"`
	ETMIN string `xml:"etmin,attr"`

	SRC     string `xml:"src,attr"`
	Delayed string `xml:"delayed,attr"`
}

var errNoTiming = errors.New("cannot find time")

// GetTiming resolves the best available time for this element, preferring
// actuals over estimates, placed onto the reference date.
func (t *TrainStatusTiming) GetTiming(referenceDate time.Time) (time.Time, bool, error) {
	var statusTimeString string
	actual := false

	if t.ET != "" {
		statusTimeString = t.ET
	}
	if t.ETMIN != "" {
		statusTimeString = t.ETMIN
	}

	if t.AT != "" {
		statusTimeString = t.AT
		actual = true
	}
	if t.ATMIN != "" {
		statusTimeString = t.ATMIN
		actual = true
	}

	if statusTimeString == "" {
		return time.Time{}, false, errNoTiming
	}

	layout := "15:04"
	if len(statusTimeString) == 8 {
		layout = "15:04:05"
	}

	statusTime, err := time.Parse(layout, statusTimeString)
	if err != nil {
		return time.Time{}, false, err
	}

	statusDateTime := time.Date(
		referenceDate.Year(), referenceDate.Month(), referenceDate.Day(),
		statusTime.Hour(), statusTime.Minute(), statusTime.Second(), statusTime.Nanosecond(), referenceDate.Location(),
	)

	return statusDateTime, actual, nil
}

// Deactivated marks a service Darwin will no longer forecast.
type Deactivated struct {
	RID string `xml:"rid,attr"`
}
