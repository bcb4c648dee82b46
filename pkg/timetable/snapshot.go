package timetable

import (
	"encoding/xml"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/exp/slices"
	"golang.org/x/net/html/charset"

	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/util"
)

// Journey is one train in the daily Darwin timetable snapshot.
type Journey struct {
	RID      string `xml:"rid,attr"`
	UID      string `xml:"uid,attr"`
	Headcode string `xml:"trainId,attr"`
	SSD      string `xml:"ssd,attr"`
	TOC      string `xml:"toc,attr"`

	Cancelled string `xml:"can,attr"`

	// CancelReason only appears on Push Port schedule messages, which share
	// this shape with the daily snapshot.
	CancelReason string `xml:"cancelReason"`

	Origin            []JourneyStop `xml:"OR"`
	OperationalOrigin []JourneyStop `xml:"OPOR"`
	Intermediate      []JourneyStop `xml:"IP"`
	Passing           []JourneyStop `xml:"PP"`
	Destination       []JourneyStop `xml:"DT"`
}

type JourneyStop struct {
	Tiploc   string `xml:"tpl,attr"`
	Activity string `xml:"act,attr"`

	PublicArrival    string `xml:"pta,attr"`
	PublicDeparture  string `xml:"ptd,attr"`
	WorkingArrival   string `xml:"wta,attr"`
	WorkingDeparture string `xml:"wtd,attr"`
	WorkingPass      string `xml:"wtp,attr"`

	Cancelled string `xml:"can,attr"`
}

// ParseSnapshot streams a decompressed timetable XML file and returns the
// service records for every journey calling at or passing the crossing.
// Journeys are decoded serially then filtered on a worker pool. The first
// entry of crossingTiplocs is the crossing itself; referenceTiplocs are the
// calibration sighting points whose calls are retained for passing trains.
func ParseSnapshot(reader io.Reader, day time.Time, crossingTiplocs []string, referenceTiplocs []string, classify func(*crossing.ServiceRecord) string) (map[string]*crossing.ServiceRecord, error) {
	var journeys []Journey

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := d.Token()
		if tok == nil || err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		switch ty := tok.(type) {
		case xml.StartElement:
			if ty.Name.Local == "Journey" {
				var journey Journey

				if err = d.DecodeElement(&journey, &ty); err != nil {
					log.Error().Err(err).Msg("Error decoding timetable journey")
				} else {
					journeys = append(journeys, journey)
				}
			}
		}
	}

	p := pool.NewWithResults[*crossing.ServiceRecord]()
	p.WithMaxGoroutines(16)

	for _, journey := range journeys {
		journey := journey

		p.Go(func() *crossing.ServiceRecord {
			return journey.ToServiceRecord(day, crossingTiplocs, referenceTiplocs)
		})
	}

	records := map[string]*crossing.ServiceRecord{}
	for _, record := range p.Wait() {
		if record == nil {
			continue
		}

		if classify != nil {
			record.RoutePattern = classify(record)
		}

		records[record.RID] = record
	}

	return records, nil
}

// ToServiceRecord reduces a journey to the calls that matter for the
// crossing, or nil when the journey never goes near it.
func (j *Journey) ToServiceRecord(day time.Time, crossingTiplocs []string, referenceTiplocs []string) *crossing.ServiceRecord {
	if j.RID == "" || j.Cancelled == "true" {
		return nil
	}

	var calls []crossing.ServiceCall
	touchesCrossing := false

	for _, stop := range j.AllStops() {
		atCrossing := slices.Contains(crossingTiplocs, stop.Tiploc)

		if !atCrossing && !slices.Contains(referenceTiplocs, stop.Tiploc) {
			continue
		}

		if stop.Cancelled == "true" {
			continue
		}

		scheduledTime, callType, ok := stop.scheduledCall(day)
		if !ok {
			continue
		}

		calls = append(calls, crossing.ServiceCall{
			Tiploc:        stop.Tiploc,
			ScheduledTime: scheduledTime,
			CallType:      callType,
		})

		if atCrossing {
			touchesCrossing = true
		}
	}

	if !touchesCrossing {
		return nil
	}

	record := &crossing.ServiceRecord{
		RID:      j.RID,
		UID:      j.UID,
		Headcode: j.Headcode,
		TOC:      j.TOC,
		Calls:    calls,
	}

	if len(j.Origin) > 0 {
		record.OriginTiploc = j.Origin[0].Tiploc
	} else if len(j.OperationalOrigin) > 0 {
		record.OriginTiploc = j.OperationalOrigin[0].Tiploc
	}
	if len(j.Destination) > 0 {
		record.DestinationTiploc = j.Destination[0].Tiploc
	}

	return record
}

func (j *Journey) AllStops() []JourneyStop {
	var stops []JourneyStop

	stops = append(stops, j.Origin...)
	stops = append(stops, j.OperationalOrigin...)
	stops = append(stops, j.Intermediate...)
	stops = append(stops, j.Passing...)
	stops = append(stops, j.Destination...)

	return stops
}

// scheduledCall classifies one timetable stop. Public times mean the train
// calls there; a working pass time means it runs through.
func (s *JourneyStop) scheduledCall(day time.Time) (time.Time, crossing.CallType, bool) {
	if s.PublicDeparture != "" || s.PublicArrival != "" {
		timeString := s.PublicDeparture
		if timeString == "" {
			timeString = s.PublicArrival
		}

		scheduledTime, err := parseTimetableTime(day, timeString)
		if err != nil {
			return time.Time{}, "", false
		}

		return scheduledTime, crossing.CallTypeStop, true
	}

	timeString := s.WorkingPass
	if timeString == "" {
		timeString = s.WorkingDeparture
	}
	if timeString == "" {
		timeString = s.WorkingArrival
	}
	if timeString == "" {
		return time.Time{}, "", false
	}

	scheduledTime, err := parseTimetableTime(day, timeString)
	if err != nil {
		return time.Time{}, "", false
	}

	return scheduledTime, crossing.CallTypePass, true
}

func parseTimetableTime(day time.Time, timeString string) (time.Time, error) {
	layout := "15:04"
	if len(timeString) == 8 {
		layout = "15:04:05"
	}

	parsedTime, err := time.Parse(layout, timeString)
	if err != nil {
		return time.Time{}, err
	}

	return util.AddTimeToDate(day, parsedTime), nil
}

// Reference file entries map tiplocs onto human readable location names.
type LocationRef struct {
	Tiploc string `xml:"tpl,attr"`
	CRS    string `xml:"crs,attr"`
	Name   string `xml:"locname,attr"`
}

// ParseReference streams a timetable reference XML file into a tiploc to
// display name mapping.
func ParseReference(reader io.Reader) (map[string]string, error) {
	locationNames := map[string]string{}

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := d.Token()
		if tok == nil || err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		switch ty := tok.(type) {
		case xml.StartElement:
			if ty.Name.Local == "LocationRef" {
				var locationRef LocationRef

				if err = d.DecodeElement(&locationRef, &ty); err != nil {
					log.Error().Err(err).Msg("Error decoding location ref")
				} else if locationRef.Name != "" {
					locationNames[locationRef.Tiploc] = locationRef.Name
				}
			}
		}
	}

	return locationNames, nil
}
