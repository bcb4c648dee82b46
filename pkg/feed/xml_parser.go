package feed

import (
	"encoding/xml"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/crossingcast/crossingcast/pkg/timetable"
)

// ParsePushPort streams one Push Port document. Individual elements that
// fail to decode are logged and skipped - one bad element never loses the
// rest of the message.
func ParsePushPort(reader io.Reader) (PushPortMessage, error) {
	message := PushPortMessage{}

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := d.Token()
		if tok == nil || err == io.EOF {
			break
		} else if err != nil {
			return message, err
		}

		switch ty := tok.(type) {
		case xml.StartElement:
			switch ty.Name.Local {
			case "Pport":
				for _, attr := range ty.Attr {
					if attr.Name.Local == "ts" {
						if ts, err := time.Parse(time.RFC3339, attr.Value); err == nil {
							message.Timestamp = ts
						}
					}
				}
			case "TS":
				var trainStatus TrainStatus

				if err = d.DecodeElement(&trainStatus, &ty); err != nil {
					log.Error().Err(err).Msg("Error decoding TS element")
				} else {
					message.TrainStatuses = append(message.TrainStatuses, trainStatus)
				}
			case "schedule":
				var schedule timetable.Journey

				if err = d.DecodeElement(&schedule, &ty); err != nil {
					log.Error().Err(err).Msg("Error decoding schedule element")
				} else {
					message.Schedules = append(message.Schedules, schedule)
				}
			case "deactivated":
				var deactivated Deactivated

				if err = d.DecodeElement(&deactivated, &ty); err != nil {
					log.Error().Err(err).Msg("Error decoding deactivated element")
				} else {
					message.Deactivations = append(message.Deactivations, deactivated)
				}
			}
		}
	}

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	return message, nil
}
