package calibration

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	iso8601 "github.com/senseyeio/duration"
	"gopkg.in/yaml.v3"

	"github.com/crossingcast/crossingcast/pkg/crossing"
)

// ErrUncalibratedRoute means no calibration entry covers a route pattern.
// Callers fall back to the default offset - a closure must never go
// unreported because a route is missing from the table.
var ErrUncalibratedRoute = errors.New("no calibration for route pattern")

// Route converts a sighting at a reference location into a crossing time
// for one named service pattern. Values are engineered constants derived
// from timetable averages, not learned online.
type Route struct {
	Pattern string `yaml:"pattern"`

	Match struct {
		TOC         string `yaml:"toc"`
		Origin      string `yaml:"origin"`
		Destination string `yaml:"destination"`
	} `yaml:"match"`

	ReferenceLocation string `yaml:"reference_location"`
	RunningTime       string `yaml:"running_time_to_crossing"`
	SpeedClass        string `yaml:"speed_class"`

	runningTime iso8601.Duration
}

type Table struct {
	Routes        []Route `yaml:"routes"`
	DefaultOffset string  `yaml:"default_offset"`

	defaultOffset iso8601.Duration
}

func LoadTable(path string) (*Table, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read calibration table: %w", err)
	}

	var configFile struct {
		Calibration Table `yaml:"calibration"`
	}
	if err := yaml.Unmarshal(file, &configFile); err != nil {
		return nil, fmt.Errorf("cannot parse calibration table: %w", err)
	}

	table := configFile.Calibration

	if table.DefaultOffset == "" {
		table.DefaultOffset = "PT2M"
	}

	table.defaultOffset, err = iso8601.ParseISO8601(table.DefaultOffset)
	if err != nil {
		return nil, fmt.Errorf("invalid default offset %s: %w", table.DefaultOffset, err)
	}

	for index := range table.Routes {
		route := &table.Routes[index]

		route.runningTime, err = iso8601.ParseISO8601(route.RunningTime)
		if err != nil {
			return nil, fmt.Errorf("route %s has invalid running time %s: %w", route.Pattern, route.RunningTime, err)
		}
	}

	log.Info().Int("routes", len(table.Routes)).Str("defaultoffset", table.DefaultOffset).Msg("Loaded route calibration table")

	return &table, nil
}

// MatchPattern assigns a route pattern to a service record, or empty string
// when no rule matches. Run once per service at timetable load.
func (t *Table) MatchPattern(record *crossing.ServiceRecord) string {
	for _, route := range t.Routes {
		if route.Match.TOC != "" && route.Match.TOC != record.TOC {
			continue
		}
		if route.Match.Origin != "" && route.Match.Origin != record.OriginTiploc {
			continue
		}
		if route.Match.Destination != "" && route.Match.Destination != record.DestinationTiploc {
			continue
		}

		return route.Pattern
	}

	return ""
}

// EstimateCrossingTime shifts a reference-point sighting by the route's
// calibrated running time.
func (t *Table) EstimateCrossingTime(pattern string, sighting time.Time) (time.Time, error) {
	for _, route := range t.Routes {
		if route.Pattern == pattern {
			return route.runningTime.Shift(sighting), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %s", ErrUncalibratedRoute, pattern)
}

// DefaultEstimate is the conservative fallback for uncalibrated routes.
func (t *Table) DefaultEstimate(sighting time.Time) time.Time {
	return t.defaultOffset.Shift(sighting)
}

// ReferenceLocations returns every reference tiploc in the table, for feed
// message filtering.
func (t *Table) ReferenceLocations() []string {
	var locations []string

	for _, route := range t.Routes {
		if route.ReferenceLocation != "" {
			locations = append(locations, route.ReferenceLocation)
		}
	}

	return locations
}

// RouteForPattern returns the calibration entry for a pattern, or nil.
func (t *Table) RouteForPattern(pattern string) *Route {
	for index, route := range t.Routes {
		if route.Pattern == pattern {
			return &t.Routes[index]
		}
	}

	return nil
}
