package timetable

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"

	"github.com/crossingcast/crossingcast/pkg/crossing"
)

// ErrTimetableUnavailable means the daily snapshot could not be fetched or
// parsed. The store keeps serving the previous day's data and flags itself
// degraded.
var ErrTimetableUnavailable = errors.New("timetable snapshot unavailable")

var ErrServiceNotFound = errors.New("service not found in timetable")

// Store holds the operating day's service records. Read only after load;
// a reload builds a complete new table and swaps it in atomically.
type Store struct {
	mutex sync.RWMutex

	day           time.Time
	records       map[string]*crossing.ServiceRecord
	locationNames map[string]string

	loadedAt time.Time
	degraded bool
}

func NewStore() *Store {
	return &Store{
		records:       map[string]*crossing.ServiceRecord{},
		locationNames: map[string]string{},
	}
}

// Load fetches and parses the snapshot for a day, then publishes it. On
// failure the previous table stays in place and the store goes degraded.
func (s *Store) Load(day time.Time, source Source, crossingTiplocs []string, referenceTiplocs []string, classify func(*crossing.ServiceRecord) string) error {
	reader, err := source.OpenSnapshot(day)
	if err != nil {
		s.markDegraded()
		return fmt.Errorf("%w: %s", ErrTimetableUnavailable, err)
	}
	defer reader.Close()

	records, err := ParseSnapshot(reader, day, crossingTiplocs, referenceTiplocs, classify)
	if err != nil {
		s.markDegraded()
		return fmt.Errorf("%w: %s", ErrTimetableUnavailable, err)
	}

	locationNames := map[string]string{}
	if refReader, err := source.OpenReference(day); err == nil {
		locationNames, err = ParseReference(refReader)
		if err != nil {
			log.Error().Err(err).Msg("Failed to parse timetable reference file")
		}
		refReader.Close()
	} else {
		log.Debug().Err(err).Msg("No timetable reference file")
	}

	s.mutex.Lock()
	s.day = day
	s.records = records
	if len(locationNames) > 0 {
		s.locationNames = locationNames
	}
	s.loadedAt = time.Now()
	s.degraded = false
	s.mutex.Unlock()

	log.Info().
		Str("day", day.Format("2006-01-02")).
		Int("services", len(records)).
		Int("locations", len(locationNames)).
		Msg("Loaded timetable snapshot")

	return nil
}

func (s *Store) markDegraded() {
	s.mutex.Lock()
	s.degraded = true
	s.mutex.Unlock()
}

func (s *Store) Lookup(rid string) (*crossing.ServiceRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, exists := s.records[rid]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, rid)
	}

	return record, nil
}

// Records returns the day's service records sorted by RID. The records
// themselves are immutable so sharing pointers is safe.
func (s *Store) Records() []*crossing.ServiceRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := make([]*crossing.ServiceRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}

	slices.SortFunc(records, func(a *crossing.ServiceRecord, b *crossing.ServiceRecord) int {
		if a.RID < b.RID {
			return -1
		} else if a.RID > b.RID {
			return 1
		}
		return 0
	})

	return records
}

// LocationName resolves a tiploc to a display name, falling back to the
// tiploc itself.
func (s *Store) LocationName(tiploc string) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if name, exists := s.locationNames[tiploc]; exists {
		return name
	}

	return tiploc
}

func (s *Store) Day() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.day
}

func (s *Store) Loaded() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return !s.loadedAt.IsZero()
}

func (s *Store) Degraded() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.degraded
}

// LoadedForDay reports whether the published table covers the given
// operating day.
func (s *Store) LoadedForDay(day time.Time) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return !s.loadedAt.IsZero() && s.day.Format("2006-01-02") == day.Format("2006-01-02")
}
