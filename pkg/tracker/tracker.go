package tracker

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"

	"github.com/crossingcast/crossingcast/pkg/calibration"
	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/timetable"
)

const shardCount = 32

// onTimeThreshold is how far an estimate can drift from schedule before a
// train reports as running early or late.
const onTimeThreshold = time.Minute

type trackerShard struct {
	mutex  sync.RWMutex
	states map[string]*crossing.TrainState
}

// Tracker owns the live state of every service relevant to the crossing for
// the current operating day. State is striped across shards so independent
// services update concurrently; a single service's state is only ever
// touched under its shard lock.
type Tracker struct {
	shards [shardCount]trackerShard

	Crossing *crossing.Crossing
	Store    *timetable.Store
	Table    *calibration.Table

	// DwellOffset is the fixed clearance added to a stopping train's
	// reported time at the station to get its barrier crossing time.
	DwellOffset time.Duration

	// ResolveLocation turns tiplocs into display names. Defaults to the
	// store's reference data; instances with redis plug the shared
	// location cache in here.
	ResolveLocation func(tiploc string) string

	lastAppliedMutex sync.RWMutex
	lastApplied      time.Time
}

func NewTracker(c *crossing.Crossing, store *timetable.Store, table *calibration.Table, dwellOffset time.Duration) *Tracker {
	tracker := &Tracker{
		Crossing:    c,
		Store:       store,
		Table:       table,
		DwellOffset: dwellOffset,
	}

	tracker.ResolveLocation = store.LocationName

	for index := range tracker.shards {
		tracker.shards[index].states = map[string]*crossing.TrainState{}
	}

	return tracker
}

func (t *Tracker) shardFor(rid string) *trackerShard {
	hash := fnv.New32a()
	hash.Write([]byte(rid))

	return &t.shards[hash.Sum32()%shardCount]
}

// SeedFromTimetable creates the baseline state for every service in the
// day's timetable. Existing states are kept - a reload never resets live
// progress or reclassifies a train.
func (t *Tracker) SeedFromTimetable() {
	seeded := 0

	for _, record := range t.Store.Records() {
		shard := t.shardFor(record.RID)

		shard.mutex.Lock()
		if _, exists := shard.states[record.RID]; !exists {
			shard.states[record.RID] = t.newState(record)
			seeded++
		}
		shard.mutex.Unlock()
	}

	log.Info().Int("services", seeded).Msg("Seeded tracker from timetable")
}

// newState builds the baseline state for a service, assigning its
// stopping/passing classification. The classification is derived once from
// the timetable record and never changes for the rest of the day.
func (t *Tracker) newState(record *crossing.ServiceRecord) *crossing.TrainState {
	state := &crossing.TrainState{
		RID:             record.RID,
		Headcode:        record.Headcode,
		TOC:             record.TOC,
		OriginName:      t.ResolveLocation(record.OriginTiploc),
		DestinationName: t.ResolveLocation(record.DestinationTiploc),
		Status:          crossing.TrainStatusScheduled,
		RoutePattern:    record.RoutePattern,
	}

	stationCall := record.CallAt(t.Crossing.StationTiploc)
	if stationCall != nil && stationCall.CallType == crossing.CallTypeStop {
		state.Classification = crossing.Classification{
			Stopping: &crossing.StoppingClassification{CallTiploc: stationCall.Tiploc},
		}
		state.ScheduledCrossing = stationCall.ScheduledTime.Add(t.DwellOffset)
	} else {
		state.Classification = crossing.Classification{
			Passing: &crossing.PassingClassification{CalibrationKey: record.RoutePattern},
		}

		if crossingCall := record.CallAt(t.Crossing.Tiploc); crossingCall != nil {
			state.ScheduledCrossing = crossingCall.ScheduledTime
		} else if stationCall != nil {
			// Some schedules only carry the station timing point even for
			// non-stopping services; without this baseline the service
			// would be invisible until its first live report.
			state.ScheduledCrossing = stationCall.ScheduledTime
		}
	}

	state.Estimate = state.ScheduledCrossing

	return state
}

// ApplySchedule handles a mid-day schedule message for a service that was
// not in the daily snapshot, or refreshes the baseline of a known one.
func (t *Tracker) ApplySchedule(record *crossing.ServiceRecord) {
	shard := t.shardFor(record.RID)

	shard.mutex.Lock()
	defer shard.mutex.Unlock()

	if existing, exists := shard.states[record.RID]; exists {
		// Classification stays as first assigned. Only the schedule baseline
		// moves.
		if existing.Status == crossing.TrainStatusScheduled {
			fresh := t.newState(record)
			existing.ScheduledCrossing = fresh.ScheduledCrossing

			if !existing.Actual && existing.LastSourceTimestamp.IsZero() {
				existing.Estimate = fresh.Estimate
			}
		}
		return
	}

	shard.states[record.RID] = t.newState(record)

	log.Debug().Str("rid", record.RID).Str("headcode", record.Headcode).Msg("New service from feed schedule")
}

// Apply merges one normalised movement report into the service's state.
// Updates stamped older than the newest already applied are dropped, which
// makes redelivery and out-of-order delivery safe.
func (t *Tracker) Apply(update crossing.TrainUpdate) {
	shard := t.shardFor(update.RID)

	shard.mutex.Lock()
	defer shard.mutex.Unlock()

	state, exists := shard.states[update.RID]
	if !exists {
		log.Debug().Str("rid", update.RID).Msg("Update for unknown service")
		return
	}

	if update.SourceTimestamp.Before(state.LastSourceTimestamp) {
		log.Debug().
			Str("rid", update.RID).
			Time("update", update.SourceTimestamp).
			Time("applied", state.LastSourceTimestamp).
			Msg("Dropping stale update")
		return
	}

	switch update.Event {
	case crossing.UpdateEventCancellation:
		state.Status = crossing.TrainStatusCancelled
	case crossing.UpdateEventReinstatement:
		if state.Status == crossing.TrainStatusCancelled {
			state.Status = statusForDelay(state.Delay)
		}
	case crossing.UpdateEventDeparture, crossing.UpdateEventArrival, crossing.UpdateEventPassing:
		if state.Status == crossing.TrainStatusCancelled {
			// Movement reports do not resurrect a cancelled service; that
			// takes an explicit reinstatement.
			return
		}

		t.applyMovement(state, update)
	default:
		return
	}

	state.LastSourceTimestamp = update.SourceTimestamp

	t.lastAppliedMutex.Lock()
	t.lastApplied = time.Now()
	t.lastAppliedMutex.Unlock()
}

func (t *Tracker) applyMovement(state *crossing.TrainState, update crossing.TrainUpdate) {
	estimate, ok := t.estimateFrom(state, update)
	if !ok {
		return
	}

	state.Estimate = estimate
	state.Actual = update.Actual

	if !state.ScheduledCrossing.IsZero() {
		state.Delay = estimate.Sub(state.ScheduledCrossing)
	}

	atCrossing := update.Location == t.Crossing.Tiploc || update.Location == t.Crossing.StationTiploc

	if update.Actual && atCrossing && update.Event != crossing.UpdateEventArrival {
		state.Status = crossing.TrainStatusPassed
	} else {
		state.Status = statusForDelay(state.Delay)
	}
}

// estimateFrom converts a movement report into a crossing-time estimate,
// dispatching on the stopping/passing classification.
func (t *Tracker) estimateFrom(state *crossing.TrainState, update crossing.TrainUpdate) (time.Time, bool) {
	switch {
	case state.Classification.Stopping != nil:
		if update.Location != state.Classification.Stopping.CallTiploc {
			return time.Time{}, false
		}

		return update.ReportedTime.Add(t.DwellOffset), true

	case state.Classification.Passing != nil:
		if update.Location == t.Crossing.Tiploc {
			return update.ReportedTime, true
		}

		// The calibrated running time is bound to the route's own reference
		// location. A sighting anywhere else, like another route's reference
		// point or the station, gets the conservative default offset. An
		// uncalibrated route still has to contribute a closure.
		route := t.Table.RouteForPattern(state.Classification.Passing.CalibrationKey)
		if route != nil && update.Location == route.ReferenceLocation {
			estimate, err := t.Table.EstimateCrossingTime(state.Classification.Passing.CalibrationKey, update.ReportedTime)
			if err == nil {
				return estimate, true
			}
		}

		log.Debug().Str("rid", state.RID).Str("pattern", state.RoutePattern).Str("location", update.Location).Msg("No calibration for sighting, using default offset")
		return t.Table.DefaultEstimate(update.ReportedTime), true
	}

	return time.Time{}, false
}

func statusForDelay(delay time.Duration) crossing.TrainStatus {
	switch {
	case delay <= -onTimeThreshold:
		return crossing.TrainStatusRunningEarly
	case delay >= onTimeThreshold:
		return crossing.TrainStatusRunningLate
	default:
		return crossing.TrainStatusScheduled
	}
}

// Snapshot returns deep copies of every state whose estimate falls inside
// [now-lookBehind, now+horizon], sorted by crossing estimate then RID. The
// copies mean no reader can ever observe a half-applied update.
func (t *Tracker) Snapshot(now time.Time, lookBehind time.Duration, horizon time.Duration) []crossing.TrainState {
	earliest := now.Add(-lookBehind)
	latest := now.Add(horizon)

	var states []crossing.TrainState

	for index := range t.shards {
		shard := &t.shards[index]

		shard.mutex.RLock()
		for _, state := range shard.states {
			if state.Estimate.IsZero() || state.Estimate.Before(earliest) || state.Estimate.After(latest) {
				continue
			}

			var stateCopy crossing.TrainState
			copier.Copy(&stateCopy, state)
			states = append(states, stateCopy)
		}
		shard.mutex.RUnlock()
	}

	slices.SortFunc(states, func(a crossing.TrainState, b crossing.TrainState) int {
		if a.Estimate.Before(b.Estimate) {
			return -1
		} else if a.Estimate.After(b.Estimate) {
			return 1
		}

		if a.RID < b.RID {
			return -1
		} else if a.RID > b.RID {
			return 1
		}
		return 0
	})

	return states
}

// Sweep removes passed and cancelled services whose estimate is beyond the
// retention horizon. Run periodically; the full clear happens at day end.
func (t *Tracker) Sweep(now time.Time, retention time.Duration) {
	cutoff := now.Add(-retention)
	removed := 0

	for index := range t.shards {
		shard := &t.shards[index]

		shard.mutex.Lock()
		for rid, state := range shard.states {
			if state.Active() {
				continue
			}

			if state.Estimate.IsZero() || state.Estimate.Before(cutoff) {
				delete(shard.states, rid)
				removed++
			}
		}
		shard.mutex.Unlock()
	}

	if removed > 0 {
		log.Debug().Int("services", removed).Msg("Swept finished services")
	}
}

// ResetDay drops all state ready for the next operating day's seed.
func (t *Tracker) ResetDay() {
	for index := range t.shards {
		shard := &t.shards[index]

		shard.mutex.Lock()
		shard.states = map[string]*crossing.TrainState{}
		shard.mutex.Unlock()
	}
}

// LastUpdateAge is how long ago the tracker last applied a feed update,
// surfaced through health. Zero time means nothing applied yet.
func (t *Tracker) LastUpdateAge(now time.Time) time.Duration {
	t.lastAppliedMutex.RLock()
	defer t.lastAppliedMutex.RUnlock()

	if t.lastApplied.IsZero() {
		return -1
	}

	return now.Sub(t.lastApplied)
}
