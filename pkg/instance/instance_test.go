package instance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossingcast/crossingcast/pkg/calibration"
	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/predictor"
	"github.com/crossingcast/crossingcast/pkg/timetable"
	"github.com/crossingcast/crossingcast/pkg/tracker"
)

func testInstance(t *testing.T) *Instance {
	t.Helper()

	path := filepath.Join(t.TempDir(), "crossing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calibration:\n  routes: []\n"), 0644))

	table, err := calibration.LoadTable(path)
	require.NoError(t, err)

	levelCrossing := &crossing.Crossing{
		Name:          "Roydon",
		Tiploc:        "ROYDON",
		CRS:           "RYN",
		StationTiploc: "ROYDON",
	}

	config := predictor.DefaultConfig()

	instance := &Instance{
		Crossing: levelCrossing,
		Table:    table,
		Config:   config,
		Store:    timetable.NewStore(),
		Source:   timetable.FileSource{SnapshotPath: "does-not-exist.xml"},
	}
	instance.Tracker = tracker.NewTracker(levelCrossing, instance.Store, table, config.DwellOffset)

	return instance
}

func seedFromFeed(instance *Instance, rid string, callTime time.Time) {
	instance.Tracker.ApplySchedule(&crossing.ServiceRecord{
		RID:      rid,
		Headcode: "2H31",
		Calls: []crossing.ServiceCall{
			{Tiploc: "ROYDON", ScheduledTime: callTime, CallType: crossing.CallTypeStop},
		},
	})
}

func TestFailingSnapshotLoadDoesNotClearFeedState(t *testing.T) {
	instance := testInstance(t)
	instance.lastResetDay = "2024-02-29"

	now := time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC)

	// First tick of the new day performs the one rollover reset; the
	// snapshot load fails and the store goes degraded.
	instance.maintainDayTick(now)
	assert.True(t, instance.Store.Degraded())
	assert.False(t, instance.Store.Loaded())

	// The live feed builds state while the snapshot stays unavailable.
	seedFromFeed(instance, "stop1", now.Add(30*time.Minute))

	// Retries keep failing but must leave that state alone.
	instance.maintainDayTick(now.Add(time.Minute))
	instance.maintainDayTick(now.Add(2 * time.Minute))

	states := instance.Tracker.Snapshot(now, time.Hour, time.Hour)
	require.Len(t, states, 1)
	assert.Equal(t, "stop1", states[0].RID)
}

func TestRolloverResetsOncePerDay(t *testing.T) {
	instance := testInstance(t)
	instance.lastResetDay = "2024-03-01"

	dayOne := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seedFromFeed(instance, "stop1", dayOne.Add(time.Hour))

	// Same operating day: no reset even though nothing is loaded.
	instance.maintainDayTick(dayOne)
	assert.Len(t, instance.Tracker.Snapshot(dayOne, 24*time.Hour, 24*time.Hour), 1)

	// Next day: yesterday's state goes exactly once.
	dayTwo := dayOne.Add(24 * time.Hour)
	instance.maintainDayTick(dayTwo)
	assert.Empty(t, instance.Tracker.Snapshot(dayTwo, 48*time.Hour, 48*time.Hour))
	assert.Equal(t, "2024-03-02", instance.lastResetDay)
}
