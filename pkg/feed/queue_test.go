package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossingcast/crossingcast/pkg/calibration"
	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/timetable"
	"github.com/crossingcast/crossingcast/pkg/tracker"
)

func TestBatchProcessingQueueDrainsIntoTracker(t *testing.T) {
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
	tr := tracker.NewTracker(levelCrossing, timetable.NewStore(), table, 45*time.Second)

	queue := &BatchProcessingQueue{
		Timeout: 10 * time.Millisecond,
		Items:   make(chan Item, 16),
	}
	queue.Process(tr)

	callTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	queue.Add(Item{Schedule: &crossing.ServiceRecord{
		RID:      "stop1",
		Headcode: "2H31",
		Calls: []crossing.ServiceCall{
			{Tiploc: "ROYDON", ScheduledTime: callTime, CallType: crossing.CallTypeStop},
		},
	}})
	queue.Add(Item{Update: &crossing.TrainUpdate{
		RID:             "stop1",
		Location:        "ROYDON",
		Event:           crossing.UpdateEventDeparture,
		ReportedTime:    callTime.Add(2 * time.Minute),
		SourceTimestamp: callTime,
	}})

	assert.Eventually(t, func() bool {
		states := tr.Snapshot(callTime, time.Hour, time.Hour)
		return len(states) == 1 && states[0].Estimate.Equal(callTime.Add(2*time.Minute).Add(45*time.Second))
	}, time.Second, 10*time.Millisecond)
}
