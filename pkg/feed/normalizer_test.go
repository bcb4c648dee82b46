package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossingcast/crossingcast/pkg/calibration"
	"github.com/crossingcast/crossingcast/pkg/crossing"
)

const normalizerCalibrationYAML = `
calibration:
  routes:
    - pattern: fast-down
      match:
        toc: XC
      reference_location: BROXBRN
      running_time_to_crossing: PT3M
      speed_class: fast
`

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "crossing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(normalizerCalibrationYAML), 0644))

	table, err := calibration.LoadTable(path)
	require.NoError(t, err)

	return NewNormalizer(&crossing.Crossing{
		Name:          "Roydon",
		Tiploc:        "ROYDON",
		CRS:           "RYN",
		StationTiploc: "ROYDON",
	}, table)
}

const pushPortXML = `<?xml version="1.0" encoding="UTF-8"?>
<Pport xmlns="http://www.thalesgroup.com/rtti/PushPort/v16" ts="2024-03-01T09:55:00.0000000Z" version="16.0">
  <uR updateOrigin="TD">
    <TS rid="202403018000001" uid="W12345" ssd="2024-03-01">
      <Location tpl="BROXBRN" wta="09:49" wtd="09:50">
        <arr at="09:49" src="TD"/>
        <dep at="09:50" src="TD"/>
      </Location>
      <Location tpl="ROYDON" wta="09:59" wtd="10:00">
        <arr et="10:01" src="Darwin"/>
        <dep et="10:02" src="Darwin"/>
      </Location>
      <Location tpl="HERTFDE" wta="10:10">
        <arr et="10:12" src="Darwin"/>
      </Location>
    </TS>
    <deactivated rid="202403018000009"/>
  </uR>
</Pport>`

func TestParsePushPortTimestamp(t *testing.T) {
	message, err := ParsePushPort(strings.NewReader(pushPortXML))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 9, 55, 0, 0, time.UTC), message.Timestamp.UTC())
	require.Len(t, message.TrainStatuses, 1)
	assert.Len(t, message.TrainStatuses[0].Locations, 3)
	require.Len(t, message.Deactivations, 1)
	assert.Equal(t, "202403018000009", message.Deactivations[0].RID)
}

func TestNormalizeStatusFiltersAndClassifies(t *testing.T) {
	normalizer := testNormalizer(t)

	message, err := ParsePushPort(strings.NewReader(pushPortXML))
	require.NoError(t, err)

	items := normalizer.Normalize(message)

	// Two timings at the reference point, two at the crossing, one
	// cancellation from the deactivation. Hertford East is irrelevant.
	require.Len(t, items, 5)

	byEvent := map[string][]*crossing.TrainUpdate{}
	for _, item := range items {
		require.NotNil(t, item.Update)
		key := item.Update.Location + "/" + string(item.Update.Event)
		byEvent[key] = append(byEvent[key], item.Update)
	}

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	arrivals := byEvent["BROXBRN/arrival"]
	require.Len(t, arrivals, 1)
	assert.True(t, arrivals[0].Actual)
	assert.Equal(t, day.Add(9*time.Hour+49*time.Minute), arrivals[0].ReportedTime)

	departures := byEvent["ROYDON/departure"]
	require.Len(t, departures, 1)
	assert.False(t, departures[0].Actual)
	assert.Equal(t, day.Add(10*time.Hour+2*time.Minute), departures[0].ReportedTime)

	cancellations := byEvent["/cancellation"]
	require.Len(t, cancellations, 1)
	assert.Equal(t, "202403018000009", cancellations[0].RID)

	for _, item := range items {
		assert.Equal(t, message.Timestamp, item.Update.SourceTimestamp)
	}
}

func TestNormalizeScheduleCancellation(t *testing.T) {
	normalizer := testNormalizer(t)

	scheduleXML := `<Pport ts="2024-03-01T10:00:00Z">
  <uR>
    <schedule rid="202403018000005" uid="W33333" trainId="1H07" ssd="2024-03-01" toc="XC">
      <cancelReason>887</cancelReason>
      <OR tpl="LIVST" ptd="10:31"/>
      <PP tpl="ROYDON" wtp="10:58:30"/>
      <DT tpl="CAMBDGE" pta="11:25"/>
    </schedule>
  </uR>
</Pport>`

	message, err := ParsePushPort(strings.NewReader(scheduleXML))
	require.NoError(t, err)

	items := normalizer.Normalize(message)

	require.Len(t, items, 1)
	require.NotNil(t, items[0].Update)
	assert.Equal(t, crossing.UpdateEventCancellation, items[0].Update.Event)
	assert.Equal(t, "202403018000005", items[0].Update.RID)
}

func TestNormalizeScheduleNewService(t *testing.T) {
	normalizer := testNormalizer(t)

	scheduleXML := `<Pport ts="2024-03-01T10:00:00Z">
  <uR>
    <schedule rid="202403018000006" uid="W44444" trainId="1H09" ssd="2024-03-01" toc="XC">
      <OR tpl="LIVST" ptd="11:31"/>
      <PP tpl="ROYDON" wtp="11:58:30"/>
      <DT tpl="CAMBDGE" pta="12:25"/>
    </schedule>
  </uR>
</Pport>`

	message, err := ParsePushPort(strings.NewReader(scheduleXML))
	require.NoError(t, err)

	items := normalizer.Normalize(message)

	// A clean schedule produces the record plus a reinstatement that only
	// matters if the service was previously cancelled.
	require.Len(t, items, 2)

	require.NotNil(t, items[0].Schedule)
	assert.Equal(t, "202403018000006", items[0].Schedule.RID)
	assert.Equal(t, "fast-down", items[0].Schedule.RoutePattern)

	call := items[0].Schedule.CallAt("ROYDON")
	require.NotNil(t, call)
	assert.Equal(t, crossing.CallTypePass, call.CallType)

	require.NotNil(t, items[1].Update)
	assert.Equal(t, crossing.UpdateEventReinstatement, items[1].Update.Event)
}

func TestNormalizeScheduleIrrelevantService(t *testing.T) {
	normalizer := testNormalizer(t)

	scheduleXML := `<Pport ts="2024-03-01T10:00:00Z">
  <uR>
    <schedule rid="202403018000007" uid="W55555" trainId="2C48" ssd="2024-03-01" toc="LE">
      <OR tpl="LIVST" ptd="11:35"/>
      <DT tpl="HERTFDE" pta="12:05"/>
    </schedule>
  </uR>
</Pport>`

	message, err := ParsePushPort(strings.NewReader(scheduleXML))
	require.NoError(t, err)

	assert.Empty(t, normalizer.Normalize(message))
}

func TestGetTimingPrefersActual(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	timing := &TrainStatusTiming{ET: "10:05", AT: "10:03"}
	reported, actual, err := timing.GetTiming(day)
	require.NoError(t, err)
	assert.True(t, actual)
	assert.Equal(t, day.Add(10*time.Hour+3*time.Minute), reported)

	timing = &TrainStatusTiming{ET: "10:05:30"}
	reported, actual, err = timing.GetTiming(day)
	require.NoError(t, err)
	assert.False(t, actual)
	assert.Equal(t, day.Add(10*time.Hour+5*time.Minute+30*time.Second), reported)

	timing = &TrainStatusTiming{}
	_, _, err = timing.GetTiming(day)
	assert.Error(t, err)
}
