package timetable

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossingcast/crossingcast/pkg/crossing"
)

const snapshotXML = `<?xml version="1.0" encoding="UTF-8"?>
<PportTimetable xmlns="http://www.thalesgroup.com/rtti/XmlTimetable/v8">
  <Journey rid="202403018000001" uid="W12345" trainId="2H31" ssd="2024-03-01" toc="LE">
    <OR tpl="LIVST" ptd="09:28"/>
    <IP tpl="BROXBRN" pta="09:49" ptd="09:50"/>
    <IP tpl="ROYDON" pta="09:59" ptd="10:00"/>
    <DT tpl="BISHSFD" pta="10:21"/>
  </Journey>
  <Journey rid="202403018000002" uid="W67890" trainId="1H05" ssd="2024-03-01" toc="XC">
    <OR tpl="LIVST" ptd="09:31"/>
    <PP tpl="BROXBRN" wtp="09:51:30"/>
    <PP tpl="ROYDON" wtp="09:58:30"/>
    <DT tpl="CAMBDGE" pta="10:25"/>
  </Journey>
  <Journey rid="202403018000003" uid="W11111" trainId="2C44" ssd="2024-03-01" toc="LE">
    <OR tpl="LIVST" ptd="09:35"/>
    <DT tpl="HERTFDE" pta="10:05"/>
  </Journey>
  <Journey rid="202403018000004" uid="W22222" trainId="2H33" ssd="2024-03-01" toc="LE" can="true">
    <OR tpl="LIVST" ptd="09:40"/>
    <IP tpl="ROYDON" pta="10:11" ptd="10:12"/>
    <DT tpl="BISHSFD" pta="10:33"/>
  </Journey>
</PportTimetable>`

func parseTestSnapshot(t *testing.T) map[string]*crossing.ServiceRecord {
	t.Helper()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	records, err := ParseSnapshot(
		strings.NewReader(snapshotXML),
		day,
		[]string{"ROYDON"},
		[]string{"BROXBRN"},
		nil,
	)
	require.NoError(t, err)

	return records
}

func TestParseSnapshotFiltersToCrossing(t *testing.T) {
	records := parseTestSnapshot(t)

	// The Hertford train never touches the crossing and the cancelled
	// journey is excluded entirely.
	require.Len(t, records, 2)
	assert.Contains(t, records, "202403018000001")
	assert.Contains(t, records, "202403018000002")
}

func TestParseSnapshotClassifiesStoppingTrain(t *testing.T) {
	records := parseTestSnapshot(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	record := records["202403018000001"]
	require.NotNil(t, record)

	assert.Equal(t, "2H31", record.Headcode)
	assert.Equal(t, "LE", record.TOC)
	assert.Equal(t, "LIVST", record.OriginTiploc)
	assert.Equal(t, "BISHSFD", record.DestinationTiploc)

	call := record.CallAt("ROYDON")
	require.NotNil(t, call)
	assert.Equal(t, crossing.CallTypeStop, call.CallType)

	// Public departure wins over arrival for the scheduled time.
	assert.Equal(t, day.Add(10*time.Hour), call.ScheduledTime)

	reference := record.CallAt("BROXBRN")
	require.NotNil(t, reference)
	assert.Equal(t, crossing.CallTypeStop, reference.CallType)
}

func TestParseSnapshotClassifiesPassingTrain(t *testing.T) {
	records := parseTestSnapshot(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	record := records["202403018000002"]
	require.NotNil(t, record)

	call := record.CallAt("ROYDON")
	require.NotNil(t, call)
	assert.Equal(t, crossing.CallTypePass, call.CallType)
	assert.Equal(t, day.Add(9*time.Hour+58*time.Minute+30*time.Second), call.ScheduledTime)

	reference := record.CallAt("BROXBRN")
	require.NotNil(t, reference)
	assert.Equal(t, crossing.CallTypePass, reference.CallType)
}

func TestParseSnapshotAppliesClassifier(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	records, err := ParseSnapshot(
		strings.NewReader(snapshotXML),
		day,
		[]string{"ROYDON"},
		nil,
		func(record *crossing.ServiceRecord) string {
			if record.TOC == "XC" {
				return "fast-down"
			}
			return ""
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "fast-down", records["202403018000002"].RoutePattern)
	assert.Equal(t, "", records["202403018000001"].RoutePattern)
}

func TestParseReference(t *testing.T) {
	referenceXML := `<?xml version="1.0" encoding="UTF-8"?>
<PportTimetableRef>
  <LocationRef tpl="ROYDON" crs="RYN" locname="Roydon"/>
  <LocationRef tpl="LIVST" crs="LST" locname="London Liverpool Street"/>
  <LocationRef tpl="UNNAMED"/>
</PportTimetableRef>`

	locationNames, err := ParseReference(strings.NewReader(referenceXML))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"ROYDON": "Roydon",
		"LIVST":  "London Liverpool Street",
	}, locationNames)
}

func TestStoreLoadedForDay(t *testing.T) {
	store := NewStore()
	day := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

	assert.False(t, store.LoadedForDay(day))
	assert.False(t, store.Loaded())

	err := store.Load(day, FileSource{SnapshotPath: "does-not-exist.xml"}, []string{"ROYDON"}, nil, nil)
	assert.ErrorIs(t, err, ErrTimetableUnavailable)
	assert.True(t, store.Degraded())
}
