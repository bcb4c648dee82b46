package instance

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossingcast/crossingcast/pkg/calibration"
	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/events"
	"github.com/crossingcast/crossingcast/pkg/feed"
	"github.com/crossingcast/crossingcast/pkg/predictor"
	"github.com/crossingcast/crossingcast/pkg/timetable"
	"github.com/crossingcast/crossingcast/pkg/tracker"
	"github.com/crossingcast/crossingcast/pkg/util"
)

// Instance owns the current operating day's state for one crossing: the
// timetable store, the tracker and the predictor. Everything hangs off
// this rather than package globals so several crossings (or tests) can
// coexist in one process.
type Instance struct {
	Crossing *crossing.Crossing
	Table    *calibration.Table
	Config   predictor.Config

	Store   *timetable.Store
	Tracker *tracker.Tracker
	Runner  *predictor.Runner
	Feed    *feed.StompClient

	Source timetable.Source

	lastResetDay string
}

// Setup builds an instance from the configuration file and environment.
func Setup(configPath string, publisher events.Publisher) (*Instance, error) {
	c, err := crossing.LoadCrossing(configPath)
	if err != nil {
		return nil, err
	}

	table, err := calibration.LoadTable(configPath)
	if err != nil {
		return nil, err
	}

	config, err := predictor.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	instance := &Instance{
		Crossing: c,
		Table:    table,
		Config:   config,
		Store:    timetable.NewStore(),
		Source:   timetableSource(),

		// The startup day never gets a rollover reset; a degraded start
		// keeps whatever the feed builds.
		lastResetDay: time.Now().Format("2006-01-02"),
	}

	instance.Tracker = tracker.NewTracker(c, instance.Store, table, config.DwellOffset)
	instance.Runner = predictor.NewRunner(instance.Tracker, config, publisher)

	normalizer := feed.NewNormalizer(c, table)
	env := util.GetEnvironmentVariables()

	instance.Feed = &feed.StompClient{
		Address:   env["CROSSINGCAST_DARWIN_ADDRESS"],
		Username:  env["CROSSINGCAST_DARWIN_USERNAME"],
		Password:  env["CROSSINGCAST_DARWIN_PASSWORD"],
		QueueName: darwinTopic(env),
		ClientID:  fmt.Sprintf("%s-%s", env["CROSSINGCAST_DARWIN_USERNAME"], c.CRS),

		Normalizer: normalizer,
		Queue: &feed.BatchProcessingQueue{
			Timeout: time.Second,
			Items:   make(chan feed.Item, 500),
		},
	}

	return instance, nil
}

func darwinTopic(env map[string]string) string {
	if env["CROSSINGCAST_DARWIN_TOPIC"] != "" {
		return env["CROSSINGCAST_DARWIN_TOPIC"]
	}

	return "/topic/darwin.pushport-v16"
}

func timetableSource() timetable.Source {
	env := util.GetEnvironmentVariables()

	if env["CROSSINGCAST_TIMETABLE_FILE"] != "" {
		return timetable.FileSource{
			SnapshotPath:  env["CROSSINGCAST_TIMETABLE_FILE"],
			ReferencePath: env["CROSSINGCAST_TIMETABLE_REFERENCE_FILE"],
		}
	}

	return timetable.HTTPSource{
		SnapshotURL:  env["CROSSINGCAST_TIMETABLE_URL"],
		ReferenceURL: env["CROSSINGCAST_TIMETABLE_REFERENCE_URL"],
	}
}

// CrossingTiplocs is the location filter for snapshot parsing.
func (i *Instance) CrossingTiplocs() []string {
	tiplocs := []string{i.Crossing.Tiploc}
	if i.Crossing.StationTiploc != i.Crossing.Tiploc {
		tiplocs = append(tiplocs, i.Crossing.StationTiploc)
	}

	return tiplocs
}

// LoadDay pulls the day's timetable snapshot and seeds the tracker. On
// failure the previous table keeps serving and the instance runs degraded
// off the live feed alone.
func (i *Instance) LoadDay(day time.Time) error {
	err := i.Store.Load(day, i.Source, i.CrossingTiplocs(), i.Table.ReferenceLocations(), i.Table.MatchPattern)
	if err != nil {
		log.Error().Err(err).Msg("Timetable load failed, continuing degraded")
		return err
	}

	i.Tracker.SeedFromTimetable()

	return nil
}

// MaintainDay rolls the instance over at each operating day boundary:
// clear state, load the new snapshot, reseed.
func (i *Instance) MaintainDay() {
	for {
		time.Sleep(time.Minute)

		i.maintainDayTick(time.Now())
	}
}

// maintainDayTick resets the tracker at most once per operating day. A
// snapshot load that keeps failing is retried every tick, but state the
// live feed has built since the reset must survive those retries.
func (i *Instance) maintainDayTick(now time.Time) {
	if i.Store.LoadedForDay(now) {
		return
	}

	day := now.Format("2006-01-02")
	if i.lastResetDay != day {
		log.Info().Str("day", day).Msg("Operating day rollover")

		i.Tracker.ResetDay()
		i.lastResetDay = day
	}

	i.LoadDay(now)
}
