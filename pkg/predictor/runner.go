package predictor

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/events"
	"github.com/crossingcast/crossingcast/pkg/tracker"
)

// Snapshot is one complete published prediction: the tracker states it was
// computed from plus the derived closure windows. Readers always get a
// whole snapshot or the previous one, never a partial recompute.
type Snapshot struct {
	ComputedAt time.Time               `json:"computed_at" groups:"basic,detailed"`
	Trains     []crossing.TrainState   `json:"trains" groups:"detailed"`
	Windows    []crossing.ClosureWindow `json:"windows" groups:"basic,detailed"`
}

// Status is the presentation layer's current-state view.
type Status struct {
	CrossingOpen bool                    `json:"crossing_open" groups:"basic,detailed"`
	NextClosure  *crossing.ClosureWindow `json:"next_closure" groups:"basic,detailed"`
	ActiveTrains []crossing.TrainState   `json:"active_trains" groups:"basic,detailed"`
}

// Runner periodically recomputes closure predictions from the tracker and
// publishes them atomically for any number of concurrent readers.
type Runner struct {
	Tracker   *tracker.Tracker
	Config    Config
	Publisher events.Publisher

	snapshot  atomic.Pointer[Snapshot]
	wasClosed bool
}

func NewRunner(t *tracker.Tracker, config Config, publisher events.Publisher) *Runner {
	if publisher == nil {
		publisher = events.NullPublisher{}
	}

	return &Runner{
		Tracker:   t,
		Config:    config,
		Publisher: publisher,
	}
}

// Run drives the recompute ticker until the process exits. A tick that
// overruns simply delays the next one - a recompute is only ever superseded
// by completing the following tick.
func (r *Runner) Run() {
	log.Info().
		Str("interval", r.Config.RecomputeInterval.String()).
		Str("horizon", r.Config.Horizon.String()).
		Msg("Starting closure predictor")

	for {
		startTime := time.Now()

		r.Recompute(startTime)
		r.Tracker.Sweep(startTime, r.Config.Retention)

		executionDuration := time.Since(startTime)
		waitTime := r.Config.RecomputeInterval - executionDuration

		if waitTime > 0 {
			time.Sleep(waitTime)
		}
	}
}

// Recompute builds and publishes a fresh snapshot. The previous snapshot
// stays published until the new one is complete.
func (r *Runner) Recompute(now time.Time) {
	states := r.Tracker.Snapshot(now, r.Config.LookBehind, r.Config.Horizon)
	windows := ComputeClosures(states, r.Config)

	snapshot := &Snapshot{
		ComputedAt: now,
		Trains:     states,
		Windows:    windows,
	}

	r.snapshot.Store(snapshot)
	r.emitTransitions(now, windows)
}

// emitTransitions publishes closure lifecycle events when the barrier state
// changes between recomputes.
func (r *Runner) emitTransitions(now time.Time, windows []crossing.ClosureWindow) {
	var currentWindow *crossing.ClosureWindow
	for index := range windows {
		if windows[index].Contains(now) {
			currentWindow = &windows[index]
			break
		}
	}

	closed := currentWindow != nil

	if closed && !r.wasClosed {
		r.Publisher.Publish(events.Event{
			Type:      events.EventTypeClosureStarted,
			Timestamp: now,
			Body:      currentWindow,
		})
	}

	if !closed && r.wasClosed {
		r.Publisher.Publish(events.Event{
			Type:      events.EventTypeClosureEnded,
			Timestamp: now,
		})

		// A short gap until the next closure is worth calling out - the
		// barrier is about to come straight back down.
		if next := nextWindowAfter(windows, now); next != nil {
			gap := next.Start.Sub(now)
			if gap < r.Config.BriefOpeningMax {
				r.Publisher.Publish(events.Event{
					Type:      events.EventTypeBriefOpening,
					Timestamp: now,
					Body: map[string]interface{}{
						"until":    next.Start,
						"duration": gap.String(),
					},
				})
			}
		}
	}

	r.wasClosed = closed
}

func nextWindowAfter(windows []crossing.ClosureWindow, now time.Time) *crossing.ClosureWindow {
	for index := range windows {
		if windows[index].Start.After(now) {
			return &windows[index]
		}
	}

	return nil
}

// Latest returns the most recently published snapshot, or an empty one if
// nothing has been computed yet.
func (r *Runner) Latest() *Snapshot {
	snapshot := r.snapshot.Load()
	if snapshot == nil {
		return &Snapshot{}
	}

	return snapshot
}

// CurrentStatus answers "is the crossing open right now and what comes
// next" from the latest snapshot.
func (r *Runner) CurrentStatus(now time.Time) Status {
	snapshot := r.Latest()

	status := Status{
		CrossingOpen: true,
		ActiveTrains: snapshot.Trains,
	}

	for index := range snapshot.Windows {
		window := &snapshot.Windows[index]

		if window.Contains(now) {
			status.CrossingOpen = false
			status.NextClosure = window
			break
		}

		if window.Start.After(now) {
			status.NextClosure = window
			break
		}
	}

	return status
}

// Timeline renders the latest snapshot as closure/opening segments over the
// requested horizon.
func (r *Runner) Timeline(now time.Time, horizon time.Duration) []crossing.TimelineSegment {
	if horizon <= 0 || horizon > r.Config.Horizon {
		horizon = r.Config.Horizon
	}

	return BuildTimeline(r.Latest().Windows, now, horizon)
}
