package predictor

import (
	"golang.org/x/exp/slices"

	"github.com/crossingcast/crossingcast/pkg/crossing"
)

// ComputeClosures derives the ordered closure windows for a tracker
// snapshot. Pure function of its inputs: recomputing on an unchanged
// snapshot yields identical output, and windows are always rebuilt from
// scratch rather than patched.
func ComputeClosures(states []crossing.TrainState, config Config) []crossing.ClosureWindow {
	var intervals []crossing.ClosureWindow

	for _, state := range states {
		if !state.Active() {
			continue
		}

		intervals = append(intervals, crossing.ClosureWindow{
			Start:       state.Estimate.Add(-config.LeadTime),
			End:         state.Estimate.Add(config.ClearTime),
			Kind:        crossing.ClosureKindSingle,
			ServiceRIDs: []string{state.RID},
		})
	}

	// Sort by start time, tying on first contributing RID so identical
	// estimates merge deterministically between recomputes.
	slices.SortFunc(intervals, func(a crossing.ClosureWindow, b crossing.ClosureWindow) int {
		if a.Start.Before(b.Start) {
			return -1
		} else if a.Start.After(b.Start) {
			return 1
		}

		if a.ServiceRIDs[0] < b.ServiceRIDs[0] {
			return -1
		} else if a.ServiceRIDs[0] > b.ServiceRIDs[0] {
			return 1
		}
		return 0
	})

	var windows []crossing.ClosureWindow

	for _, next := range intervals {
		if len(windows) == 0 {
			windows = append(windows, next)
			continue
		}

		current := &windows[len(windows)-1]

		// A gap shorter than the minimum safe opening is too brief to be
		// usefully reported as open, so the intervals merge into one
		// barrier-down period. A gap of exactly the threshold stays
		// separate.
		gap := next.Start.Sub(current.End)
		if gap < config.MinimumOpening {
			if next.End.After(current.End) {
				current.End = next.End
			}

			current.ServiceRIDs = append(current.ServiceRIDs, next.ServiceRIDs...)
			current.Kind = crossing.ClosureKindMerged
			continue
		}

		windows = append(windows, next)
	}

	for index := range windows {
		slices.Sort(windows[index].ServiceRIDs)
		windows[index].ServiceRIDs = slices.Compact(windows[index].ServiceRIDs)
	}

	return windows
}
