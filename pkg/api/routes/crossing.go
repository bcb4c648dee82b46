package routes

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"

	"github.com/crossingcast/crossingcast/pkg/crossing"
	"github.com/crossingcast/crossingcast/pkg/predictor"
	"github.com/crossingcast/crossingcast/pkg/timetable"
)

// FeedStatus is what the router needs to know about the upstream feed.
type FeedStatus interface {
	Connected() bool
}

type CrossingRouter struct {
	Crossing *crossing.Crossing
	Runner   *predictor.Runner
	Store    *timetable.Store
	Feed     FeedStatus
}

func (r *CrossingRouter) Register(router fiber.Router) {
	router.Get("/", r.getCrossing)
	router.Get("/status", r.getStatus)
	router.Get("/timeline", r.getTimeline)
	router.Get("/health", r.getHealth)
}

func marshalGroups(c *fiber.Ctx, data interface{}) error {
	groups := []string{"basic"}
	if c.Query("detailed") == "true" {
		groups = []string{"detailed"}
	}

	reduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, data)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce response",
		})
	}

	return c.JSON(reduced)
}

func (r *CrossingRouter) getCrossing(c *fiber.Ctx) error {
	return marshalGroups(c, r.Crossing)
}

func (r *CrossingRouter) getStatus(c *fiber.Ctx) error {
	status := r.Runner.CurrentStatus(time.Now())

	return marshalGroups(c, status)
}

func (r *CrossingRouter) getTimeline(c *fiber.Ctx) error {
	minutes, err := strconv.Atoi(c.Query("minutes", "90"))
	if err != nil || minutes <= 0 {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "minutes must be a positive integer",
		})
	}

	segments := r.Runner.Timeline(time.Now(), time.Duration(minutes)*time.Minute)

	return marshalGroups(c, segments)
}

// getHealth reflects the real state of the ingestion pipeline - a stale or
// degraded instance reports exactly that rather than a hardcoded ok.
func (r *CrossingRouter) getHealth(c *fiber.Ctx) error {
	now := time.Now()

	feedConnected := r.Feed != nil && r.Feed.Connected()
	timetableLoaded := r.Store.LoadedForDay(now)

	var lastUpdateAge interface{}
	if age := r.Runner.Tracker.LastUpdateAge(now); age >= 0 {
		lastUpdateAge = age.String()
	}

	if !feedConnected && !r.Store.Loaded() {
		c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.JSON(fiber.Map{
		"feed_connected":           feedConnected,
		"timetable_loaded_for_day": timetableLoaded,
		"timetable_degraded":       r.Store.Degraded(),
		"last_update_age":          lastUpdateAge,
		"snapshot_computed_at":     r.Runner.Latest().ComputedAt,
	})
}
