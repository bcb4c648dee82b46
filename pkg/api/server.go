package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crossingcast/crossingcast/pkg/api/routes"
)

// SetupServer builds the fiber app over an already running predictor. It
// only ever reads published snapshots, so any number of requests can run
// alongside ingestion.
func SetupServer(listen string, crossingRouter *routes.CrossingRouter) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	crossingRouter.Register(group.Group("/crossing"))

	return webApp.Listen(listen)
}
