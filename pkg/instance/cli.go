package instance

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/crossingcast/crossingcast/pkg/api"
	"github.com/crossingcast/crossingcast/pkg/api/routes"
	"github.com/crossingcast/crossingcast/pkg/events"
	"github.com/crossingcast/crossingcast/pkg/redis_client"
	"github.com/crossingcast/crossingcast/pkg/stations"
	"github.com/crossingcast/crossingcast/pkg/util"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the crossing predictor - feed, predictor and web API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "crossing.yaml",
				Usage: "instance configuration file",
			},
			&cli.StringFlag{
				Name:  "listen",
				Value: ":8080",
				Usage: "listen target for the web server",
			},
		},
		Action: func(c *cli.Context) error {
			env := util.GetEnvironmentVariables()

			var publisher events.Publisher = events.NullPublisher{}
			useRedis := env["CROSSINGCAST_REDIS_ADDRESS"] != ""

			if useRedis {
				if err := redis_client.Connect(); err != nil {
					return err
				}

				queuePublisher, err := events.NewQueuePublisher()
				if err != nil {
					return err
				}
				publisher = queuePublisher
			}

			instance, err := Setup(c.String("config"), publisher)
			if err != nil {
				return err
			}

			if useRedis {
				locationCache := &stations.LocationCache{}
				locationCache.Setup(instance.Store)

				instance.Tracker.ResolveLocation = locationCache.Get
			}

			if err := instance.LoadDay(time.Now()); err != nil {
				log.Error().Err(err).Msg("Starting without timetable baseline")
			}

			go instance.Runner.Run()
			go instance.MaintainDay()

			if instance.Feed.Address != "" {
				go instance.Feed.Run(instance.Tracker)
			} else {
				log.Info().Msg("No feed credentials configured, running timetable only")
			}

			return api.SetupServer(c.String("listen"), &routes.CrossingRouter{
				Crossing: instance.Crossing,
				Runner:   instance.Runner,
				Store:    instance.Store,
				Feed:     instance.Feed,
			})
		},
	}
}
