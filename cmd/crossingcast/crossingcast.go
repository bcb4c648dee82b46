package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/crossingcast/crossingcast/pkg/instance"
	"github.com/crossingcast/crossingcast/pkg/notify"
	"github.com/crossingcast/crossingcast/pkg/timetable"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("CROSSINGCAST_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("CROSSINGCAST_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "crossingcast",
		Description: "Level crossing closure predictor - runs the feed, predictor and web API",

		Commands: []*cli.Command{
			instance.RegisterCLI(),
			timetable.RegisterCLI(),
			notify.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
