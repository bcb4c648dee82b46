package timetable

import (
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/crossingcast/crossingcast/pkg/calibration"
	"github.com/crossingcast/crossingcast/pkg/crossing"
)

func RegisterCLI() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:  "config",
		Value: "crossing.yaml",
		Usage: "instance configuration file",
	}
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Usage:    "local timetable snapshot file (xml or xml.gz)",
		Required: true,
	}

	return &cli.Command{
		Name:  "timetable",
		Usage: "Timetable snapshot tools",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "parse a snapshot file and report the crossing's services",
				Flags: []cli.Flag{configFlag, fileFlag},
				Action: func(c *cli.Context) error {
					store, levelCrossing, err := loadFromFile(c.String("config"), c.String("file"))
					if err != nil {
						return err
					}

					records := store.Records()

					stopping := 0
					for _, record := range records {
						call := record.CallAt(levelCrossing.StationTiploc)
						if call != nil && call.CallType == crossing.CallTypeStop {
							stopping++
						}
					}

					log.Info().
						Int("services", len(records)).
						Int("stopping", stopping).
						Int("passing", len(records)-stopping).
						Msg("Snapshot import complete")

					return nil
				},
			},
			{
				Name:  "show",
				Usage: "dump the parsed service records for inspection",
				Flags: []cli.Flag{configFlag, fileFlag,
					&cli.StringFlag{
						Name:  "rid",
						Usage: "only show a single service",
					},
				},
				Action: func(c *cli.Context) error {
					store, _, err := loadFromFile(c.String("config"), c.String("file"))
					if err != nil {
						return err
					}

					if rid := c.String("rid"); rid != "" {
						record, err := store.Lookup(rid)
						if err != nil {
							return err
						}

						pretty.Println(record)
						return nil
					}

					for _, record := range store.Records() {
						pretty.Println(record)
					}

					return nil
				},
			},
		},
	}
}

func loadFromFile(configPath string, snapshotPath string) (*Store, *crossing.Crossing, error) {
	c, err := crossing.LoadCrossing(configPath)
	if err != nil {
		return nil, nil, err
	}

	table, err := calibration.LoadTable(configPath)
	if err != nil {
		return nil, nil, err
	}

	crossingTiplocs := []string{c.Tiploc}
	if c.StationTiploc != c.Tiploc {
		crossingTiplocs = append(crossingTiplocs, c.StationTiploc)
	}

	store := NewStore()
	err = store.Load(time.Now(), FileSource{SnapshotPath: snapshotPath}, crossingTiplocs, table.ReferenceLocations(), table.MatchPattern)

	return store, c, err
}
