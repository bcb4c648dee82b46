package crossing

import (
	"fmt"
	"os"

	"github.com/paulcager/osgridref"
	"gopkg.in/yaml.v3"
)

// Crossing describes the single level crossing this instance predicts
// closures for, along with the station whose protecting signal controls
// the barriers.
type Crossing struct {
	Name string `yaml:"name" json:"name" groups:"basic,detailed"`

	// Tiploc is the timing point location of the crossing itself. For a
	// crossing adjacent to a station this is usually the station tiploc.
	Tiploc string `yaml:"tiploc" json:"tiploc" groups:"detailed"`
	CRS    string `yaml:"crs" json:"crs" groups:"detailed"`

	// StationTiploc is the calling point used for stopping services. Trains
	// that call here hold the barriers down across their dwell.
	StationTiploc string `yaml:"station_tiploc" json:"-"`

	OSGridRef string  `yaml:"os_grid_ref" json:"-"`
	Latitude  float64 `yaml:"-" json:"latitude" groups:"basic,detailed"`
	Longitude float64 `yaml:"-" json:"longitude" groups:"basic,detailed"`
}

// LoadCrossing reads the crossing section of the instance configuration
// file. Other packages parse their own sections out of the same file.
func LoadCrossing(path string) (*Crossing, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read crossing definition: %w", err)
	}

	var configFile struct {
		Crossing Crossing `yaml:"crossing"`
	}
	if err := yaml.Unmarshal(file, &configFile); err != nil {
		return nil, fmt.Errorf("cannot parse crossing definition: %w", err)
	}
	crossing := configFile.Crossing

	if crossing.Tiploc == "" {
		return nil, fmt.Errorf("crossing definition %s has no tiploc", path)
	}

	if crossing.StationTiploc == "" {
		crossing.StationTiploc = crossing.Tiploc
	}

	if crossing.OSGridRef != "" {
		gridRef, err := osgridref.ParseOsGridRef(crossing.OSGridRef)
		if err != nil {
			return nil, fmt.Errorf("cannot parse crossing grid reference: %w", err)
		}

		crossing.Latitude, crossing.Longitude = gridRef.ToLatLon()
	}

	return &crossing, nil
}

// RelevantTiplocs are the locations a movement report must mention before
// the feed considers it for this crossing.
func (c *Crossing) RelevantTiplocs(referenceLocations []string) []string {
	tiplocs := []string{c.Tiploc}

	if c.StationTiploc != c.Tiploc {
		tiplocs = append(tiplocs, c.StationTiploc)
	}

	return append(tiplocs, referenceLocations...)
}
