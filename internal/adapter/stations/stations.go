// Package stations loads the catalog of labeled target positions.
package stations

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

// ErrInvalidStation is returned for a catalog entry without a label or with
// coordinates outside the valid range.
var ErrInvalidStation = errors.New("invalid station")

type catalog struct {
	Stations []domain.Point `yaml:"stations"`
}

// Load reads a YAML station catalog from path.
func Load(path string) ([]domain.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open station catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a YAML station catalog, keeping the file order:
//
//	stations:
//	  - label: cordoba-obs
//	    lat: -31.4
//	    lon: -64.18
func Decode(r io.Reader) ([]domain.Point, error) {
	var c catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode station catalog: %w", err)
	}

	for i, p := range c.Stations {
		if p.Label == "" {
			return nil, fmt.Errorf("station %d: missing label: %w", i, ErrInvalidStation)
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return nil, fmt.Errorf("station %q: coordinates (%v, %v) out of range: %w", p.Label, p.Lat, p.Lon, ErrInvalidStation)
		}
	}
	return c.Stations, nil
}
