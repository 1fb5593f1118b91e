// Command genmock writes a synthetic single-sweep CfRadial volume for local
// runs of the extraction service.
//
// INDEX encodes azimuth*1000 + gate so extracted windows can be checked by
// eye. DBZH is a smooth storm cell, ZDR follows reflectivity and RHOHV drops
// at the cell edge.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alecthomas/kong"

	"github.com/couchcryptid/storm-radar-extract/internal/adapter/cfradial"
	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

type cli struct {
	Out         string    `help:"Output file." required:"" type:"path"`
	Rays        int       `help:"Number of rays." default:"360"`
	Gates       int       `help:"Number of gates per ray." default:"480"`
	GateSpacing float64   `help:"Gate spacing in meters." default:"250"`
	FirstGate   float64   `help:"Range to the first gate in meters." default:"0"`
	Elevation   float64   `help:"Sweep elevation in degrees." default:"0.5"`
	Lat         float64   `help:"Radar latitude." default:"-31.4412824015"`
	Lon         float64   `help:"Radar longitude." default:"-64.1919061484"`
	Altitude    float64   `help:"Radar altitude in meters." default:"484"`
	Time        time.Time `help:"Volume time (RFC3339); defaults to now."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("genmock"),
		kong.Description("Write a synthetic CfRadial sweep."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(run(&c))
	slog.Info("wrote synthetic volume", "path", c.Out, "rays", c.Rays, "gates", c.Gates)
}

func run(c *cli) error {
	if c.Rays <= 0 || c.Gates < 2 {
		return fmt.Errorf("need at least one ray and two gates, got %d x %d", c.Rays, c.Gates)
	}
	if !(c.GateSpacing > 0) {
		return fmt.Errorf("gate spacing must be positive, got %v", c.GateSpacing)
	}
	t := c.Time
	if t.IsZero() {
		t = time.Now().UTC().Truncate(time.Second)
	}

	s := buildSweep(domain.Site{Lat: c.Lat, Lon: c.Lon, Altitude: c.Altitude}, t, c)
	if err := cfradial.WriteFile(c.Out, s); err != nil {
		return err
	}
	return nil
}

// Storm cell center and radius, in ray and gate units.
const (
	cellAzimuth = 135.0
	cellRadius  = 40.0
)

func buildSweep(site domain.Site, t time.Time, c *cli) cfradial.Sweep {
	s := cfradial.UniformSweep(site, t, c.Rays, c.Gates, c.FirstGate, c.GateSpacing, c.Elevation)
	cellGate := float64(c.Gates) / 3

	// distance from the cell center in gate units, treating one degree as one gate
	dist := func(ray, gate int) float64 {
		daz := math.Abs(s.Azimuths[ray] - cellAzimuth)
		if daz > 180 {
			daz = 360 - daz
		}
		return math.Hypot(daz, float64(gate)-cellGate)
	}
	dbz := func(ray, gate int) float64 {
		return 55*math.Exp(-math.Pow(dist(ray, gate)/cellRadius, 2)) + 5
	}

	s.AddField("INDEX", func(ray, gate int) float64 { return float64(ray*1000 + gate) })
	s.AddField("DBZH", func(ray, gate int) float64 {
		if dist(ray, gate) > 3*cellRadius {
			return math.NaN()
		}
		return dbz(ray, gate)
	})
	s.AddField("ZDR", func(ray, gate int) float64 { return 0.06 * dbz(ray, gate) })
	s.AddField("RHOHV", func(ray, gate int) float64 {
		d := dist(ray, gate) / cellRadius
		if d > 0.9 && d < 1.3 {
			return 0.7
		}
		return 0.98
	})
	return s
}
