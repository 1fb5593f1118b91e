// Command extract reads one CfRadial volume and prints the radar values at
// each configured station, as a CSV table or as the JSON batch result.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/storm-radar-extract/internal/adapter/cfradial"
	"github.com/couchcryptid/storm-radar-extract/internal/adapter/stations"
	"github.com/couchcryptid/storm-radar-extract/internal/adapter/tabular"
	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

type cli struct {
	Volume   string   `help:"CfRadial volume file." required:"" type:"existingfile"`
	Stations string   `help:"Stations YAML file." required:"" type:"existingfile"`
	Fields   []string `help:"Radar fields to extract." default:"DBZH,ZDR,RHOHV"`
	Mode     string   `help:"Extract a 3x3 window or a single sample." enum:"window,point" default:"window"`

	Mask          bool    `help:"Mark samples missing where the mask field is below the threshold."`
	MaskField     string  `help:"Quality field used by --mask." default:"RHOHV"`
	MaskThreshold float64 `help:"Quality threshold used by --mask." default:"0.8"`
	Seam          string  `help:"Azimuth seam policy for windows." enum:"wrap,strict" default:"wrap"`

	Format   string `help:"Output format." enum:"csv,json" default:"csv"`
	Output   string `help:"Write the table to this file instead of stdout." type:"path"`
	LogLevel string `help:"Log level. Logs go to stdout, so keep it at error when the table does too." enum:"debug,info,warn,error" default:"error"`
}

func (c *cli) options() (domain.ExtractOptions, error) {
	mode, err := domain.ParseMode(c.Mode)
	if err != nil {
		return domain.ExtractOptions{}, err
	}
	seam, err := domain.ParseSeamPolicy(c.Seam)
	if err != nil {
		return domain.ExtractOptions{}, err
	}
	opts := domain.ExtractOptions{Mode: mode, Seam: seam}
	if c.Mask {
		opts.Mask = &domain.Mask{Field: c.MaskField, Threshold: c.MaskThreshold}
	}
	return opts, nil
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("extract"),
		kong.Description("Extract radar values at station positions from a CfRadial volume."),
		kong.UsageOnError(),
	)

	logger := sharedobs.NewLogger(c.LogLevel, "text")

	out := os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		kctx.FatalIfErrorf(err)
		out = f
	}
	err := run(context.Background(), &c, out, logger)
	if out != os.Stdout {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}
	kctx.FatalIfErrorf(err)
}

func run(ctx context.Context, c *cli, out io.Writer, logger *slog.Logger) error {
	opts, err := c.options()
	if err != nil {
		return err
	}
	points, err := stations.Load(c.Stations)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no stations in %s", c.Stations)
	}

	v, err := cfradial.NewLoader().Load(ctx, c.Volume)
	if err != nil {
		return err
	}
	logger.Debug("volume loaded", "path", c.Volume, "time", v.Time, "fields", v.FieldNames())

	res := domain.ExtractMany(v, c.Fields, points, opts)
	for _, err := range res.Errors {
		logger.Warn("station rejected", "error", err)
	}

	if c.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	rows := make([]tabular.LabeledRow, 0, len(res.Labels))
	for _, label := range res.Labels {
		r := res.Points[label]
		for _, fe := range r.FieldErrors {
			logger.Warn("field skipped", "station", label, "error", fe)
		}
		if r.Failed() {
			logger.Warn("station failed", "station", label, "error", r.Err)
			rows = append(rows, tabular.LabeledRow{Label: label, Row: domain.Row{Time: res.Time}, Err: r.Err.Error()})
			continue
		}
		row, err := domain.ExtractionRow(res.Time, r.Extraction)
		if err != nil {
			return fmt.Errorf("station %s: %w", label, err)
		}
		rows = append(rows, tabular.LabeledRow{Label: label, Row: row})
	}
	return tabular.WriteCSV(out, rows)
}
