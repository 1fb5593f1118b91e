package cfradial

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

// FillValue marks missing field samples in written files.
const FillValue float32 = -9999

// Sweep is the content of a single-sweep CfRadial file.
type Sweep struct {
	Site       domain.Site
	Time       time.Time
	Azimuths   []float64 // degrees, one per ray
	Elevations []float64 // degrees, one per ray
	Ranges     []float64 // meters to the gate center, one per gate

	// Fields are rays × gates; NaN samples are written as FillValue.
	Fields map[string]*sparse.DenseArray
}

// UniformSweep returns a sweep with evenly spaced rays starting at north and
// evenly spaced gates, and no fields.
func UniformSweep(site domain.Site, t time.Time, rays, gates int, firstGate, spacing, elevation float64) Sweep {
	s := Sweep{
		Site:       site,
		Time:       t,
		Azimuths:   make([]float64, rays),
		Elevations: make([]float64, rays),
		Ranges:     make([]float64, gates),
		Fields:     make(map[string]*sparse.DenseArray),
	}
	for i := range s.Azimuths {
		s.Azimuths[i] = float64(i) * 360 / float64(rays)
		s.Elevations[i] = elevation
	}
	for j := range s.Ranges {
		s.Ranges[j] = firstGate + float64(j)*spacing
	}
	return s
}

// AddField fills a new rays × gates field from fn.
func (s *Sweep) AddField(name string, fn func(ray, gate int) float64) {
	data := sparse.ZerosDense(len(s.Azimuths), len(s.Ranges))
	for i := range s.Azimuths {
		for j := range s.Ranges {
			data.Set(fn(i, j), i, j)
		}
	}
	s.Fields[name] = data
}

// WriteFile writes s to path as a NetCDF classic CfRadial file.
func WriteFile(path string, s Sweep) (err error) {
	rays, gates := len(s.Azimuths), len(s.Ranges)
	if rays == 0 || gates == 0 {
		return errors.New("cfradial: sweep needs at least one ray and one gate")
	}
	if len(s.Elevations) != rays {
		return fmt.Errorf("cfradial: %d elevations for %d rays: %w", len(s.Elevations), rays, domain.ErrShapeMismatch)
	}

	names := make([]string, 0, len(s.Fields))
	for name, data := range s.Fields {
		if len(data.Shape) != 2 || data.Shape[0] != rays || data.Shape[1] != gates {
			return fmt.Errorf("cfradial: field %s has shape %v, want [%d %d]: %w", name, data.Shape, rays, gates, domain.ErrShapeMismatch)
		}
		names = append(names, name)
	}
	// Sort the names so they write in the same order every time.
	sort.Strings(names)

	h := cdf.NewHeader([]string{dimTime, dimRange}, []int{rays, gates})
	h.AddAttribute("", "Conventions", "CF/Radial")
	h.AddVariable(varTime, []string{dimTime}, []float64{0})
	h.AddAttribute(varTime, "units", "seconds since "+s.Time.UTC().Format("2006-01-02T15:04:05Z"))
	h.AddVariable(varRange, []string{dimRange}, []float32{0})
	h.AddAttribute(varRange, "units", "meters")
	h.AddVariable(varAzimuth, []string{dimTime}, []float32{0})
	h.AddAttribute(varAzimuth, "units", "degrees")
	h.AddVariable(varElevation, []string{dimTime}, []float32{0})
	h.AddAttribute(varElevation, "units", "degrees")
	for _, name := range []string{varLatitude, varLongitude, varAltitude} {
		h.AddVariable(name, []string{dimTime}, []float64{0})
	}
	for _, name := range names {
		h.AddVariable(name, []string{dimTime, dimRange}, []float32{0})
		h.AddAttribute(name, "_FillValue", []float32{FillValue})
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cfradial: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	ff, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("cfradial: write header: %w", err)
	}

	vars := []struct {
		name string
		data any
	}{
		{varTime, make([]float64, rays)},
		{varRange, toFloat32s(s.Ranges)},
		{varAzimuth, toFloat32s(s.Azimuths)},
		{varElevation, toFloat32s(s.Elevations)},
		{varLatitude, repeat(s.Site.Lat, rays)},
		{varLongitude, repeat(s.Site.Lon, rays)},
		{varAltitude, repeat(s.Site.Altitude, rays)},
	}
	for _, name := range names {
		vars = append(vars, struct {
			name string
			data any
		}{name, packField(s.Fields[name])})
	}

	for _, v := range vars {
		if err := writeVariable(ff, v.name, v.data); err != nil {
			return err
		}
	}
	return nil
}

func writeVariable(ff *cdf.File, name string, data any) error {
	end := ff.Header.Lengths(name)
	start := make([]int, len(end))
	w := ff.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("cfradial: write %s: %w", name, err)
	}
	return nil
}

func packField(data *sparse.DenseArray) []float32 {
	out := make([]float32, len(data.Elements))
	for i, v := range data.Elements {
		if math.IsNaN(v) {
			out[i] = FillValue
			continue
		}
		out[i] = float32(v)
	}
	return out
}

func toFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
