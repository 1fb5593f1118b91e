// Package cfradial reads and writes single-sweep CfRadial volumes stored as
// NetCDF classic files.
package cfradial

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

// CfRadial dimension and coordinate variable names.
const (
	dimTime  = "time"
	dimRange = "range"

	varTime      = "time"
	varRange     = "range"
	varAzimuth   = "azimuth"
	varElevation = "elevation"
	varLatitude  = "latitude"
	varLongitude = "longitude"
	varAltitude  = "altitude"
)

// ErrMissingVariable is returned when a required coordinate variable is absent.
var ErrMissingVariable = errors.New("cfradial: missing variable")

// Loader reads CfRadial files from the local filesystem.
type Loader struct{}

// NewLoader creates a CfRadial volume loader.
func NewLoader() *Loader { return &Loader{} }

// Load reads the volume at path. It implements domain.VolumeLoader.
func (l *Loader) Load(ctx context.Context, path string) (*domain.Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cfradial: open %s: %w", path, err)
	}
	defer f.Close()

	v, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Decode reads a CfRadial sweep and computes the geographic position of every gate.
// The time dimension may be fixed or UNLIMITED.
func Decode(f *os.File) (*domain.Volume, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cfradial: stat: %w", err)
	}
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("cfradial: read header: %w", err)
	}
	h := ff.Header
	d := decoder{ff: ff, records: int(h.NumRecs(fi.Size()))}

	units, ok := h.GetAttribute(varTime, "units").(string)
	if !ok {
		return nil, fmt.Errorf("time units: %w", ErrMissingVariable)
	}
	t, err := domain.ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	ranges, err := d.readVector(varRange)
	if err != nil {
		return nil, err
	}
	azimuths, err := d.readVector(varAzimuth)
	if err != nil {
		return nil, err
	}
	elevations, err := d.readVector(varElevation)
	if err != nil {
		return nil, err
	}
	if len(elevations) != len(azimuths) {
		return nil, fmt.Errorf("cfradial: %d elevations for %d rays: %w", len(elevations), len(azimuths), domain.ErrShapeMismatch)
	}

	site, err := d.readSite()
	if err != nil {
		return nil, err
	}

	v := &domain.Volume{
		Site:   site,
		Time:   t,
		Fields: make(map[string]*sparse.DenseArray),
	}
	v.GateLatitude, v.GateLongitude, v.GateAltitude = gateCoordinates(site, azimuths, elevations, ranges)

	rays, gates := len(azimuths), len(ranges)
	for _, name := range h.Variables() {
		dims := h.Dimensions(name)
		if len(dims) != 2 || dims[0] != dimTime || dims[1] != dimRange {
			continue
		}
		data, err := d.readField(name, rays, gates)
		if err != nil {
			return nil, err
		}
		v.Fields[name] = data
	}

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// readSite takes the radar position from the first sample of the latitude,
// longitude and altitude variables, which may be scalars or per-ray.
func (d decoder) readSite() (domain.Site, error) {
	var site domain.Site
	for _, c := range []struct {
		name string
		dst  *float64
	}{
		{varLatitude, &site.Lat},
		{varLongitude, &site.Lon},
		{varAltitude, &site.Altitude},
	} {
		vals, err := d.readVector(c.name)
		if err != nil {
			return site, err
		}
		if len(vals) == 0 {
			return site, fmt.Errorf("%s is empty: %w", c.name, ErrMissingVariable)
		}
		*c.dst = vals[0]
	}
	return site, nil
}

// gateCoordinates places every gate with the 4/3 earth beam model and the
// inverse azimuthal-equidistant projection centered on the site.
func gateCoordinates(site domain.Site, azimuths, elevations, ranges []float64) (lat, lon, alt *sparse.DenseArray) {
	rays, gates := len(azimuths), len(ranges)
	lat = sparse.ZerosDense(rays, gates)
	lon = sparse.ZerosDense(rays, gates)
	alt = sparse.ZerosDense(rays, gates)
	for i := 0; i < rays; i++ {
		for j := 0; j < gates; j++ {
			p, z := domain.AntennaToCartesian(ranges[j], azimuths[i], elevations[i])
			gLon, gLat := domain.Unproject(p, site.Lon, site.Lat)
			lat.Set(gLat, i, j)
			lon.Set(gLon, i, j)
			alt.Set(z+site.Altitude, i, j)
		}
	}
	return lat, lon, alt
}

// decoder reads variables of one open file. records is the length of the
// UNLIMITED dimension, derived from the file size.
type decoder struct {
	ff      *cdf.File
	records int
}

// lengths returns the dimension lengths of a variable, with the record
// dimension resolved to the number of records in the file.
func (d decoder) lengths(name string) []int {
	dims := append([]int(nil), d.ff.Header.Lengths(name)...)
	if d.ff.Header.IsRecordVariable(name) {
		dims[0] = d.records
	}
	return dims
}

// readVector reads a whole variable as float64s, without unpacking.
func (d decoder) readVector(name string) ([]float64, error) {
	if !hasVariable(d.ff.Header, name) {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingVariable)
	}
	dims := d.lengths(name)
	n := 1
	end := make([]int, len(dims))
	for i, l := range dims {
		n *= l
		end[i] = l - 1
	}
	if n == 0 {
		return nil, nil
	}

	// The end corner is explicit: record variables have no implied end.
	r := d.ff.Reader(name, nil, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("cfradial: read %s: %w", name, err)
	}
	vals, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return vals, nil
}

// readField reads a (time, range) variable, unpacks scale_factor/add_offset
// and replaces _FillValue/missing_value samples with NaN.
func (d decoder) readField(name string, rays, gates int) (*sparse.DenseArray, error) {
	raw, err := d.readVector(name)
	if err != nil {
		return nil, err
	}
	if len(raw) != rays*gates {
		return nil, fmt.Errorf("cfradial: field %s has %d samples, want %dx%d: %w", name, len(raw), rays, gates, domain.ErrShapeMismatch)
	}

	p := packingOf(d.ff.Header, name)
	data := sparse.ZerosDense(rays, gates)
	for i, val := range raw {
		data.Elements[i] = p.unpack(val)
	}
	return data, nil
}

func hasVariable(h *cdf.Header, name string) bool {
	for _, v := range h.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

type packing struct {
	scale   float64
	offset  float64
	missing []float64
}

func packingOf(h *cdf.Header, name string) packing {
	p := packing{scale: 1}
	if v, ok := firstFloat(h.GetAttribute(name, "scale_factor")); ok {
		p.scale = v
	}
	if v, ok := firstFloat(h.GetAttribute(name, "add_offset")); ok {
		p.offset = v
	}
	for _, attr := range []string{"_FillValue", "missing_value"} {
		if v, ok := firstFloat(h.GetAttribute(name, attr)); ok {
			p.missing = append(p.missing, v)
		}
	}
	return p
}

// unpack decodes one stored sample. Fill values are compared before scaling.
func (p packing) unpack(stored float64) float64 {
	if math.IsNaN(stored) {
		return math.NaN()
	}
	for _, m := range p.missing {
		if stored == m {
			return math.NaN()
		}
	}
	return stored*p.scale + p.offset
}

func firstFloat(attr any) (float64, bool) {
	if attr == nil {
		return 0, false
	}
	vals, err := toFloat64s(attr)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func toFloat64s(buf any) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return append([]float64(nil), b...), nil
	case []float32:
		return convert(b), nil
	case []int32:
		return convert(b), nil
	case []int16:
		return convert(b), nil
	case []int8:
		return convert(b), nil
	case []uint8:
		return convert(b), nil
	default:
		return nil, fmt.Errorf("cfradial: unsupported data type %T", buf)
	}
}

type number interface {
	~float32 | ~int32 | ~int16 | ~int8 | ~uint8
}

func convert[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
