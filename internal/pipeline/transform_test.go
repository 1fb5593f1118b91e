package pipeline_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-extract/internal/adapter/cfradial"
	"github.com/couchcryptid/storm-radar-extract/internal/domain"
	"github.com/couchcryptid/storm-radar-extract/internal/observability"
	"github.com/couchcryptid/storm-radar-extract/internal/pipeline"
)

var (
	testSite       = domain.Site{Lat: -31.4412824015, Lon: -64.1919061484, Altitude: 484}
	testVolumeTime = time.Date(2021, 6, 1, 18, 4, 31, 0, time.UTC)
)

// writeIndexVolume writes a 360-ray sweep whose INDEX field is ray*1000+gate.
func writeIndexVolume(t *testing.T) string {
	t.Helper()
	s := cfradial.UniformSweep(testSite, testVolumeTime, 360, 80, 0, 250, 0)
	s.AddField("INDEX", func(ray, gate int) float64 { return float64(ray*1000 + gate) })
	path := filepath.Join(t.TempDir(), "RMA1_0117.nc")
	require.NoError(t, cfradial.WriteFile(path, s))
	return path
}

// pointAt returns a station at bearing deg and range m from the test site.
func pointAt(label string, deg, m float64) domain.Point {
	a := deg * math.Pi / 180
	lon, lat := domain.Unproject(domain.LocalPoint{X: m * math.Sin(a), Y: m * math.Cos(a)}, testSite.Lon, testSite.Lat)
	return domain.Point{Label: label, Lat: lat, Lon: lon}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestVolumeTransformer_Transform(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})

	path := writeIndexVolume(t)
	metrics := observability.NewMetricsForTesting()
	loader := cfradial.NewCachedLoader(cfradial.NewLoader(), 4, metrics)

	tfm := pipeline.NewTransformer(loader, pipeline.ExtractionConfig{
		Points: []domain.Point{
			pointAt("gauge-a", 120, 30*250),
			pointAt("gauge-far", 45, 500*250),
			pointAt(domain.DateTimeKey, 10, 1000),
		},
		Fields:  []string{"INDEX", "KDP"},
		Options: domain.ExtractOptions{Mode: domain.ModeWindow},
		Site:    testSite,
	}, quietLogger(), metrics)

	raw := domain.RawEvent{Value: []byte(`{"path":"` + path + `","site":"RMA1"}`)}
	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, out, 2)

	var a domain.PointRecord
	require.NoError(t, json.Unmarshal(out[0].Value, &a))
	assert.Equal(t, "gauge-a", a.Station)
	assert.Equal(t, "gauge-a", out[0].Headers["station"])
	assert.Equal(t, string(out[0].Key), a.ID)
	assert.Equal(t, "2021-06-01T18:04:31Z", out[0].Headers["volume_time"])
	assert.Equal(t, "2024-04-26T15:10:00Z", out[0].Headers["processed_at"])
	_, err = uuid.Parse(a.BatchID)
	assert.NoError(t, err)

	want := map[string]domain.Cell{
		"INDEX [0,0]": domain.Present(119031), "INDEX [0,1]": domain.Present(120031), "INDEX [0,2]": domain.Present(121031),
		"INDEX [1,0]": domain.Present(119030), "INDEX [1,1]": domain.Present(120030), "INDEX [1,2]": domain.Present(121030),
		"INDEX [2,0]": domain.Present(119029), "INDEX [2,1]": domain.Present(120029), "INDEX [2,2]": domain.Present(121029),
	}
	if diff := cmp.Diff(want, a.Columns); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, a.FieldErrors, 1)
	assert.InDelta(t, 7.5, a.GeodesicRangeKm, 0.1)

	var far domain.PointRecord
	require.NoError(t, json.Unmarshal(out[1].Value, &far))
	assert.Equal(t, "gauge-far", far.Station)
	assert.Contains(t, far.Error, "outside volume")
	assert.Equal(t, a.BatchID, far.BatchID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PointExtractions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PointExtractions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PointExtractions.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FieldErrors))

	// A replayed notice is served from the cache and yields the same record IDs.
	again, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, out[0].Key, again[0].Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.VolumeCache.WithLabelValues("hit")))
}

func TestVolumeTransformer_PointMode(t *testing.T) {
	path := writeIndexVolume(t)
	tfm := pipeline.NewTransformer(cfradial.NewLoader(), pipeline.ExtractionConfig{
		Points:  []domain.Point{pointAt("gauge-a", 300, 12*250)},
		Fields:  []string{"INDEX"},
		Options: domain.ExtractOptions{Mode: domain.ModePoint},
		Site:    testSite,
	}, quietLogger(), observability.NewMetricsForTesting())

	out, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte(`{"path":"` + path + `"}`)})
	require.NoError(t, err)
	require.Len(t, out, 1)

	var rec domain.PointRecord
	require.NoError(t, json.Unmarshal(out[0].Value, &rec))
	assert.Equal(t, "point", rec.Mode)
	assert.Equal(t, map[string]domain.Cell{"INDEX": domain.Present(300012)}, rec.Columns)
	require.NotNil(t, rec.Index)
	assert.Equal(t, 12, rec.Index.Gate)
}

func TestVolumeTransformer_Errors(t *testing.T) {
	tfm := pipeline.NewTransformer(cfradial.NewLoader(), pipeline.ExtractionConfig{
		Fields: []string{"INDEX"},
	}, quietLogger(), observability.NewMetricsForTesting())

	t.Run("invalid notice", func(t *testing.T) {
		_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte(`{}`)})
		assert.ErrorIs(t, err, domain.ErrInvalidNotice)
	})

	t.Run("missing volume", func(t *testing.T) {
		_, err := tfm.Transform(context.Background(), domain.RawEvent{
			Value: []byte(`{"path":"` + filepath.Join(t.TempDir(), "gone.nc") + `"}`),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load volume")
	})
}
