package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-extract/internal/adapter/cfradial"
	httpadapter "github.com/couchcryptid/storm-radar-extract/internal/adapter/http"
	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	srv, err := httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, nil, slog.Default())
	require.NoError(t, err)
	return srv
}

func newExtractServer(t *testing.T, loader domain.VolumeLoader, root string) *httpadapter.Server {
	t.Helper()
	srv, err := httpadapter.NewServer(":0", &mockReadiness{}, &httpadapter.ExtractConfig{Loader: loader, Root: root}, slog.Default())
	require.NoError(t, err)
	return srv
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(t, fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestExtractNotServedWithoutLoader(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractNotServedWithoutRoot(t *testing.T) {
	srv := newExtractServer(t, cfradial.NewLoader(), "")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- extract ---

var testSite = domain.Site{Lat: -31.4412824015, Lon: -64.1919061484, Altitude: 484}

func writeVolume(t *testing.T) string {
	t.Helper()
	s := cfradial.UniformSweep(testSite, time.Date(2021, 6, 1, 18, 4, 31, 0, time.UTC), 360, 50, 0, 250, 0)
	s.AddField("INDEX", func(ray, gate int) float64 { return float64(ray*1000 + gate) })
	s.AddField("RHOHV", func(ray, gate int) float64 {
		if ray == 60 && gate == 11 {
			return 0.3
		}
		return 0.99
	})
	path := filepath.Join(t.TempDir(), "vol.nc")
	require.NoError(t, cfradial.WriteFile(path, s))
	return path
}

func pointJSON(label string, deg, m float64) string {
	a := deg * math.Pi / 180
	lon, lat := domain.Unproject(domain.LocalPoint{X: m * math.Sin(a), Y: m * math.Cos(a)}, testSite.Lon, testSite.Lat)
	return fmt.Sprintf(`{"label":%q,"lat":%v,"lon":%v}`, label, lat, lon)
}

func postExtract(t *testing.T, srv *httpadapter.Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body)))
	return rec
}

func TestExtract(t *testing.T) {
	path := writeVolume(t)
	srv := newExtractServer(t, cfradial.NewLoader(), filepath.Dir(path))

	body := fmt.Sprintf(`{"path":%q,"fields":["INDEX"],"points":[%s,%s],"mask":{"threshold":0.8}}`,
		path, pointJSON("gauge-a", 60, 10*250), pointJSON("gauge-far", 60, 400*250))
	rec := postExtract(t, srv, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.JSONEq(t, `"2021-06-01T18:04:31Z"`, string(res[domain.DateTimeKey]))

	var a struct {
		Windows []struct {
			Field  string          `json:"field"`
			Window [3][3]*float64 `json:"window"`
		} `json:"windows"`
	}
	require.NoError(t, json.Unmarshal(res["gauge-a"], &a))
	require.Len(t, a.Windows, 1)
	w := a.Windows[0].Window
	require.NotNil(t, w[1][1])
	assert.Equal(t, 60010.0, *w[1][1])
	assert.Nil(t, w[0][1], "gate 11 on ray 60 is masked")

	var far struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(res["gauge-far"], &far))
	assert.NotEmpty(t, far.Error)
}

func TestExtractPointMode(t *testing.T) {
	path := writeVolume(t)
	srv := newExtractServer(t, cfradial.NewLoader(), filepath.Dir(path))

	body := fmt.Sprintf(`{"path":"vol.nc","fields":["INDEX"],"points":[%s],"mode":"point"}`, pointJSON("g", 200, 5*250))
	rec := postExtract(t, srv, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":200005`)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context, string) (*domain.Volume, error) {
	return nil, errors.New("no such volume")
}

func TestExtractErrors(t *testing.T) {
	srv := newExtractServer(t, failingLoader{}, t.TempDir())
	point := pointJSON("g", 10, 1000)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed body", `{"path":`, http.StatusBadRequest},
		{"unknown key", `{"volume":"x"}`, http.StatusBadRequest},
		{"missing path", `{"fields":["DBZH"],"points":[` + point + `]}`, http.StatusBadRequest},
		{"missing fields", `{"path":"x","points":[` + point + `]}`, http.StatusBadRequest},
		{"missing points", `{"path":"x","fields":["DBZH"]}`, http.StatusBadRequest},
		{"bad mode", `{"path":"x","fields":["DBZH"],"points":[` + point + `],"mode":"cube"}`, http.StatusBadRequest},
		{"bad seam", `{"path":"x","fields":["DBZH"],"points":[` + point + `],"seam":"clamp"}`, http.StatusBadRequest},
		{"unloadable volume", `{"path":"x","fields":["DBZH"],"points":[` + point + `]}`, http.StatusUnprocessableEntity},
		{"parent escape", `{"path":"../x","fields":["DBZH"],"points":[` + point + `]}`, http.StatusForbidden},
		{"nested escape", `{"path":"a/../../x","fields":["DBZH"],"points":[` + point + `]}`, http.StatusForbidden},
		{"absolute outside root", `{"path":"/etc/passwd","fields":["DBZH"],"points":[` + point + `]}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postExtract(t, srv, tt.body)
			assert.Equal(t, tt.code, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

type recordingLoader struct {
	paths []string
}

func (l *recordingLoader) Load(_ context.Context, path string) (*domain.Volume, error) {
	l.paths = append(l.paths, path)
	return nil, errors.New("not loaded")
}

func TestExtractResolvesPathsUnderRoot(t *testing.T) {
	root := t.TempDir()
	loader := &recordingLoader{}
	srv := newExtractServer(t, loader, root)
	point := pointJSON("g", 10, 1000)

	for _, p := range []string{"vol.nc", "day/./vol.nc", filepath.Join(root, "abs.nc")} {
		rec := postExtract(t, srv, fmt.Sprintf(`{"path":%q,"fields":["DBZH"],"points":[%s]}`, p, point))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, p)
	}
	rec := postExtract(t, srv, fmt.Sprintf(`{"path":"../vol.nc","fields":["DBZH"],"points":[%s]}`, point))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, []string{
		filepath.Join(root, "vol.nc"),
		filepath.Join(root, "day", "vol.nc"),
		filepath.Join(root, "abs.nc"),
	}, loader.paths)
}
