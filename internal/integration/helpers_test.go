//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/storm-radar-extract/internal/adapter/cfradial"
	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

var (
	testSite       = domain.Site{Lat: -31.4412824015, Lon: -64.1919061484, Altitude: 484}
	testVolumeTime = time.Date(2021, 6, 1, 18, 4, 31, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("storm-radar-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// writeVolume writes a sweep whose INDEX field is ray*1000+gate.
func writeVolume(t *testing.T, name string) string {
	t.Helper()
	s := cfradial.UniformSweep(testSite, testVolumeTime, 360, 120, 0, 250, 0.5)
	s.AddField("INDEX", func(ray, gate int) float64 { return float64(ray*1000 + gate) })
	s.AddField("RHOHV", func(int, int) float64 { return 0.97 })
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, cfradial.WriteFile(path, s))
	return path
}

// pointAt returns a station at bearing deg and ground distance m from the test site.
func pointAt(label string, deg, m float64) domain.Point {
	a := deg * math.Pi / 180
	lon, lat := domain.Unproject(domain.LocalPoint{X: m * math.Sin(a), Y: m * math.Cos(a)}, testSite.Lon, testSite.Lat)
	return domain.Point{Label: label, Lat: lat, Lon: lon}
}
