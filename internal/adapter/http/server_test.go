package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/noise-telemetry-service/internal/adapter/http"
	"github.com/couchcryptid/noise-telemetry-service/internal/adapter/memory"
	"github.com/couchcryptid/noise-telemetry-service/internal/domain"
	"github.com/couchcryptid/noise-telemetry-service/internal/fleet"
	"github.com/couchcryptid/noise-telemetry-service/internal/observability"
	"github.com/couchcryptid/noise-telemetry-service/internal/producer"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

var noon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *producer.Service {
	t.Helper()
	f, err := fleet.New(
		[]domain.MonitoringPoint{{ID: "p-1", RegionType: domain.RegionResidential, DayThreshold: 55, NightThreshold: 45}},
		[]domain.Sensor{
			{ID: "s-1", PointID: "p-1", Status: domain.StatusOnline},
			{ID: "s-2", PointID: "p-1", Status: domain.StatusOnline},
		},
	)
	require.NoError(t, err)

	svc := producer.NewService(memory.NewSink(f), domain.NewSynthesizer(domain.DefaultProfile(), domain.NewRand(3)), producer.Options{
		Location: time.UTC,
		Clock:    clockwork.NewFakeClockAt(noon),
	}, slog.Default(), observability.NewMetricsForTesting())
	t.Cleanup(func() { svc.Stop(context.Background()) })
	return svc
}

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	return httpadapter.NewServer(":0", newTestService(t), &mockReadiness{err: readyErr}, slog.Default())
}

func do(srv http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(newTestServer(t, errors.New("sink not reachable")), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(t, nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRealtimeLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	body := decodeStatus(t, do(srv, http.MethodGet, "/api/realtime/status"))
	assert.Equal(t, false, body["running"])
	assert.InDelta(t, 2.0, body["active_sensor_count"], 1e-9)
	assert.InDelta(t, 30.0, body["tick_interval_seconds"], 1e-9)

	body = decodeStatus(t, do(srv, http.MethodPost, "/api/realtime/start"))
	assert.Equal(t, true, body["running"])

	body = decodeStatus(t, do(srv, http.MethodPost, "/api/realtime/start"))
	assert.Equal(t, true, body["running"], "start is idempotent")

	body = decodeStatus(t, do(srv, http.MethodPost, "/api/realtime/stop"))
	assert.Equal(t, false, body["running"])
}

func TestRealtimeRejectsWrongMethod(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(srv, http.MethodGet, "/api/realtime/start")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRealtimeStreamSendsEvents(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, nil))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/realtime/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var payload string
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			payload = data
			break
		}
	}
	require.NotEmpty(t, payload, "expected one event")

	var batch producer.Batch
	require.NoError(t, json.Unmarshal([]byte(payload), &batch))
	assert.True(t, batch.At.Equal(noon))
	assert.Equal(t, 2, batch.Sensors)
	require.Len(t, batch.Results, 2)
	for _, r := range batch.Results {
		assert.NotEmpty(t, r.Reading.ID)
		assert.NotEmpty(t, r.Grade)
	}
}

func TestShutdownEndsOpenStreams(t *testing.T) {
	srv := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/realtime/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "), "first line %q", line)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, <-served, http.ErrServerClosed)

	// The stream was closed by the server, not by the client.
	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}
