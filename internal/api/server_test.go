package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kgroner/enisyncd/internal/log"
	"github.com/kgroner/enisyncd/internal/metrics"
	"github.com/kgroner/enisyncd/internal/reconcile"
)

func TestMain(m *testing.M) {
	log.DisableLogs()
	m.Run()
}

type fakeSource struct {
	report *reconcile.Report
}

func (s *fakeSource) LastReport() *reconcile.Report { return s.report }

type fakeSyncer struct {
	triggered int
}

func (s *fakeSyncer) Trigger() { s.triggered++ }

func testReport() *reconcile.Report {
	retryAt := time.Unix(1700000030, 0).UTC()
	return &reconcile.Report{
		StartedAt: time.Unix(1700000000, 0).UTC(),
		Duration:  25 * time.Millisecond,
		Interfaces: []reconcile.InterfaceReport{
			{ID: "eth1", Table: 10001, Status: "Converged", Applied: 3},
			{ID: "eth2", Table: 10002, Status: "Failing", Failures: 2, Detail: "permission denied", RetryAt: &retryAt},
			{ID: "eth3", Table: 10003, Status: "Pending", Detail: "link not present in kernel"},
		},
	}
}

func newTestServer(source *fakeSource, syncer *fakeSyncer) *Server {
	return NewServer("127.0.0.1:0", source, syncer, metrics.New().Registry())
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusBeforeFirstPass(t *testing.T) {
	s := newTestServer(&fakeSource{}, &fakeSyncer{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/interfaces")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(&fakeSource{report: testReport()}, &fakeSyncer{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Converged)
	require.Equal(t, 1, resp.Pending)
	require.Equal(t, 1, resp.Failing)
	require.Equal(t, "25ms", resp.Duration)
	require.Empty(t, resp.Error)
}

func TestGetInterfaces(t *testing.T) {
	s := newTestServer(&fakeSource{report: testReport()}, &fakeSyncer{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/interfaces")
	require.Equal(t, http.StatusOK, rec.Code)

	var interfaces []reconcile.InterfaceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &interfaces))
	require.Len(t, interfaces, 3)
	require.Equal(t, "eth1", interfaces[0].ID)
	require.Equal(t, 10001, interfaces[0].Table)
	require.Equal(t, "permission denied", interfaces[1].Detail)

	// retry_at appears only on interfaces with a pending retry; healthy
	// interfaces must not serialize a zero timestamp.
	require.Contains(t, rec.Body.String(), `"retry_at":"2023-11-14T22:13:50Z"`)
	require.NotContains(t, rec.Body.String(), "0001-01-01")
}

func TestTriggerSync(t *testing.T) {
	syncer := &fakeSyncer{}
	s := newTestServer(&fakeSource{report: testReport()}, syncer)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sync")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, syncer.triggered)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&fakeSource{}, &fakeSyncer{})

	rec := doRequest(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "enisyncd_pass_duration_seconds")
}
