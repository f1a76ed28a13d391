// ABOUTME: Tests for the Prometheus collectors and HTTP middleware
// ABOUTME: Uses isolated registries and client_golang testutil helpers

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mlra/internal/settings"
)

var _ settings.Observer = (*SettingsObserver)(nil)

func TestSettingsObserver(t *testing.T) {
	m := New(false)
	obs := NewSettingsObserver(m)

	obs.SettingsChanged(settings.ReasonPatch)
	obs.SettingsChanged(settings.ReasonPatch)
	obs.SettingsChanged(settings.ReasonReset)
	obs.PersistFailed(settings.OpSave, errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SettingsChanges.WithLabelValues(settings.ReasonPatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingsChanges.WithLabelValues(settings.ReasonReset)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues(settings.OpSave)))
}

func TestSettingsObserver_ThroughStore(t *testing.T) {
	m := New(false)
	p := settings.NewMemoryPersister(nil)
	p.SaveErr = errors.New("read-only")

	s := settings.New(t.Context(), p, settings.WithObserver(NewSettingsObserver(m)))
	s.Reset()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingsChanges.WithLabelValues(settings.ReasonInit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingsChanges.WithLabelValues(settings.ReasonReset)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues(settings.OpSave)))
}

func TestObserveBackend(t *testing.T) {
	m := New(false)
	start := time.Now().Add(-time.Second)

	m.ObserveBackend("ingest", start, nil)
	m.ObserveBackend("ingest", start, errors.New("boom"))
	m.ObserveBackend("result", start, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("ingest", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("ingest", OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.BackendDuration))
}

func TestMiddleware_CountsByPattern(t *testing.T) {
	m := New(false)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/experiments/{task_id}/result", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	h := m.Middleware(mux)

	for _, path := range []string{"/api/experiments/a/result", "/api/experiments/b/result", "/health", "/nope"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET /api/experiments/{task_id}/result", "502")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET /health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "404")))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New(true)
	m.IngestDuplicates.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "mlra_ingest_duplicates_total 1"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(false), New(false)
	a.IngestDuplicates.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.IngestDuplicates))
}
