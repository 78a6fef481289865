package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveExecution(t *testing.T) {
	m := New()

	m.ObserveExecution("ok", 20*time.Millisecond, 2)
	m.ObserveExecution("ok", 10*time.Millisecond, 0)
	m.ObserveExecution("error", time.Second, 256)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Executions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Executions.WithLabelValues("abort")))

	count, err := testutil.GatherAndCount(m.Registry(), "mongo_shell_mcp_drain_redraws")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRestartsAndSpawnFailures(t *testing.T) {
	m := New()

	m.ObserveRestart("timeout")
	m.ObserveRestart("timeout")
	m.ObserveRestart("abort")
	m.ObserveSpawnFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Restarts.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Restarts.WithLabelValues("abort")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpawnFailures))
}

func TestSetRunning(t *testing.T) {
	m := New()

	m.SetRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShellRunning))
	m.SetRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ShellRunning))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveExecution("ok", time.Second, 1)
		m.ObserveRestart("x")
		m.ObserveSpawnFailure()
		m.SetRunning(true)
		m.ObserveNormalized("single")
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveNormalized("lines")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `mongo_shell_mcp_normalized_results_total{kind="lines"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveRestart("x")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Restarts.WithLabelValues("x")))
}
