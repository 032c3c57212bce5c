package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.Rotations.Inc()
	m.WindowWrites.WithLabelValues("ok").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rotations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WindowWrites.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "daq_rotations_total 1")
	assert.Contains(t, rec.Body.String(), `daq_window_writes_total{result="ok"} 2`)
}

func TestInstancesDoNotShareRegistry(t *testing.T) {
	a, b := New(), New()
	a.Overruns.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Overruns))
}
