package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/scheduler"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	alert := &engine.Alert{Priority: engine.PriorityLow}
	require.NoError(t, r.TransitionCommitted(engine.Commit{
		Transition: engine.Transition{From: engine.StatusInProgress, To: engine.StatusClean, Cause: engine.CauseDetectionPassed},
		Alert:      alert,
	}))
	require.NoError(t, r.TransitionCommitted(engine.Commit{
		Transition: engine.Transition{From: engine.StatusDirty, To: engine.StatusInProgress, Cause: engine.CauseStart},
	}))
	require.NoError(t, r.AlertsRead([]string{"a", "b"}))
	r.ObserveScan(scheduler.Report{Findings: 3, Applied: 2, Errors: 1})
	r.ObserveIngest("observed")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("IN_PROGRESS", "CLEAN", "detection_passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alerts.WithLabelValues("LOW")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.alertsRead))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.scanFindings))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scanApplied))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ingestResults.WithLabelValues("observed")))
}

func TestRecorder_BoundGaugesAndHandler(t *testing.T) {
	r := New()
	eng, err := engine.New(engine.WithListener(r))
	require.NoError(t, err)
	r.Bind(eng)
	r.Bind(eng)

	_, err = eng.Provision(engine.ProvisionRequest{ID: "seat-1", Name: "Seat 1"})
	require.NoError(t, err)
	_, err = eng.Provision(engine.ProvisionRequest{ID: "seat-2", Name: "Seat 2"})
	require.NoError(t, err)
	_, err = eng.StartCleaning("seat-1", "a")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `sanitization_stations{status="DIRTY"} 1`), body)
	assert.True(t, strings.Contains(body, `sanitization_stations{status="IN_PROGRESS"} 1`), body)
	assert.True(t, strings.Contains(body, `sanitization_alerts_unread 0`), body)
	assert.True(t, strings.Contains(body, `sanitization_delivery_failures_total 0`), body)
	assert.True(t, strings.Contains(body, `sanitization_transitions_total{cause="start",from="DIRTY",to="IN_PROGRESS"} 1`), body)
}
