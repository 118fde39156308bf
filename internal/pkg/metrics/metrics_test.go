package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := New(false)
	m.ObserveRequest("GET", "/api/hod/courses", "200", 20*time.Millisecond)
	m.ObserveRequest("GET", "/api/hod/courses", "200", 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/hod/courses", "200")))
}

func TestObserveJob(t *testing.T) {
	m := New(false)
	m.ObserveJob("overdue-fees", time.Second, nil)
	m.ObserveJob("overdue-fees", time.Second, errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("overdue-fees", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("overdue-fees", "false")))
}

func TestHandler(t *testing.T) {
	m := New(false)
	m.RequestStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smis_http_inflight_requests 1")
}
