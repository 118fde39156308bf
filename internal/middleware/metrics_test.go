package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/smis-school/smis/internal/pkg/metrics"
)

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	m := metrics.New(false)
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/students/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/students/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/students/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `smis_http_requests_total{method="GET",path="/students/:id",status="200"} 2`)
	assert.Contains(t, body, `smis_http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.Contains(t, body, `smis_http_inflight_requests 0`)
}
