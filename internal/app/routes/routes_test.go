package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/auth"
)

func newRouter(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt := auth.NewJWTService(auth.JWTConfig{SecretKey: "routes", AccessTokenExp: time.Hour, TokenIssuer: "smis"})
	r := gin.New()
	// Handlers are never reached in these tests; the auth layer answers first.
	SetupRouter(r, Controllers{}, middleware.NewAuthMiddleware(jwt), Limits{})
	return r, jwt
}

func bearer(t *testing.T, jwt *auth.JWTService, role models.RoleType) string {
	t.Helper()
	pair, err := jwt.GenerateTokenPair(&models.User{ID: 1, Email: "u@smis.local", RoleType: role})
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func TestRoleGuards(t *testing.T) {
	r, jwt := newRouter(t)

	tests := []struct {
		method string
		path   string
		role   models.RoleType
		status int
	}{
		{http.MethodGet, "/api/students/grades", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/students/grades", models.RoleTeacher, http.StatusForbidden},
		{http.MethodPost, "/api/teachers/attendance", models.RoleStudent, http.StatusForbidden},
		{http.MethodGet, "/api/hod/dashboard", models.RoleTeacher, http.StatusForbidden},
		{http.MethodPost, "/api/finance/fees/1/payments", models.RoleHOD, http.StatusForbidden},
		{http.MethodPost, "/api/admin/cache/flush", models.RoleFinance, http.StatusForbidden},
		{http.MethodGet, "/api/activities", models.RoleStudent, http.StatusForbidden},
		{http.MethodGet, "/api/activities/stream", models.RoleHOD, http.StatusForbidden},
		{http.MethodGet, "/api/activities/stream", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path+" as "+string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("Authorization", bearer(t, jwt, tt.role))
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRoutesRegistered(t *testing.T) {
	r, _ := newRouter(t)

	have := make(map[string]bool)
	for _, ri := range r.Routes() {
		have[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"POST /api/auth/login",
		"GET /api/students/dashboard",
		"POST /api/teachers/grades",
		"POST /api/hod/timetable",
		"GET /api/finance/fees/export",
		"PATCH /api/admin/users/:id/status",
		"PUT /api/admin/classes/:id/roster",
		"GET /api/activities/entity/:type/:id",
		"GET /health",
	} {
		assert.True(t, have[want], want)
	}
}
