package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
)

func authRouter(m *AuthMiddleware, roles ...models.RoleType) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{m.JWTAuth()}
	if len(roles) > 0 {
		handlers = append(handlers, m.RoleRequired(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		actor := CurrentActor(c)
		c.JSON(http.StatusOK, gin.H{"userId": actor.UserID, "role": actor.Role, "dept": actor.DepartmentID})
	})
	r.GET("/me", handlers...)
	return r
}

func TestJWTAuth(t *testing.T) {
	jwt := newJWT()
	m := NewAuthMiddleware(jwt)
	dept := int64(3)
	token := tokenFor(t, jwt, &models.User{ID: 7, Email: "hod@smis.local", RoleType: models.RoleHOD, DepartmentID: &dept})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		code   dto.ErrorCode
	}{
		{name: "valid bearer", header: "Bearer " + token, status: http.StatusOK},
		{name: "query token", query: "?token=" + token, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized, code: dto.ErrorCodeUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, code: dto.ErrorCodeInvalidToken},
		{name: "garbage token", header: "Bearer not-a-jwt", status: http.StatusUnauthorized, code: dto.ErrorCodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(authRouter(m), req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				env := decode(t, w)
				assert.False(t, env.Success)
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				return
			}
			assert.JSONEq(t, `{"userId":7,"role":"HOD","dept":3}`, w.Body.String())
		})
	}
}

func TestRoleRequired(t *testing.T) {
	jwt := newJWT()
	m := NewAuthMiddleware(jwt)
	student := tokenFor(t, jwt, &models.User{ID: 2, Email: "s@smis.local", RoleType: models.RoleStudent})
	finance := tokenFor(t, jwt, &models.User{ID: 3, Email: "f@smis.local", RoleType: models.RoleFinance})

	r := authRouter(m, models.RoleFinance, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+student)
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrorCodeForbidden, decode(t, w).Error.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+finance)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCurrentActor_Anonymous(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, CurrentActor(c))

	origin := RequestOrigin(c)
	assert.Equal(t, int64(0), origin.UserID)
	assert.NotEmpty(t, origin.IPAddress)
}
