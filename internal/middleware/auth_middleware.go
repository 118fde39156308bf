package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/auth"
)

// Context keys set by JWTAuth.
const (
	ContextUserID       = "userID"
	ContextEmail        = "email"
	ContextRole         = "roleType"
	ContextDepartmentID = "departmentID"
)

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

func abortUnauthorized(c *gin.Context, code dto.ErrorCode, details string) {
	detail := dto.NewErrorDetail(code, "Authentication required").WithDetails(details)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(detail))
}

// JWTAuth validates the bearer token and stores the caller in the context.
// Browsers cannot set headers on WebSocket upgrades, so a "token" query
// parameter is accepted as well.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string
		if header := c.GetHeader("Authorization"); header != "" {
			t, err := auth.ExtractBearerToken(header)
			if err != nil {
				abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token format")
				return
			}
			tokenString = t
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authorization header missing")
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, apperrors.ErrTokenExpired) {
				abortUnauthorized(c, dto.ErrorCodeExpiredToken, "Token has expired")
				return
			}
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		if claims.DepartmentID != nil {
			c.Set(ContextDepartmentID, *claims.DepartmentID)
		}
		c.Next()
	}
}

// RoleRequired allows the request through when the caller has one of roles.
func (m *AuthMiddleware) RoleRequired(roles ...models.RoleType) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "User role not found")
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		detail := dto.NewErrorDetail(dto.ErrorCodeForbidden, "Access denied").
			WithDetails("You don't have sufficient permissions for this operation")
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(detail))
	}
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// GetRole returns the authenticated user's role.
func GetRole(c *gin.Context) (models.RoleType, bool) {
	v, ok := c.Get(ContextRole)
	if !ok {
		return "", false
	}
	role, ok := v.(models.RoleType)
	return role, ok
}

// CurrentActor describes the caller for services and the activity log. It
// returns nil for anonymous requests.
func CurrentActor(c *gin.Context) *models.Actor {
	id, ok := GetUserID(c)
	if !ok {
		return nil
	}
	role, _ := GetRole(c)
	actor := &models.Actor{
		UserID:    id,
		Role:      role,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if v, ok := c.Get(ContextDepartmentID); ok {
		if dept, ok := v.(int64); ok {
			actor.DepartmentID = &dept
		}
	}
	return actor
}

// RequestOrigin is an actor carrying only the client address, for
// unauthenticated endpoints such as login.
func RequestOrigin(c *gin.Context) *models.Actor {
	return &models.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
