package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/models/dto"
)

// BindJSON binds and validates the request body into obj. On failure it
// writes a 400 envelope listing the failed fields and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters into obj.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return false
	}
	return true
}

// AbortBadRequest writes a 400 envelope with message.
func AbortBadRequest(c *gin.Context, message string) {
	detail := dto.NewErrorDetail(dto.ErrorCodeInvalidRequest, message)
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(detail))
}
