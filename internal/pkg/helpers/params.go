package helpers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smis-school/smis/internal/app/models/dto"
)

// ParseIDParam reads a positive int64 path parameter. On failure it writes a
// 400 response and returns false.
func ParseIDParam(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		detail := dto.NewErrorDetail(dto.ErrorCodeInvalidRequest, "Invalid "+name+" parameter").
			WithField(name).
			WithDetails("must be a positive integer, got " + strconv.Quote(raw))
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(detail))
		return 0, false
	}
	return id, true
}

// QueryInt64 reads an optional positive int64 query parameter.
func QueryInt64(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
