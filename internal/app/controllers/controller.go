// Package controllers handles HTTP request handling
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/middleware"
)

// requireActor returns the authenticated caller or writes a 401.
func requireActor(ctx *gin.Context) (*models.Actor, bool) {
	actor := middleware.CurrentActor(ctx)
	if actor == nil {
		detail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(detail))
		return nil, false
	}
	return actor, true
}

func ok(ctx *gin.Context, data interface{}, message string) {
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(data, message))
}

func created(ctx *gin.Context, data interface{}, message string) {
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(data, message))
}
