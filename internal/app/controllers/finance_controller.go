package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/helpers"
	"github.com/smis-school/smis/internal/pkg/report"
)

// FinanceController manages fees and payments.
type FinanceController struct {
	financeService services.FinanceService
	logger         zerolog.Logger
}

func NewFinanceController(financeService services.FinanceService, logger zerolog.Logger) *FinanceController {
	return &FinanceController{financeService: financeService, logger: logger}
}

// feeFilter reads status, studentId and term from the query string.
func feeFilter(ctx *gin.Context) (models.FeeFilter, bool) {
	filter := models.FeeFilter{
		Status: models.FeeStatus(strings.ToUpper(ctx.Query("status"))),
		Term:   ctx.Query("term"),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		middleware.AbortBadRequest(ctx, "status must be one of PENDING PARTIAL PAID OVERDUE")
		return filter, false
	}
	if raw := ctx.Query("studentId"); raw != "" {
		id, found := helpers.QueryInt64(ctx, "studentId")
		if !found {
			middleware.AbortBadRequest(ctx, "studentId must be a positive integer")
			return filter, false
		}
		filter.StudentID = id
	}
	due, err := helpers.ParseOptionalDate(ctx.Query("dueBefore"))
	if err != nil {
		middleware.AbortBadRequest(ctx, err.Error())
		return filter, false
	}
	filter.DueBefore = due
	return filter, true
}

// Dashboard godoc
// @Summary Finance dashboard
// @Description Totals billed, collected, outstanding and overdue
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.FinanceDashboard}
// @Router /finance/dashboard [get]
func (c *FinanceController) Dashboard(ctx *gin.Context) {
	dash, err := c.financeService.Dashboard(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, dash, "")
}

// ListFees godoc
// @Summary List fees
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, PARTIAL, PAID or OVERDUE"
// @Param studentId query int false "Student ID"
// @Param term query string false "Term"
// @Param dueBefore query string false "Due on or before (YYYY-MM-DD)"
// @Param page query int false "Page" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Router /finance/fees [get]
func (c *FinanceController) ListFees(ctx *gin.Context) {
	filter, valid := feeFilter(ctx)
	if !valid {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)
	result, err := c.financeService.ListFees(ctx.Request.Context(), filter, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, result, "")
}

// CreateFee godoc
// @Summary Bill a student
// @Tags finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateFeeRequest true "Fee"
// @Success 201 {object} dto.APIResponse{data=models.Fee}
// @Failure 404 {object} dto.APIResponse "Student not found"
// @Router /finance/fees [post]
func (c *FinanceController) CreateFee(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.CreateFeeRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	fee, err := c.financeService.CreateFee(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, fee, "Fee created")
}

// GetFee godoc
// @Summary Get a fee
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee ID"
// @Success 200 {object} dto.APIResponse{data=models.Fee}
// @Failure 404 {object} dto.APIResponse "Fee not found"
// @Router /finance/fees/{id} [get]
func (c *FinanceController) GetFee(ctx *gin.Context) {
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	fee, err := c.financeService.GetFee(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, fee, "")
}

// UpdateFee godoc
// @Summary Amend a fee
// @Tags finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee ID"
// @Param request body dto.UpdateFeeRequest true "Changes"
// @Success 200 {object} dto.APIResponse{data=models.Fee}
// @Failure 400 {object} dto.APIResponse "Amount below what has been paid"
// @Router /finance/fees/{id} [put]
func (c *FinanceController) UpdateFee(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.UpdateFeeRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	fee, err := c.financeService.UpdateFee(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, fee, "Fee updated")
}

// DeleteFee godoc
// @Summary Delete a fee
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee ID"
// @Success 200 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Fee has payments"
// @Router /finance/fees/{id} [delete]
func (c *FinanceController) DeleteFee(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	if err := c.financeService.DeleteFee(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, nil, "Fee deleted")
}

// RecordPayment godoc
// @Summary Record a payment
// @Description Applies an instalment under a row lock; the fee status follows the new balance
// @Tags finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee ID"
// @Param request body dto.RecordPaymentRequest true "Payment"
// @Success 201 {object} dto.APIResponse{data=dto.PaymentResult}
// @Failure 400 {object} dto.APIResponse "Payment exceeds the outstanding balance"
// @Failure 409 {object} dto.APIResponse "Fee already settled"
// @Router /finance/fees/{id}/payments [post]
func (c *FinanceController) RecordPayment(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.RecordPaymentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	result, err := c.financeService.RecordPayment(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	c.logger.Info().
		Int64("feeID", id).
		Float64("amount", req.Amount).
		Str("status", string(result.Fee.Status)).
		Msg("Payment recorded")
	created(ctx, result, "Payment recorded")
}

// ListPayments godoc
// @Summary Payments against a fee
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee ID"
// @Success 200 {object} dto.APIResponse{data=[]models.FeePayment}
// @Router /finance/fees/{id}/payments [get]
func (c *FinanceController) ListPayments(ctx *gin.Context) {
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	payments, err := c.financeService.ListPayments(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, payments, "")
}

// ExportFees godoc
// @Summary Export fees as a spreadsheet
// @Tags finance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param status query string false "Fee status"
// @Param studentId query int false "Student ID"
// @Param term query string false "Term"
// @Success 200 {file} file
// @Router /finance/fees/export [get]
func (c *FinanceController) ExportFees(ctx *gin.Context) {
	filter, valid := feeFilter(ctx)
	if !valid {
		return
	}
	// Buffer so a failure still produces a JSON error instead of a truncated file.
	var buf bytes.Buffer
	if err := c.financeService.ExportFees(ctx.Request.Context(), filter, &buf); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	filename := fmt.Sprintf("fees-%s.xlsx", time.Now().UTC().Format("20060102"))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Data(http.StatusOK, report.ContentTypeXLSX, buf.Bytes())
}

// Summary godoc
// @Summary Finance summary report
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Param term query string false "Term"
// @Success 200 {object} dto.APIResponse{data=dto.FinanceSummaryResponse}
// @Router /finance/reports/summary [get]
func (c *FinanceController) Summary(ctx *gin.Context) {
	summary, err := c.financeService.Summary(ctx.Request.Context(), ctx.Query("term"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, summary, "")
}
