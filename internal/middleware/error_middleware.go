package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/logger"
)

type errorMapping struct {
	errs    []error
	status  int
	code    dto.ErrorCode
	message string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{[]error{apperrors.ErrInvalidCredentials}, http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials, "Invalid email or password"},
	{[]error{apperrors.ErrTokenExpired}, http.StatusUnauthorized, dto.ErrorCodeExpiredToken, "Token expired"},
	{[]error{apperrors.ErrTokenInvalid, apperrors.ErrTokenRevoked}, http.StatusUnauthorized, dto.ErrorCodeInvalidToken, "Invalid token"},
	{[]error{apperrors.ErrTokenNotFound}, http.StatusUnauthorized, dto.ErrorCodeTokenNotFound, "Token not found"},
	{[]error{apperrors.ErrUnauthorized}, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "Authentication required"},
	{[]error{apperrors.ErrAccountDisabled}, http.StatusForbidden, dto.ErrorCodeAccountDisabled, "Account is disabled"},
	{[]error{apperrors.ErrPermissionDenied, apperrors.ErrNotTimetabled}, http.StatusForbidden, dto.ErrorCodeForbidden, "Permission denied"},
	{[]error{
		apperrors.ErrResourceNotFound, apperrors.ErrUserNotFound, apperrors.ErrStudentNotFound,
		apperrors.ErrDepartmentNotFound, apperrors.ErrCourseNotFound, apperrors.ErrClassNotFound,
		apperrors.ErrTimetableEntryNotFound, apperrors.ErrGradeNotFound, apperrors.ErrFeeNotFound,
	}, http.StatusNotFound, dto.ErrorCodeResourceNotFound, "Resource not found"},
	{[]error{
		apperrors.ErrEmailAlreadyExists, apperrors.ErrStudentNumberAlreadyExists, apperrors.ErrDepartmentAlreadyExists,
		apperrors.ErrCourseAlreadyExists, apperrors.ErrResourceAlreadyExists,
	}, http.StatusConflict, dto.ErrorCodeResourceAlreadyExists, "Resource already exists"},
	{[]error{
		apperrors.ErrConflict, apperrors.ErrTimetableClash, apperrors.ErrFeeSettled, apperrors.ErrFeeHasPayments,
		apperrors.ErrDepartmentHasRelations, apperrors.ErrCourseHasRelations, apperrors.ErrClassHasRelations,
	}, http.StatusConflict, dto.ErrorCodeConflict, "Conflict"},
	{[]error{
		apperrors.ErrValidationFailed, apperrors.ErrOverpayment, apperrors.ErrStudentNotInClass,
		apperrors.ErrInvalidEmail, apperrors.ErrInvalidPassword, apperrors.ErrInvalidStudentNumber,
	}, http.StatusBadRequest, dto.ErrorCodeValidationFailed, "Validation failed"},
	{[]error{apperrors.ErrBadRequest}, http.StatusBadRequest, dto.ErrorCodeInvalidRequest, "Bad request"},
	{[]error{apperrors.ErrRateLimited}, http.StatusTooManyRequests, dto.ErrorCodeRateLimited, "Too many requests"},
}

// StatusFor returns the HTTP status and error detail for err.
func StatusFor(err error) (int, *dto.ErrorDetail) {
	for _, m := range errorMappings {
		if apperrors.Is(err, m.errs[0], m.errs[1:]...) {
			msg := apperrors.Message(err)
			if msg == "" {
				msg = sentinelMessage(err, m.errs, m.message)
			}
			detail := dto.NewErrorDetail(m.code, msg)
			var ce *apperrors.CustomError
			if errors.As(err, &ce) && ce.Details != nil {
				detail.WithDetails(ce.Details)
			}
			return m.status, detail
		}
	}
	return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
}

// sentinelMessage uses the text of the matched sentinel, which is already
// user-facing, and falls back to the generic message.
func sentinelMessage(err error, errs []error, fallback string) string {
	for _, e := range errs {
		if errors.Is(err, e) {
			return capitalize(e.Error())
		}
	}
	return fallback
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// HandleAPIError writes the error envelope for err. Unmapped errors are
// logged and reported as 500 without leaking their text.
func HandleAPIError(c *gin.Context, err error) {
	status, detail := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("requestID", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Unhandled error")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(detail))
}
