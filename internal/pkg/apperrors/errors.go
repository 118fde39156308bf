package apperrors

import "errors"

// Common errors
var (
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUnauthorized       = errors.New("authentication required")

	ErrPermissionDenied = errors.New("permission denied")

	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrBadRequest       = errors.New("bad request")

	ErrRateLimited = errors.New("too many requests")
)

// User errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// Student errors
var (
	ErrStudentNotFound            = errors.New("student not found")
	ErrStudentNumberAlreadyExists = errors.New("student number already exists")
	ErrInvalidStudentNumber       = errors.New("invalid student number format")
)

// Department errors
var (
	ErrDepartmentNotFound      = errors.New("department not found")
	ErrDepartmentAlreadyExists = errors.New("department with this name or code already exists")
	ErrDepartmentHasRelations  = errors.New("department has associated data and cannot be deleted")
)

// Academic errors
var (
	ErrCourseNotFound         = errors.New("course not found")
	ErrCourseAlreadyExists    = errors.New("course with this code already exists")
	ErrCourseHasRelations     = errors.New("course has timetable or grade records and cannot be deleted")
	ErrClassNotFound          = errors.New("class not found")
	ErrClassHasRelations      = errors.New("class has timetable or attendance records and cannot be deleted")
	ErrTimetableEntryNotFound = errors.New("timetable entry not found")
	ErrTimetableClash         = errors.New("timetable slot overlaps an existing entry")
	ErrGradeNotFound          = errors.New("grade not found")
	ErrNotTimetabled          = errors.New("teacher is not timetabled for this class or course")
	ErrStudentNotInClass      = errors.New("student is not on the class roster")
)

// Finance errors
var (
	ErrFeeNotFound    = errors.New("fee not found")
	ErrOverpayment    = errors.New("payment exceeds outstanding balance")
	ErrFeeSettled     = errors.New("fee is already paid in full")
	ErrFeeHasPayments = errors.New("fee has recorded payments and cannot be deleted")
)

// NewResourceNotFoundError creates a not-found error carrying a message.
func NewResourceNotFoundError(message string) error {
	return &CustomError{Err: ErrResourceNotFound, Message: message}
}

// NewConflictError creates a conflict error carrying a message.
func NewConflictError(message string) error {
	return &CustomError{Err: ErrConflict, Message: message}
}

// NewForbiddenError creates a permission-denied error carrying a message.
func NewForbiddenError(message string) error {
	return &CustomError{Err: ErrPermissionDenied, Message: message}
}

// NewBadRequestError creates a bad-request error carrying a message.
func NewBadRequestError(message string) error {
	return &CustomError{Err: ErrBadRequest, Message: message}
}

// NewValidationError creates a validation error carrying a message.
func NewValidationError(message string) error {
	return &CustomError{Err: ErrValidationFailed, Message: message}
}

// Is reports whether err matches target or any of errList.
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Message returns the user-facing message of a CustomError in the chain,
// or an empty string.
func Message(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return ""
}

// CustomError wraps a sentinel with a message and optional details.
type CustomError struct {
	Err     error
	Message string
	Code    string
	Details map[string]interface{}
}

func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError around err.
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{Err: err, Message: message}
}

// WithDetails attaches context details to the error.
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// WithCode attaches an error code.
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}
