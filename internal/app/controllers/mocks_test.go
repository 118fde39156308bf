package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterGinRules(); err != nil {
		panic(err)
	}
}

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	Error   *dto.ErrorDetail `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// asUser stands in for JWTAuth.
func asUser(id int64, role models.RoleType) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextRole, role)
		c.Next()
	}
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Login(ctx context.Context, req *dto.LoginRequest, origin *models.Actor) (*dto.TokenResponse, error) {
	args := m.Called(ctx, req, origin)
	resp, _ := args.Get(0).(*dto.TokenResponse)
	return resp, args.Error(1)
}

func (m *mockAuthService) RegisterStudent(ctx context.Context, req *dto.RegisterRequest, origin *models.Actor) (*dto.UserResponse, error) {
	args := m.Called(ctx, req, origin)
	resp, _ := args.Get(0).(*dto.UserResponse)
	return resp, args.Error(1)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	args := m.Called(ctx, refreshToken)
	resp, _ := args.Get(0).(*dto.TokenResponse)
	return resp, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, actor *models.Actor, refreshToken string) error {
	return m.Called(ctx, actor, refreshToken).Error(0)
}

func (m *mockAuthService) Me(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	args := m.Called(ctx, userID)
	resp, _ := args.Get(0).(*dto.UserResponse)
	return resp, args.Error(1)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, actor *models.Actor, req *dto.ChangePasswordRequest) error {
	return m.Called(ctx, actor, req).Error(0)
}

type mockFinanceService struct{ mock.Mock }

func (m *mockFinanceService) Dashboard(ctx context.Context) (*dto.FinanceDashboard, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*dto.FinanceDashboard)
	return resp, args.Error(1)
}

func (m *mockFinanceService) ListFees(ctx context.Context, filter models.FeeFilter, page, size int) (*dto.PaginatedResponse, error) {
	args := m.Called(ctx, filter, page, size)
	resp, _ := args.Get(0).(*dto.PaginatedResponse)
	return resp, args.Error(1)
}

func (m *mockFinanceService) CreateFee(ctx context.Context, actor *models.Actor, req *dto.CreateFeeRequest) (*models.Fee, error) {
	args := m.Called(ctx, actor, req)
	resp, _ := args.Get(0).(*models.Fee)
	return resp, args.Error(1)
}

func (m *mockFinanceService) GetFee(ctx context.Context, id int64) (*models.Fee, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*models.Fee)
	return resp, args.Error(1)
}

func (m *mockFinanceService) UpdateFee(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateFeeRequest) (*models.Fee, error) {
	args := m.Called(ctx, actor, id, req)
	resp, _ := args.Get(0).(*models.Fee)
	return resp, args.Error(1)
}

func (m *mockFinanceService) DeleteFee(ctx context.Context, actor *models.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockFinanceService) RecordPayment(ctx context.Context, actor *models.Actor, feeID int64, req *dto.RecordPaymentRequest) (*dto.PaymentResult, error) {
	args := m.Called(ctx, actor, feeID, req)
	resp, _ := args.Get(0).(*dto.PaymentResult)
	return resp, args.Error(1)
}

func (m *mockFinanceService) ListPayments(ctx context.Context, feeID int64) ([]models.FeePayment, error) {
	args := m.Called(ctx, feeID)
	resp, _ := args.Get(0).([]models.FeePayment)
	return resp, args.Error(1)
}

func (m *mockFinanceService) ExportFees(ctx context.Context, filter models.FeeFilter, w io.Writer) error {
	args := m.Called(ctx, filter, w)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("PK-fake-xlsx"))
	}
	return args.Error(0)
}

func (m *mockFinanceService) Summary(ctx context.Context, term string) (*dto.FinanceSummaryResponse, error) {
	args := m.Called(ctx, term)
	resp, _ := args.Get(0).(*dto.FinanceSummaryResponse)
	return resp, args.Error(1)
}

func (m *mockFinanceService) MarkOverdue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFinanceService) SendReminders(ctx context.Context, daysAhead int) (int, error) {
	args := m.Called(ctx, daysAhead)
	return args.Int(0), args.Error(1)
}

type mockTeacherService struct{ mock.Mock }

func (m *mockTeacherService) Dashboard(ctx context.Context, teacherID int64) (*dto.TeacherDashboard, error) {
	args := m.Called(ctx, teacherID)
	resp, _ := args.Get(0).(*dto.TeacherDashboard)
	return resp, args.Error(1)
}

func (m *mockTeacherService) Classes(ctx context.Context, teacherID int64) ([]models.Class, error) {
	args := m.Called(ctx, teacherID)
	resp, _ := args.Get(0).([]models.Class)
	return resp, args.Error(1)
}

func (m *mockTeacherService) ClassStudents(ctx context.Context, teacherID, classID int64) ([]models.Student, error) {
	args := m.Called(ctx, teacherID, classID)
	resp, _ := args.Get(0).([]models.Student)
	return resp, args.Error(1)
}

func (m *mockTeacherService) Timetable(ctx context.Context, teacherID int64) ([]models.TimetableEntry, error) {
	args := m.Called(ctx, teacherID)
	resp, _ := args.Get(0).([]models.TimetableEntry)
	return resp, args.Error(1)
}

func (m *mockTeacherService) MarkAttendance(ctx context.Context, actor *models.Actor, req *dto.BulkAttendanceRequest) ([]models.AttendanceRecord, error) {
	args := m.Called(ctx, actor, req)
	resp, _ := args.Get(0).([]models.AttendanceRecord)
	return resp, args.Error(1)
}

func (m *mockTeacherService) ListAttendance(ctx context.Context, teacherID, classID int64, date *time.Time) ([]models.AttendanceRecord, error) {
	args := m.Called(ctx, teacherID, classID, date)
	resp, _ := args.Get(0).([]models.AttendanceRecord)
	return resp, args.Error(1)
}

func (m *mockTeacherService) CreateGrade(ctx context.Context, actor *models.Actor, req *dto.CreateGradeRequest) (*models.Grade, error) {
	args := m.Called(ctx, actor, req)
	resp, _ := args.Get(0).(*models.Grade)
	return resp, args.Error(1)
}

func (m *mockTeacherService) UpdateGrade(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateGradeRequest) (*models.Grade, error) {
	args := m.Called(ctx, actor, id, req)
	resp, _ := args.Get(0).(*models.Grade)
	return resp, args.Error(1)
}

func (m *mockTeacherService) CourseGrades(ctx context.Context, teacherID, courseID int64, term string) ([]models.Grade, error) {
	args := m.Called(ctx, teacherID, courseID, term)
	resp, _ := args.Get(0).([]models.Grade)
	return resp, args.Error(1)
}
