package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/report"
)

func TestAuthController_Login(t *testing.T) {
	svc := new(mockAuthService)
	ctrl := NewAuthController(svc, zerolog.Nop())
	r := gin.New()
	r.POST("/auth/login", ctrl.Login)

	svc.On("Login", mock.Anything, &dto.LoginRequest{Email: "admin@smis.local", Password: "Secret123"}, mock.AnythingOfType("*models.Actor")).
		Return(&dto.TokenResponse{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresIn: 900}, nil).Once()
	svc.On("Login", mock.Anything, &dto.LoginRequest{Email: "admin@smis.local", Password: "wrong"}, mock.Anything).
		Return(nil, apperrors.ErrInvalidCredentials).Once()

	w := doJSON(r, http.MethodPost, "/auth/login", `{"email":"admin@smis.local","password":"Secret123"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"accessToken":"a","refreshToken":"r","tokenType":"Bearer","expiresIn":900}`, string(env.Data))

	w = doJSON(r, http.MethodPost, "/auth/login", `{"email":"admin@smis.local","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrorCodeInvalidCredentials, decode(t, w).Error.Code)

	w = doJSON(r, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode(t, w).Success)

	svc.AssertExpectations(t)
}

func TestAuthController_MeRequiresActor(t *testing.T) {
	ctrl := NewAuthController(new(mockAuthService), zerolog.Nop())
	r := gin.New()
	r.GET("/auth/me", ctrl.Me)

	w := doJSON(r, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func financeRouter(svc *mockFinanceService) *gin.Engine {
	ctrl := NewFinanceController(svc, zerolog.Nop())
	r := gin.New()
	g := r.Group("/finance", asUser(11, models.RoleFinance))
	g.GET("/fees", ctrl.ListFees)
	g.GET("/fees/export", ctrl.ExportFees)
	g.POST("/fees/:id/payments", ctrl.RecordPayment)
	return r
}

func TestFinanceController_RecordPayment(t *testing.T) {
	svc := new(mockFinanceService)
	r := financeRouter(svc)

	isPayment := func(amount float64) interface{} {
		return mock.MatchedBy(func(req *dto.RecordPaymentRequest) bool { return req.Amount == amount })
	}
	isFinance := mock.MatchedBy(func(a *models.Actor) bool { return a.UserID == 11 && a.Role == models.RoleFinance })

	svc.On("RecordPayment", mock.Anything, isFinance, int64(5), isPayment(500)).Return(&dto.PaymentResult{
		Fee:     &models.Fee{ID: 5, Amount: 1500, AmountPaid: 500, Status: models.FeePartial},
		Payment: &models.FeePayment{ID: 1, FeeID: 5, Amount: 500, Method: models.PaymentCash},
	}, nil).Once()
	svc.On("RecordPayment", mock.Anything, isFinance, int64(5), isPayment(5000)).
		Return(nil, apperrors.NewCustomError(apperrors.ErrOverpayment, "payment of 5000.00 exceeds outstanding balance of 1000.00")).Once()

	w := doJSON(r, http.MethodPost, "/finance/fees/5/payments", `{"amount":500,"method":"CASH"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"status":"PARTIAL"`)

	w = doJSON(r, http.MethodPost, "/finance/fees/5/payments", `{"amount":5000,"method":"CASH"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payment of 5000.00 exceeds outstanding balance of 1000.00", decode(t, w).Message)

	w = doJSON(r, http.MethodPost, "/finance/fees/5/payments", `{"amount":5,"method":"BITCOIN"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/finance/fees/abc/payments", `{"amount":5,"method":"CASH"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestFinanceController_ListFeesFilter(t *testing.T) {
	svc := new(mockFinanceService)
	r := financeRouter(svc)

	want := models.FeeFilter{Status: models.FeeOverdue, StudentID: 3, Term: "2024-T1"}
	svc.On("ListFees", mock.Anything, want, 2, 20).Return(&dto.PaginatedResponse{Items: []models.Fee{}}, nil).Once()

	w := doJSON(r, http.MethodGet, "/finance/fees?status=overdue&studentId=3&term=2024-T1&page=2&size=20", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/finance/fees?status=LOST", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestFinanceController_ExportFees(t *testing.T) {
	svc := new(mockFinanceService)
	r := financeRouter(svc)
	svc.On("ExportFees", mock.Anything, models.FeeFilter{Term: "2024-T2"}, mock.Anything).Return(nil).Once()

	w := doJSON(r, http.MethodGet, "/finance/fees/export?term=2024-T2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"fees-")
	assert.Equal(t, "PK-fake-xlsx", w.Body.String())
}

func TestTeacherController_MarkAttendance(t *testing.T) {
	svc := new(mockTeacherService)
	ctrl := NewTeacherController(svc, zerolog.Nop())
	r := gin.New()
	r.POST("/teachers/attendance", asUser(4, models.RoleTeacher), ctrl.MarkAttendance)

	svc.On("MarkAttendance", mock.Anything, mock.Anything, mock.MatchedBy(func(req *dto.BulkAttendanceRequest) bool { return req.ClassID == 2 })).
		Return(nil, apperrors.ErrNotTimetabled).Once()
	svc.On("MarkAttendance", mock.Anything, mock.Anything, mock.MatchedBy(func(req *dto.BulkAttendanceRequest) bool { return req.ClassID == 3 })).
		Return([]models.AttendanceRecord{{ID: 1, StudentID: 8, Status: models.AttendancePresent}}, nil).Once()

	body := `{"classId":2,"date":"2024-05-02","records":[{"studentId":8,"status":"PRESENT"}]}`
	w := doJSON(r, http.MethodPost, "/teachers/attendance", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body = `{"classId":3,"date":"2024-05-02","records":[{"studentId":8,"status":"PRESENT"}]}`
	w = doJSON(r, http.MethodPost, "/teachers/attendance", body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/teachers/attendance", `{"classId":3,"date":"02/05/2024","records":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestTeacherController_ListAttendanceNeedsClass(t *testing.T) {
	svc := new(mockTeacherService)
	ctrl := NewTeacherController(svc, zerolog.Nop())
	r := gin.New()
	r.GET("/teachers/attendance", asUser(4, models.RoleTeacher), ctrl.ListAttendance)

	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	svc.On("ListAttendance", mock.Anything, int64(4), int64(3), mock.MatchedBy(func(d *time.Time) bool { return d != nil && d.Equal(date) })).Return([]models.AttendanceRecord{}, nil).Once()

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/teachers/attendance", "").Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/teachers/attendance?classId=3&date=2024-05-02", "").Code)
	svc.AssertExpectations(t)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func TestHealthController(t *testing.T) {
	healthy := NewHealthController("test", map[string]Pinger{"database": stubPinger{}, "cache": stubPinger{}})
	degraded := NewHealthController("test", map[string]Pinger{"database": stubPinger{errors.New("refused")}})

	r := gin.New()
	r.GET("/ok", healthy.Health)
	r.GET("/bad", degraded.Health)
	r.GET("/ping", healthy.Ping)

	w := doJSON(r, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"status":"ok"`)

	w = doJSON(r, http.MethodGet, "/bad", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"database":"down: refused"`)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/ping", "").Code)
}
