package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
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

func newJWT() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "middleware-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: time.Hour,
		TokenIssuer:     "smis",
	})
}

func tokenFor(t *testing.T, jwt *auth.JWTService, user *models.User) string {
	t.Helper()
	pair, err := jwt.GenerateTokenPair(user)
	require.NoError(t, err)
	return pair.AccessToken
}

// recordingActivity is an ActivityService that only captures Record calls.
type recordingActivity struct {
	mu      sync.Mutex
	entries []recorded
}

type recorded struct {
	actor      *models.Actor
	action     string
	entityType string
	metadata   map[string]interface{}
}

func (r *recordingActivity) Log(ctx context.Context, entry *models.ActivityLog) error { return nil }

func (r *recordingActivity) Record(ctx context.Context, actor *models.Actor, action, entityType string, entityID *int64, metadata map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recorded{actor: actor, action: action, entityType: entityType, metadata: metadata})
	services.MarkActivity(ctx)
}

func (r *recordingActivity) List(ctx context.Context, filter models.ActivityFilter, page, size int) (*dto.PaginatedResponse, error) {
	return nil, nil
}

func (r *recordingActivity) Recent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	return nil, nil
}

func (r *recordingActivity) ByEntity(ctx context.Context, entityType string, entityID int64) ([]models.ActivityLog, error) {
	return nil, nil
}

func (r *recordingActivity) ForUser(ctx context.Context, userID int64, page, size int) (*dto.PaginatedResponse, error) {
	return nil, nil
}

func (r *recordingActivity) Summary(ctx context.Context, since time.Time) ([]models.ActionCount, error) {
	return nil, nil
}

func (r *recordingActivity) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (r *recordingActivity) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
