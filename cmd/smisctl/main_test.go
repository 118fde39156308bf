package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
)

func int64Ptr(v int64) *int64 { return &v }

func TestPrintNew_OldestFirstAndSkipsSeen(t *testing.T) {
	at := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	entries := []models.ActivityLog{
		{ID: 12, Action: "fee.payment.recorded", EntityType: "fee", EntityID: int64Ptr(7), UserName: "Fin Ance", CreatedAt: at},
		{ID: 11, Action: "user.created", EntityType: "user", EntityID: int64Ptr(3), UserID: int64Ptr(1), CreatedAt: at},
		{ID: 10, Action: "auth.login", EntityType: "user", CreatedAt: at},
	}

	var buf bytes.Buffer
	last := printNew(&buf, entries, 10)
	assert.Equal(t, int64(12), last)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "user.created")
	assert.Contains(t, lines[0], "user/3")
	assert.Contains(t, lines[0], "user 1")
	assert.Contains(t, lines[1], "fee/7")
	assert.Contains(t, lines[1], "Fin Ance")
	assert.True(t, strings.HasPrefix(lines[1], "2025-01-02T09:00:00Z"))
}

func TestActivitiesCommand_UsesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/api/activities/recent", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.NewSuccessResponse([]models.ActivityLog{
			{ID: 2, Action: "grade.updated", EntityType: "grade"},
			{ID: 1, Action: "grade.created", EntityType: "grade"},
		}, ""))
	}))
	defer srv.Close()

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	err := app.Run([]string{"smisctl", "activities", "--server", srv.URL, "--token", "tok", "--limit", "5"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "grade.created")
	assert.Contains(t, lines[1], "grade.updated")
}

func TestActivitiesCommand_RequiresCredentials(t *testing.T) {
	t.Setenv("SMIS_TOKEN", "")
	t.Setenv("SMIS_EMAIL", "")
	t.Setenv("SMIS_PASSWORD", "")

	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run([]string{"smisctl", "activities", "--server", "http://127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token")
}
