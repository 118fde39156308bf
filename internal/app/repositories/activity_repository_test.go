package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
)

func TestActivityListQuery_NoFilter(t *testing.T) {
	repo := NewActivityRepository(nil)

	sql, args, err := repo.BuildListQuery(models.ActivityFilter{}, 0, 20).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM activity_logs a LEFT JOIN users u ON u.id = a.user_id")
	assert.NotContains(t, sql, "WHERE")
	assert.Contains(t, sql, "ORDER BY a.created_at DESC, a.id DESC")
	assert.Contains(t, sql, "LIMIT 20")
	assert.Empty(t, args)
}

func TestActivityListQuery_AllFilters(t *testing.T) {
	repo := NewActivityRepository(nil)
	userID := int64(3)
	entityID := int64(42)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	f := models.ActivityFilter{
		UserID:     &userID,
		Action:     "fee.payment.recorded",
		EntityType: "fee",
		EntityID:   &entityID,
		From:       &from,
		To:         &to,
		Search:     "pay",
	}
	sql, args, err := repo.BuildListQuery(f, 40, 20).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE a.user_id = $1 AND a.action = $2 AND a.entity_type = $3 AND a.entity_id = $4"+
		" AND a.created_at >= $5 AND a.created_at < $6 AND (a.action ILIKE $7 ESCAPE '\\' OR a.entity_type ILIKE $8 ESCAPE '\\')")
	assert.Contains(t, sql, "LIMIT 20")
	assert.Contains(t, sql, "OFFSET 40")
	assert.Equal(t, []interface{}{userID, "fee.payment.recorded", "fee", entityID, from, to, "%pay%", "%pay%"}, args)
}

func TestActivityListQuery_SearchWildcardsMatchLiterally(t *testing.T) {
	repo := NewActivityRepository(nil)

	tests := []struct {
		search string
		want   string
	}{
		{"fee", `%fee%`},
		{"100%", `%100\%%`},
		{"entity_type", `%entity\_type%`},
		{`a\b`, `%a\\b%`},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			_, args, err := repo.BuildListQuery(models.ActivityFilter{Search: tt.search}, 0, 10).ToSql()
			require.NoError(t, err)
			assert.Equal(t, []interface{}{tt.want, tt.want}, args)
		})
	}
}

func TestActivityListQuery_ZeroLimitReturnsEverything(t *testing.T) {
	repo := NewActivityRepository(nil)

	sql, _, err := repo.BuildListQuery(models.ActivityFilter{Action: "user.login"}, 0, 0).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "LIMIT")
}

func TestActivityRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO activity_logs").
		WithArgs(pgxmock.AnyArg(), "grade.created", "grade", pgxmock.AnyArg(), `{"score":80}`, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), now))

	entityID := int64(5)
	entry := &models.ActivityLog{
		Action:     "grade.created",
		EntityType: "grade",
		EntityID:   &entityID,
		Metadata:   map[string]interface{}{"score": 80},
	}
	require.NoError(t, NewActivityRepository(mock).Create(context.Background(), entry))

	assert.Equal(t, int64(9), entry.ID)
	assert.Equal(t, now, entry.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepository_DeleteOlderThan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM activity_logs").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	n, err := NewActivityRepository(mock).DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
