package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/pkg/apperrors"
)

func TestTokenRepository_ConsumeToken(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{"live token", 1, nil},
		{"already rotated", 0, apperrors.ErrTokenRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectExec(`UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = \$1 AND is_revoked = FALSE AND expiry_date > \$2`).
				WithArgs("rt-1", now).
				WillReturnResult(pgxmock.NewResult("UPDATE", tc.rows))

			err = NewTokenRepository(mock).ConsumeToken(context.Background(), "rt-1", now)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
