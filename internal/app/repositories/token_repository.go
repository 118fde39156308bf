package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
	"github.com/smis-school/smis/internal/pkg/logger"
)

// TokenRepository handles refresh tokens.
type TokenRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewTokenRepository(conn db.DBTX) *TokenRepository {
	return &TokenRepository{db: conn, sb: psql}
}

func (r *TokenRepository) WithTx(tx db.DBTX) *TokenRepository {
	return NewTokenRepository(tx)
}

// CreateToken stores a refresh token for userID.
func (r *TokenRepository) CreateToken(ctx context.Context, token string, userID int64, expiryDate time.Time) error {
	sql, args, err := r.sb.Insert("refresh_tokens").
		Columns("token", "user_id", "expiry_date").
		Values(token, userID, expiryDate).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create token SQL")
		return fmt.Errorf("failed to build create token query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "refresh_tokens_token_key") {
			return apperrors.ErrTokenInvalid
		}
		return fmt.Errorf("error creating token: %w", err)
	}
	return nil
}

// GetByToken returns the stored token row.
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	sql, args, err := r.sb.Select("id", "token", "user_id", "expiry_date", "is_revoked", "created_at").
		From("refresh_tokens").
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get token query: %w", err)
	}

	t := &models.RefreshToken{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiryDate, &t.IsRevoked, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error retrieving token: %w", err)
	}
	return t, nil
}

// RevokeToken marks a token revoked. Revoking twice is not an error.
func (r *TokenRepository) RevokeToken(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("error revoking token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTokenNotFound
	}
	return nil
}

// ConsumeToken revokes a live token for rotation. Only one caller can
// consume a given token: a token already revoked or expired at now affects
// no row and yields ErrTokenRevoked.
func (r *TokenRepository) ConsumeToken(ctx context.Context, token string, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1 AND is_revoked = FALSE AND expiry_date > $2`,
		token, now)
	if err != nil {
		return fmt.Errorf("error consuming token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTokenRevoked
	}
	return nil
}

// RevokeAllUserTokens revokes every live token of a user.
func (r *TokenRepository) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("error revoking user tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that expired or were revoked before cutoff.
func (r *TokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expiry_date < $1 OR (is_revoked AND created_at < $1)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
