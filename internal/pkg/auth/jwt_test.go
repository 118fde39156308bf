package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/pkg/apperrors"
)

func newTestService() *JWTService {
	return NewJWTService(JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "smis",
	})
}

func TestGenerateAndValidate(t *testing.T) {
	s := newTestService()
	dept := int64(4)
	user := &models.User{ID: 9, Email: "hod@smis.local", RoleType: models.RoleHOD, DepartmentID: &dept}

	pair, err := s.GenerateTokenPair(user)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, time.Hour, pair.AccessExpiresIn)

	claims, err := s.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(9), claims.UserID)
	assert.Equal(t, models.RoleHOD, claims.Role)
	require.NotNil(t, claims.DepartmentID)
	assert.Equal(t, int64(4), *claims.DepartmentID)
}

func TestValidateToken_Expired(t *testing.T) {
	s := newTestService()
	pair, err := s.GenerateTokenPair(&models.User{ID: 1, Email: "a@b.co", RoleType: models.RoleStudent})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	pair, err := newTestService().GenerateTokenPair(&models.User{ID: 1, Email: "a@b.co", RoleType: models.RoleStudent})
	require.NoError(t, err)

	other := NewJWTService(JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour, TokenIssuer: "smis"})
	_, err = other.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	_, err = other.ValidateToken("")
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = ExtractBearerToken("bearer  xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "abc.def", "Basic dXNlcg==", "Bearer "} {
		_, err := ExtractBearerToken(h)
		assert.ErrorIs(t, err, ErrInvalidFormat, h)
	}
}

func TestPasswordHashing(t *testing.T) {
	BcryptCost = bcrypt.MinCost
	t.Cleanup(func() { BcryptCost = 12 })

	hash, err := HashPassword("Secret123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "Secret123"))
	assert.False(t, CheckPassword(hash, "secret123"))
	assert.False(t, NeedsRehash(hash))

	BcryptCost = bcrypt.MinCost + 1
	assert.True(t, NeedsRehash(hash))
	assert.True(t, NeedsRehash("not-a-hash"))

	_, err = HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
