package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policardmed/internal/identity/models"
	dErrors "policardmed/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "policardmed", "policardmed-web")

func Test_IssueAndValidate(t *testing.T) {
	now := time.Now()
	signed, issued, err := jwtService.Issue(models.RoleAdmin, "admin@policardmed.com", "fp", now, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := jwtService.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "admin@policardmed.com", claims.Subject)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, "fp", claims.Fingerprint)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
}

func Test_Validate_Expired(t *testing.T) {
	signed, _, err := jwtService.Issue(models.RoleAssociate, "member-1", "", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = jwtService.Validate(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_Validate_Rejects(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		_, err := jwtService.Validate("invalid-token-string")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("other signing key", func(t *testing.T) {
		other := NewJWTService("another-key", "policardmed", "policardmed-web")
		signed, _, err := other.Issue(models.RoleAdmin, "x", "", time.Now(), time.Hour)
		require.NoError(t, err)
		_, err = jwtService.Validate(signed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown role", func(t *testing.T) {
		claims := &Claims{
			Role: "superuser",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "x",
				ID:        "jti",
				Issuer:    "policardmed",
				Audience:  []string{"policardmed-web"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
		require.NoError(t, err)
		_, err = jwtService.Validate(signed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
