package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	actor := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFreelancer}

	token, exp, err := m.GenerateAccess(actor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	got, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	actor := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}

	token, _, err := NewTokenManager("other", time.Minute).GenerateAccess(actor)
	require.NoError(t, err)
	_, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := NewTokenManager("secret", -time.Minute).GenerateAccess(actor)
	require.NoError(t, err)
	_, err = NewTokenManager("secret", time.Minute).ParseAccess(expired)
	assert.NoError(t, err, "неположительный TTL заменяется значением по умолчанию")

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  actor.ID.String(),
		"role": "moderator",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	signed, err := raw.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ParseAccess(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	old := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  actor.ID.String(),
		"role": "employer",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})
	signed, err = old.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ParseAccess(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ParseAccess("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
