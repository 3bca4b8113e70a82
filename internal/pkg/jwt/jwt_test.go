package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("secret", time.Minute)
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, "ADMIN")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, "ADMIN", claims.Role)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewService("one", time.Minute).GenerateAccessToken(uuid.New(), "USER")
	require.NoError(t, err)

	_, err = NewService("two", time.Minute).ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	svc := NewService("secret", -time.Minute)
	token, err := svc.GenerateAccessToken(uuid.New(), "USER")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}
