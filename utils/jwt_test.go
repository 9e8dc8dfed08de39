package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tennis-tournament/models"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := []byte("test-secret")
	user := &models.User{ID: 7, Role: models.RoleReferee, Email: "mo@example.com"}

	token, expiresAt, err := GenerateJWT(secret, time.Hour, user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ParseJWT(secret, token)
	require.NoError(t, err)
	assert.Equal(t, float64(7), claims[ClaimUserID])
	assert.Equal(t, "referee", claims[ClaimRole])
	assert.Equal(t, "mo@example.com", claims[ClaimEmail])
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token, _, err := GenerateJWT([]byte("one"), time.Hour, &models.User{ID: 1, Role: models.RolePlayer})
	require.NoError(t, err)

	_, err = ParseJWT([]byte("two"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	token, _, err := GenerateJWT([]byte("s"), -time.Minute, &models.User{ID: 1, Role: models.RolePlayer})
	require.NoError(t, err)

	_, err = ParseJWT([]byte("s"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseJWTRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{ClaimUserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseJWT([]byte("s"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
