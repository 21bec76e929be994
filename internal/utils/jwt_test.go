package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintTokenRoundTrip(t *testing.T) {
	tok, err := MintToken("s3cret", "user-42", time.Hour)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok.Token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "user-42", claims.Subject)
	assert.WithinDuration(t, tok.Exp, claims.ExpiresAt.Time, time.Second)
}

func TestMintTokenRejectsEmptyInput(t *testing.T) {
	_, err := MintToken("", "user-42", time.Hour)
	assert.Error(t, err)
	_, err = MintToken("s3cret", "", time.Hour)
	assert.Error(t, err)
}
