package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	token, err := Sign("u1", time.Minute)
	require.NoError(t, err)

	uid, err := Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "moody", claims.Issuer)
}

func TestVerifyRejects(t *testing.T) {
	expired, err := Sign("u1", -time.Minute)
	require.NoError(t, err)
	_, err = Verify(expired)
	assert.Error(t, err)

	_, err = Verify("not-a-token")
	assert.Error(t, err)

	_, err = Sign("", time.Minute)
	assert.Error(t, err)

	token, err := Sign("u1", time.Minute)
	require.NoError(t, err)
	SetSecret("rotated")
	t.Cleanup(func() { SetSecret(defaultSecret) })
	_, err = Verify(token)
	assert.Error(t, err)
}
