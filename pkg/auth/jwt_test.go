package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	i := NewIssuer("secret", time.Hour)
	token, exp, err := i.Issue("admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	sub, err := i.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)

	_, err = NewIssuer("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Expired(t *testing.T) {
	i := NewIssuer("secret", time.Minute)
	i.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := i.Issue("admin")
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Minute).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_NoSecret(t *testing.T) {
	_, _, err := NewIssuer("", time.Hour).Issue("admin")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckPassword("", "hunter2"), ErrInvalidCredentials)
}
