package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, expiresAt, err := issuer.Issue(42, "vendedor")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "vendedor", claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseRejectsBadTokens(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	other, _, err := NewTokenIssuer("other", time.Hour).Issue(1, "admin")
	require.NoError(t, err)

	expiredIssuer := NewTokenIssuer("secret", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := expiredIssuer.Issue(1, "admin")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": other,
		"expired":      expired,
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
