package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_RoundTrip(t *testing.T) {
	p := NewParser("secret")

	token, err := p.Issue(2, time.Minute)
	require.NoError(t, err)

	claims, err := p.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), claims.ProfileID)
}

func TestParser_Rejects(t *testing.T) {
	p := NewParser("secret")

	expired, err := p.Issue(2, -time.Minute)
	require.NoError(t, err)

	foreign, err := NewParser("other").Issue(2, time.Minute)
	require.NoError(t, err)

	noProfile, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ProfileID: 2}).SignedString([]byte("secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		ProfileID:        2,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"foreign":    foreign,
		"no profile": noProfile,
		"no expiry":  noExpiry,
		"wrong alg":  hs512,
		"garbage":    "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestParser_Disabled(t *testing.T) {
	p := NewParser("")
	assert.False(t, p.Enabled())

	_, err := p.Parse("anything")
	require.ErrorIs(t, err, ErrInvalidToken)
}
