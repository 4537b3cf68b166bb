package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyBearerValidToken(t *testing.T) {
	svc := NewService(&common.AuthConfig{
		JWTSecret: testSecret,
		JWTIssuer: "claimlens-idp",
	}, arbor.NewLogger())

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user_1",
		"iss": "claimlens-idp",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := svc.VerifyBearer("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", identity.UserID)
	assert.Equal(t, "claimlens-idp", identity.Issuer)
	assert.False(t, identity.Anonymous)
}

func TestVerifyBearerRejections(t *testing.T) {
	svc := NewService(&common.AuthConfig{
		JWTSecret: testSecret,
		JWTIssuer: "claimlens-idp",
	}, arbor.NewLogger())

	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user_1",
		"iss": "claimlens-idp",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongSecret := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "user_1",
		"iss": "claimlens-idp",
	})
	wrongIssuer := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user_1",
		"iss": "someone-else",
	})
	noSubject := signToken(t, testSecret, jwt.MapClaims{
		"iss": "claimlens-idp",
	})

	cases := map[string]string{
		"missing header": "",
		"not a token":    "Bearer not.a.token",
		"expired":        "Bearer " + expired,
		"wrong secret":   "Bearer " + wrongSecret,
		"wrong issuer":   "Bearer " + wrongIssuer,
		"no subject":     "Bearer " + noSubject,
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyBearer(header)
			require.Error(t, err)
			assert.True(t, errors.Is(err, interfaces.ErrUnauthorized))
		})
	}
}

func TestVerifyBearerAnonymousMode(t *testing.T) {
	svc := NewService(&common.AuthConfig{AllowAnonymous: true}, arbor.NewLogger())

	identity, err := svc.VerifyBearer("")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", identity.UserID)
	assert.True(t, identity.Anonymous)

	// With a secret configured, a presented token must still verify.
	svc = NewService(&common.AuthConfig{
		JWTSecret:      testSecret,
		AllowAnonymous: true,
	}, arbor.NewLogger())

	_, err = svc.VerifyBearer("Bearer garbage")
	assert.True(t, errors.Is(err, interfaces.ErrUnauthorized))

	token := signToken(t, testSecret, jwt.MapClaims{"sub": "user_2"})
	identity, err = svc.VerifyBearer("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user_2", identity.UserID)
	assert.False(t, identity.Anonymous)
}

func TestVerifyQueueToken(t *testing.T) {
	svc := NewService(&common.AuthConfig{QueueToken: "queue-secret"}, arbor.NewLogger())

	assert.NoError(t, svc.VerifyQueueToken("queue-secret"))

	err := svc.VerifyQueueToken("wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrForbidden))

	// Unset secret passes only in anonymous mode.
	strict := NewService(&common.AuthConfig{}, arbor.NewLogger())
	assert.True(t, errors.Is(strict.VerifyQueueToken(""), interfaces.ErrForbidden))

	dev := NewService(&common.AuthConfig{AllowAnonymous: true}, arbor.NewLogger())
	assert.NoError(t, dev.VerifyQueueToken(""))
}
