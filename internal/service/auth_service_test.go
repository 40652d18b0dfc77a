package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

const testSecret = "test-secret"

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func learnerClaims(expiresIn time.Duration) *models.JWTClaims {
	now := time.Now()
	return &models.JWTClaims{
		UserID: "learner-1",
		Role:   models.RoleLearner,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			Subject:   "learner-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

func TestValidateTokenAcceptsSignedToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret, Issuer: "identity"})
	token := signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), learnerClaims(time.Hour))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "learner-1", claims.UserID)
	assert.Equal(t, models.RoleLearner, claims.Role)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret, Issuer: "identity"})

	wrongIssuer := learnerClaims(time.Hour)
	wrongIssuer.Issuer = "someone-else"
	noUser := learnerClaims(time.Hour)
	noUser.UserID = ""
	badRole := learnerClaims(time.Hour)
	badRole.Role = "GUEST"

	cases := map[string]string{
		"expired":      signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), learnerClaims(-time.Minute)),
		"wrong secret": signClaims(t, jwt.SigningMethodHS256, []byte("other"), learnerClaims(time.Hour)),
		"wrong alg":    signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), learnerClaims(time.Hour)),
		"wrong issuer": signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer),
		"no user":      signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noUser),
		"unknown role": signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), badRole),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
