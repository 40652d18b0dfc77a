package signing

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestFeedSignerIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	signer := NewFeedSigner("secret", time.Hour).WithClock(fixedClock(now))

	token, expiresAt, err := signer.Issue("learner-1", "calendar")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := signer.Verify(token, "calendar")
	require.NoError(t, err)
	assert.Equal(t, "learner-1", claims.Subject)
	assert.Equal(t, expiresAt, claims.ExpiresAt)
}

func TestFeedSignerRejectsTamperingAndScope(t *testing.T) {
	signer := NewFeedSigner("secret", time.Hour)
	token, _, err := signer.Issue("learner-1", "calendar")
	require.NoError(t, err)

	_, err = signer.Verify(token, "export")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	parts := strings.Split(token, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"scope":"calendar","sub":"learner-2","exp":4102444800}`))
	_, err = signer.Verify(strings.Join(parts, "."), "calendar")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = NewFeedSigner("other", time.Hour).Verify(token, "calendar")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = signer.Verify("garbage", "calendar")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestFeedSignerExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	signer := NewFeedSigner("secret", time.Minute).WithClock(fixedClock(now))
	token, _, err := signer.Issue("learner-1", "calendar")
	require.NoError(t, err)

	signer.WithClock(fixedClock(now.Add(2 * time.Minute)))
	claims, err := signer.Verify(token, "calendar")
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, "learner-1", claims.Subject)
}

func TestFeedSignerRequiresSecret(t *testing.T) {
	_, _, err := NewFeedSigner("", time.Hour).Issue("learner-1", "calendar")
	require.Error(t, err)
}
