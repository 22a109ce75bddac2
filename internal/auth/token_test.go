package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	_, err := NewSigner(nil)
	require.Error(t, err)
}

func TestSignerIssueAndVerify(t *testing.T) {
	signer := newTestSigner(t)
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }

	token, err := signer.Issue(Actor{ID: "3", CuID: "12", UserName: "alice"})
	require.NoError(t, err)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, "3", claims.Subject)
	assert.Equal(t, "3", claims.UserID)
	assert.Equal(t, issued.Add(TokenTTL).Unix(), claims.ExpiresAt.Unix())

	actor, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: "3", CuID: "12", UserName: "alice"}, actor)
}

func TestSignerVerifyRejects(t *testing.T) {
	signer := newTestSigner(t)
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	valid, err := signer.Issue(Actor{ID: "3"})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := *signer
		later.now = func() time.Time { return issued.Add(TokenTTL + time.Minute) }
		_, err := later.Verify(valid)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewSigner([]byte("another-secret"))
		require.NoError(t, err)
		other.now = signer.now
		_, err = other.Verify(valid)
		assert.Error(t, err)
	})

	t.Run("other algorithm", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "3",
				ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
			},
		})
		signed, err := tok.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = signer.Verify(signed)
		assert.Error(t, err)
	})

	t.Run("missing expiry", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "3"},
		})
		signed, err := tok.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = signer.Verify(signed)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.Verify("not-a-token")
		assert.Error(t, err)
	})
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{ID: "7"})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "7", actor.ID)
}
