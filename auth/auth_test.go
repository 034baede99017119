package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	tokens := Tokens{Secret: "test-secret", TTL: time.Hour}

	signed, err := tokens.Sign(42, "bob@example.com")
	require.NoError(t, err)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "bob@example.com", claims.Email)
}

func TestVerifyWrongSecret(t *testing.T) {
	signed, err := Tokens{Secret: "secret-a", TTL: time.Hour}.Sign(1, "a@b.c")
	require.NoError(t, err)

	_, err = Tokens{Secret: "secret-b", TTL: time.Hour}.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	signed, err := Tokens{Secret: "test-secret", TTL: -time.Minute}.Sign(1, "a@b.c")
	require.NoError(t, err)

	_, err = Tokens{Secret: "test-secret", TTL: time.Hour}.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	_, err := Tokens{Secret: "test-secret"}.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateMiddleware(t *testing.T) {
	tokens := Tokens{Secret: "test-secret", TTL: time.Hour}

	var gotUserID int64
	handler := tokens.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/campaigns", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/campaigns", nil)
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		signed, err := tokens.Sign(7, "carol@example.com")
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/campaigns", nil)
		r.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 7, gotUserID)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
