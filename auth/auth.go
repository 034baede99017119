// Package auth issues and verifies the HS256 tokens that protect the private
// API and the realtime channel.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Tokens struct {
	Secret string
	TTL    time.Duration
}

func (t Tokens) Sign(userID int64, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.Secret))
}

// Verify checks signature and expiry and returns the bound user identity.
func (t Tokens) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(t.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

type contextKey struct{}

// UserID extracts the authenticated user from a request context.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(contextKey{}).(int64)
	return id
}

// Authenticate rejects requests without a valid bearer token and binds the
// token's user identity to the request context.
func (t Tokens) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.missing_token")
			return
		}

		claims, err := t.Verify(tokenString)
		if err != nil {
			httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "auth.invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(hash), err
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
