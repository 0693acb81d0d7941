// Package session issues and verifies the signed session cookie that
// identifies a user across requests.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie set on successful OAuth callback.
const CookieName = "session"

// DefaultTTL matches the original seven-day session window.
const DefaultTTL = 7 * 24 * time.Hour

// ErrInvalidSession reports a missing, malformed or expired session token.
var ErrInvalidSession = errors.New("invalid or expired session")

// Sessions signs and verifies session tokens with an HMAC secret.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// New creates a Sessions helper with the default TTL.
func New(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: DefaultTTL}
}

// Issue returns a signed token identifying userID.
func (s *Sessions) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify returns the user ID carried by a valid token.
func (s *Sessions) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// UserID extracts the authenticated user from the request cookie.
// Returns empty string for anonymous requests.
func (s *Sessions) UserID(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	userID, err := s.Verify(cookie.Value)
	if err != nil {
		return ""
	}
	return userID
}

// SetCookie attaches the session cookie to a response.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
