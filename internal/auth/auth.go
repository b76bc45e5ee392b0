// Package auth issues and verifies the bearer-style tokens handed out by
// the login stub, and extracts candidate tokens from the many places
// scanners tend to put them.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 9000 * time.Second

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carried by an issued token.
type Claims struct {
	ClientIP string `json:"ip"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS512 tokens with a shared secret.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue mints a token for a freshly registered username.
func (i *Issuer) Issue(username, clientIP string) (string, error) {
	now := time.Now()
	claims := Claims{
		ClientIP: clientIP,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string. Expired tokens are reported
// distinctly so the engine can name the failure.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS512 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// altTokenHeaders are checked in order after Authorization. The odd names
// are deliberate: the honeypot accepts tokens wherever a scanner puts them.
var altTokenHeaders = []string{
	"X-Auth-Token", "X-Token", "X-Access-Token", "Authentication", "Bearer", "Token",
}

// ExtractToken pulls a candidate token from the request: the Authorization
// header (Bearer or bare), several alternate header names, then the token
// and access_token query parameters. Returns "" when nothing is present.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(auth[len("Bearer "):])
		}
		if len(strings.Fields(auth)) == 1 {
			return strings.TrimSpace(auth)
		}
	}

	for _, hdr := range altTokenHeaders {
		raw := r.Header.Get(hdr)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "Bearer ") {
			return strings.TrimSpace(raw[len("Bearer "):])
		}
		return strings.TrimSpace(raw)
	}

	q := r.URL.Query()
	for _, key := range []string{"token", "access_token"} {
		if v := q.Get(key); v != "" {
			return v
		}
	}

	return ""
}
