// Package login implements the credential-capture endpoint. It accepts any
// new username, records the credentials verbatim, and hands out a real
// token only about half the time so the service reads as flaky rather
// than fake.
package login

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"

	"mirage/internal/auth"
	"mirage/internal/store"
)

// ErrRejected covers both rejection paths. Both surface to the client as
// the same 401 so a repeat username and a coin-flip loss are
// indistinguishable from outside.
var ErrRejected = errors.New("invalid username or password")

// Detail is the 401 response body message.
const Detail = "Invalid username or password"

type Service struct {
	store  *store.Store
	issuer *auth.Issuer
	flip   func() bool
	logger *slog.Logger
}

func NewService(st *store.Store, issuer *auth.Issuer, logger *slog.Logger) *Service {
	return &Service{store: st, issuer: issuer, flip: coinFlip, logger: logger}
}

// Login records the attempt and either rejects or issues a token. A
// repeated username always rejects. A fresh username is persisted with its
// password, then rejected at random even when otherwise valid.
func (s *Service) Login(ctx context.Context, username, password, clientIP string) (string, error) {
	exists, err := s.store.UserExists(ctx, username)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrRejected
	}

	if err := s.store.CreateUser(ctx, username, password, clientIP); err != nil {
		return "", err
	}
	s.logger.Info("credentials captured",
		slog.String("username", username),
		slog.String("client_ip", clientIP))

	if !s.flip() {
		return "", ErrRejected
	}

	return s.issuer.Issue(username, clientIP)
}

func coinFlip() bool {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return false
	}
	return b[0]&1 == 1
}
