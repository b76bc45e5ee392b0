package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"mirage/internal/auth"
	"mirage/internal/store"
)

var memCounter int

func newService(t *testing.T, flip func() bool) (*Service, *store.Store) {
	t.Helper()
	memCounter++
	dsn := fmt.Sprintf("file:logintest%d?mode=memory&cache=shared", memCounter)
	st, err := store.Open(dsn, 4, slog.Default())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewService(st, auth.NewIssuer("login-test-secret"), slog.Default())
	svc.flip = flip
	return svc, st
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	svc, _ := newService(t, func() bool { return true })

	token, err := svc.Login(context.Background(), "alice", "hunter2", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	claims, err := auth.NewIssuer("login-test-secret").Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "alice" || claims.ClientIP != "10.0.0.1" {
		t.Errorf("claims = %q/%q, want alice/10.0.0.1", claims.Subject, claims.ClientIP)
	}
}

func TestLogin_RepeatUsernameRejected(t *testing.T) {
	svc, _ := newService(t, func() bool { return true })
	ctx := context.Background()

	if _, err := svc.Login(ctx, "bob", "pw1", "10.0.0.1"); err != nil {
		t.Fatalf("first Login() error = %v", err)
	}
	_, err := svc.Login(ctx, "bob", "pw2", "10.0.0.2")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("second Login() error = %v, want ErrRejected", err)
	}
}

func TestLogin_CoinFlipLossStillCaptures(t *testing.T) {
	svc, st := newService(t, func() bool { return false })
	ctx := context.Background()

	_, err := svc.Login(ctx, "carol", "s3cret", "10.0.0.3")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Login() error = %v, want ErrRejected", err)
	}

	exists, err := st.UserExists(ctx, "carol")
	if err != nil {
		t.Fatalf("UserExists() error = %v", err)
	}
	if !exists {
		t.Error("rejected login was not recorded")
	}
}
