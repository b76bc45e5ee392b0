package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UserExists reports whether a username has registered before.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return true, nil
}

// CreateUser records a registration. Passwords are stored in clear text on
// purpose: the users table is bait, not an identity system.
func (s *Store) CreateUser(ctx context.Context, username, password, clientIP string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password, client_ip, created_at) VALUES (?, ?, ?, ?)`,
		username, password, clientIP, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
