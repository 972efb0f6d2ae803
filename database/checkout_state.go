package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"washclub-checkout-api/checkout"
)

// CheckoutStateStorage stores checkout records in the checkout_states table.
// It implements checkout.Storage.
type CheckoutStateStorage struct {
	conn *Connection
	now  func() time.Time
}

func NewCheckoutStateStorage(conn *Connection) *CheckoutStateStorage {
	return &CheckoutStateStorage{conn: conn, now: time.Now}
}

var _ checkout.Storage = (*CheckoutStateStorage)(nil)

func (s *CheckoutStateStorage) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var value string
	err := s.conn.db.QueryRowContext(ctx,
		`SELECT value FROM checkout_states WHERE state_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", checkout.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error reading checkout state: %w", err)
	}
	return value, nil
}

func (s *CheckoutStateStorage) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.conn.db.ExecContext(ctx, `
		INSERT INTO checkout_states (state_key, value, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)
	`, key, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("error writing checkout state: %w", err)
	}
	return nil
}

func (s *CheckoutStateStorage) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.conn.db.ExecContext(ctx,
		`DELETE FROM checkout_states WHERE state_key = ?`, key); err != nil {
		return fmt.Errorf("error deleting checkout state: %w", err)
	}
	return nil
}
