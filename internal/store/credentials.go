package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SaveCredentials replaces the stored sign-in.
func (db *DB) SaveCredentials(ctx context.Context, c *Credentials) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO credentials (id, token, user_id, user_name, user_email, user_role, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			user_email = excluded.user_email,
			user_role = excluded.user_role,
			updated_at = excluded.updated_at`,
		c.Token, c.UserID, c.UserName, c.UserEmail, c.UserRole, time.Now().UnixMilli())
	return err
}

// LoadCredentials returns the stored sign-in, or nil when signed out.
func (db *DB) LoadCredentials(ctx context.Context) (*Credentials, error) {
	var c Credentials
	err := db.QueryRowContext(ctx, `
		SELECT token, user_id, user_name, user_email, user_role, updated_at
		FROM credentials WHERE id = 1`).
		Scan(&c.Token, &c.UserID, &c.UserName, &c.UserEmail, &c.UserRole, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClearCredentials forgets the stored sign-in.
func (db *DB) ClearCredentials(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM credentials`)
	return err
}
