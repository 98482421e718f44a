package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"screen-recorder/internal/auth"
)

// GetCredential implements auth.CredentialStore. It returns nil and no
// error when the name is unknown.
func (d *Database) GetCredential(ctx context.Context, name string) (*auth.Credential, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		value     []byte
		updatedAt int64
	)
	start := time.Now()
	err := d.db.QueryRowContext(ctx,
		"SELECT value, updated_at FROM credentials WHERE name = ?", name,
	).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get_credential", start, nil)
		return nil, nil
	}
	recordQuery("get_credential", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &auth.Credential{Value: value, UpdatedAt: time.Unix(updatedAt, 0)}, nil
}

// SetCredential stores or replaces a sealed value.
func (d *Database) SetCredential(ctx context.Context, name string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, value, time.Now().Unix())
	recordQuery("set_credential", start, err)
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	return nil
}

// DeleteCredential removes a stored value. Deleting a missing name is not
// an error.
func (d *Database) DeleteCredential(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := d.db.ExecContext(ctx, "DELETE FROM credentials WHERE name = ?", name)
	recordQuery("delete_credential", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
