package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserRow is the local denormalized projection of a downstream user.
type UserRow struct {
	ID         int64
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	Login      string
	Status     string
	CreatedAt  time.Time
}

// UpsertUser creates or updates the projection keyed by the downstream
// canonical id. Only called after a successful downstream write.
func (s *Store) UpsertUser(ctx context.Context, row UserRow) error {
	if row.ExternalID == "" {
		return fmt.Errorf("external id is required")
	}
	if row.Email == "" {
		return fmt.Errorf("email is required")
	}

	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (external_id, email, first_name, last_name, login, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_id) DO UPDATE SET
    email = excluded.email,
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    login = excluded.login,
    status = excluded.status
`, row.ExternalID, row.Email, row.FirstName, row.LastName, row.Login, row.Status, createdAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUserByExternalID returns the local projection, or ok=false when absent.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (UserRow, bool, error) {
	if externalID == "" {
		return UserRow{}, false, fmt.Errorf("external id is required")
	}

	var row UserRow
	var firstName, lastName, login, status sql.NullString
	var createdAt string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, external_id, email, first_name, last_name, login, status, created_at
FROM users WHERE external_id = ?
`, externalID).Scan(&row.ID, &row.ExternalID, &row.Email, &firstName, &lastName, &login, &status, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return UserRow{}, false, nil
		}
		return UserRow{}, false, fmt.Errorf("get user: %w", err)
	}

	row.FirstName = firstName.String
	row.LastName = lastName.String
	row.Login = login.String
	row.Status = status.String
	if parsed, perr := time.Parse(timeFormat, createdAt); perr == nil {
		row.CreatedAt = parsed
	}
	return row, true, nil
}

// SetUserStatus updates the projected lifecycle status for a user.
func (s *Store) SetUserStatus(ctx context.Context, externalID, status string) error {
	if externalID == "" {
		return fmt.Errorf("external id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		"UPDATE users SET status = ? WHERE external_id = ?", status, externalID); err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	return nil
}
