package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetSession returns the payload for id, or ok=false when absent. A row
// whose expiry has passed is deleted eagerly and reported absent.
func (s *Store) GetSession(ctx context.Context, id string) ([]byte, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("session id is required")
	}

	var payload string
	var expiresAt int64
	row := s.sqlDB.QueryRowContext(ctx, "SELECT payload, expires_at FROM sessions WHERE id = ?", id)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get session: %w", err)
	}

	if fromMillis(expiresAt).Before(time.Now()) {
		if err := s.DeleteSession(ctx, id); err != nil {
			return nil, false, fmt.Errorf("expire session: %w", err)
		}
		return nil, false, nil
	}

	return []byte(payload), true, nil
}

// PutSession upserts a session row keyed by id.
func (s *Store) PutSession(ctx context.Context, id string, payload []byte, expiresAt time.Time) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (id, payload, expires_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
`, id, string(payload), toMillis(expiresAt))
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// DeleteSession removes a session row. Deleting an absent row is not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes at most limit sessions whose expiry precedes
// now, returning how many rows were deleted.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM sessions WHERE id IN (
    SELECT id FROM sessions WHERE expires_at < ? LIMIT ?
)
`, toMillis(now), limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
