package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RequestLogRow is one audit row: an inbound request plus at most one
// correlated downstream call.
type RequestLogRow struct {
	ID                     int64  `json:"id"`
	SessionID              string `json:"session_id,omitempty"`
	Method                 string `json:"method"`
	URL                    string `json:"url"`
	StatusCode             int    `json:"status_code"`
	RequestBody            string `json:"request_body,omitempty"`
	Error                  string `json:"error,omitempty"`
	DurationMs             int64  `json:"duration_ms"`
	UserSub                string `json:"user_sub,omitempty"`
	DownstreamURL          string `json:"downstream_url,omitempty"`
	DownstreamMethod       string `json:"downstream_method,omitempty"`
	DownstreamStatusCode   int    `json:"downstream_status_code,omitempty"`
	DownstreamRequestBody  string `json:"downstream_request_body,omitempty"`
	DownstreamResponseBody string `json:"downstream_response_body,omitempty"`
	DownstreamDurationMs   int64  `json:"downstream_duration_ms,omitempty"`
	CreatedAt              string `json:"created_at"`
}

// InsertRequestLog persists one audit row.
func (s *Store) InsertRequestLog(ctx context.Context, row RequestLogRow) error {
	if row.Method == "" || row.URL == "" {
		return fmt.Errorf("method and url are required")
	}

	createdAt := row.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(timeFormat)
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO request_log (
    session_id, method, url, status_code, request_body, error, duration_ms, user_sub,
    downstream_url, downstream_method, downstream_status_code,
    downstream_request_body, downstream_response_body, downstream_duration_ms, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		nullable(row.SessionID), row.Method, row.URL, row.StatusCode,
		nullable(row.RequestBody), nullable(row.Error), row.DurationMs, nullable(row.UserSub),
		nullable(row.DownstreamURL), nullable(row.DownstreamMethod), nullZero(row.DownstreamStatusCode),
		nullable(row.DownstreamRequestBody), nullable(row.DownstreamResponseBody), nullZero64(row.DownstreamDurationMs),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// RequestLogFilter narrows ListRequestLogs results.
type RequestLogFilter struct {
	// URLContains keeps rows whose URL matches any of the substrings.
	URLContains []string
	// Limit caps the number of rows returned; callers enforce their own
	// ceiling before passing it down.
	Limit int
}

// ListRequestLogs returns the most recent audit rows, newest first.
func (s *Store) ListRequestLogs(ctx context.Context, filter RequestLogFilter) ([]RequestLogRow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
SELECT id, session_id, method, url, status_code, request_body, error, duration_ms, user_sub,
    downstream_url, downstream_method, downstream_status_code,
    downstream_request_body, downstream_response_body, downstream_duration_ms, created_at
FROM request_log
`
	var args []any
	if len(filter.URLContains) > 0 {
		clauses := make([]string, 0, len(filter.URLContains))
		for _, pattern := range filter.URLContains {
			clauses = append(clauses, "url LIKE ?")
			args = append(args, "%"+pattern+"%")
		}
		query += "WHERE " + strings.Join(clauses, " OR ") + "\n"
	}
	query += "ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []RequestLogRow
	for rows.Next() {
		var row RequestLogRow
		var sessionID, requestBody, logError, userSub sql.NullString
		var dsURL, dsMethod, dsRequestBody, dsResponseBody sql.NullString
		var statusCode, dsStatusCode sql.NullInt64
		var durationMs, dsDurationMs sql.NullInt64
		if err := rows.Scan(
			&row.ID, &sessionID, &row.Method, &row.URL, &statusCode, &requestBody, &logError, &durationMs, &userSub,
			&dsURL, &dsMethod, &dsStatusCode, &dsRequestBody, &dsResponseBody, &dsDurationMs, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		row.SessionID = sessionID.String
		row.StatusCode = int(statusCode.Int64)
		row.RequestBody = requestBody.String
		row.Error = logError.String
		row.DurationMs = durationMs.Int64
		row.UserSub = userSub.String
		row.DownstreamURL = dsURL.String
		row.DownstreamMethod = dsMethod.String
		row.DownstreamStatusCode = int(dsStatusCode.Int64)
		row.DownstreamRequestBody = dsRequestBody.String
		row.DownstreamResponseBody = dsResponseBody.String
		row.DownstreamDurationMs = dsDurationMs.Int64
		logs = append(logs, row)
	}
	return logs, rows.Err()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullZero(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullZero64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
