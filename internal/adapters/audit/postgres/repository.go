package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"abitudini/gridrange/internal/core/audit"
)

const insertFetchLog = `
	INSERT INTO grid_fetch_audit_log (
		correlation_id, upstream, operation, habit_id, request_method, request_url,
		request_headers, response_status, response_headers, response_body,
		duration_ms, error_message
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const selectByCorrelationID = `
	SELECT id, correlation_id, upstream, operation, habit_id, request_method, request_url,
	       request_headers, response_status, response_headers, response_body,
	       duration_ms, error_message, created_at
	FROM grid_fetch_audit_log
	WHERE correlation_id = $1
	ORDER BY created_at DESC
`

// Repository implements audit.Repository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a PostgreSQL audit repository. log may be nil.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

var _ audit.Repository = (*Repository)(nil)

// Save persists a fetch log entry.
func (r *Repository) Save(ctx context.Context, entry audit.FetchLog) error {
	requestHeaders, err := encodeHeaders(entry.RequestHeaders)
	if err != nil {
		return fmt.Errorf("marshal request headers: %w", err)
	}
	responseHeaders, err := encodeHeaders(entry.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("marshal response headers: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertFetchLog,
		entry.CorrelationID,
		entry.Upstream,
		entry.Operation,
		entry.HabitID,
		entry.RequestMethod,
		entry.RequestURL,
		requestHeaders,
		entry.ResponseStatus,
		responseHeaders,
		nullableJSON(entry.ResponseBody),
		entry.DurationMs,
		entry.ErrorMessage,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("Failed to insert fetch audit log",
				"correlation_id", entry.CorrelationID,
				"operation", entry.Operation,
				"url", entry.RequestURL,
				"error", err,
			)
		}
		return fmt.Errorf("insert fetch audit log: %w", err)
	}

	if r.log != nil {
		r.log.Debug("Fetch audit log saved",
			"correlation_id", entry.CorrelationID,
			"operation", entry.Operation,
			"response_status", entry.ResponseStatus,
			"duration_ms", entry.DurationMs,
		)
	}
	return nil
}

// FindByCorrelationID retrieves all fetch logs with the given correlation ID.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) ([]audit.FetchLog, error) {
	rows, err := r.pool.Query(ctx, selectByCorrelationID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query fetch audit logs: %w", err)
	}
	defer rows.Close()

	var logs []audit.FetchLog
	for rows.Next() {
		var entry audit.FetchLog
		var requestHeaders, responseHeaders, responseBody []byte

		if err := rows.Scan(
			&entry.ID,
			&entry.CorrelationID,
			&entry.Upstream,
			&entry.Operation,
			&entry.HabitID,
			&entry.RequestMethod,
			&entry.RequestURL,
			&requestHeaders,
			&entry.ResponseStatus,
			&responseHeaders,
			&responseBody,
			&entry.DurationMs,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan fetch audit log: %w", err)
		}

		if entry.RequestHeaders, err = decodeHeaders(requestHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal request headers: %w", err)
		}
		if entry.ResponseHeaders, err = decodeHeaders(responseHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal response headers: %w", err)
		}
		entry.ResponseBody = responseBody

		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return logs, nil
}

func encodeHeaders(headers map[string]string) ([]byte, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	return json.Marshal(headers)
}

func decodeHeaders(data []byte) (map[string]string, error) {
	headers := map[string]string{}
	if len(data) == 0 {
		return headers, nil
	}
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, err
	}
	return headers, nil
}

// nullableJSON maps an empty body to SQL NULL instead of an invalid empty JSONB literal.
func nullableJSON(body json.RawMessage) any {
	if len(body) == 0 {
		return nil
	}
	return []byte(body)
}
