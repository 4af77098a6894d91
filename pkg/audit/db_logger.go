package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/couchuser/pkg/observability"
)

const insertEventQuery = `
	INSERT INTO audit_events (
		occurred_at, event_type, status,
		account, username,
		ip_address, user_agent, request_id,
		message, error_message, metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// DBLogger writes audit events to the audit_events table of the durable
// store. The table is created by the store migrations.
type DBLogger struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB, metrics *observability.Metrics) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db, metrics: metrics}, nil
}

// Log inserts an audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) (err error) {
	start := time.Now()
	defer func() { l.metrics.RecordStorageOperation("insert_audit_event", start, err) }()

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err = l.db.ExecContext(ctx, insertEventQuery,
		event.Timestamp, string(event.EventType), string(event.Status),
		event.Account, event.Username,
		event.IPAddress, event.UserAgent, event.RequestID,
		event.Message, event.ErrorMessage, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the durable store
func (l *DBLogger) Close() error {
	return nil
}
