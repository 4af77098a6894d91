package audit

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/couchuser/pkg/observability"
)

// SinkConfig selects the audit sinks to open
type SinkConfig struct {
	// File enables the file sink when set
	File *FileLoggerConfig
	// Database enables the audit_events table sink
	Database bool
}

var newFileSink = func(config FileLoggerConfig) (Logger, error) {
	return NewFileLogger(config)
}

// OpenSinks opens every configured sink behind one MultiLogger. If a sink
// fails to open, the sinks already opened are closed.
func OpenSinks(config SinkConfig, db *sql.DB, metrics *observability.Metrics) (*MultiLogger, error) {
	var sinks []Logger
	fail := func(err error) (*MultiLogger, error) {
		return nil, errors.Join(err, NewMultiLogger(sinks...).Close())
	}

	if config.File != nil {
		fileLogger, err := newFileSink(*config.File)
		if err != nil {
			return fail(fmt.Errorf("open audit log: %w", err))
		}
		sinks = append(sinks, fileLogger)
	}
	if config.Database {
		dbLogger, err := NewDBLogger(db, metrics)
		if err != nil {
			return fail(fmt.Errorf("open audit table: %w", err))
		}
		sinks = append(sinks, dbLogger)
	}

	if len(sinks) == 0 {
		return nil, fmt.Errorf("no audit sink configured")
	}
	return NewMultiLogger(sinks...), nil
}
