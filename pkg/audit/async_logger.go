package audit

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/couchuser/pkg/async"
	"github.com/platinummonkey/couchuser/pkg/observability"
)

// Audit event outcome label values
const (
	ResultWritten = "written"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// AsyncOptions configures an AsyncLogger
type AsyncOptions struct {
	Workers   int
	QueueSize int
	// Timeout bounds each write to the sink
	Timeout time.Duration
	// ShutdownTimeout bounds draining queued events on Close
	ShutdownTimeout time.Duration
}

// AsyncLogger hands events to a worker pool so request handlers never wait
// on the sink. Events that find the queue full are dropped and counted.
type AsyncLogger struct {
	sink            Logger
	pool            *async.WorkerPool
	shutdownTimeout time.Duration
	logger          *observability.Logger
	metrics         *observability.Metrics
}

// NewAsyncLogger wraps sink. Close shuts the pool down and closes sink.
func NewAsyncLogger(sink Logger, opts AsyncOptions, logger *observability.Logger, metrics *observability.Metrics) *AsyncLogger {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	return &AsyncLogger{
		sink: sink,
		pool: async.NewWorkerPool(context.Background(), "audit write", async.PoolOptions{
			Workers:   opts.Workers,
			QueueSize: opts.QueueSize,
			Timeout:   opts.Timeout,
			Logger:    logger,
		}),
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          logger,
		metrics:         metrics,
	}
}

// Log queues event. It returns an error only when the event was dropped.
func (l *AsyncLogger) Log(ctx context.Context, event *Event) error {
	err := l.pool.Submit(func(ctx context.Context) error {
		if err := l.sink.Log(ctx, event); err != nil {
			l.metrics.RecordAuditEvent(ResultFailed)
			return err
		}
		l.metrics.RecordAuditEvent(ResultWritten)
		return nil
	})
	if err != nil {
		l.metrics.RecordAuditEvent(ResultDropped)
		return err
	}
	return nil
}

// Close drains queued events and closes the sink
func (l *AsyncLogger) Close() error {
	return errors.Join(l.pool.Shutdown(l.shutdownTimeout), l.sink.Close())
}
