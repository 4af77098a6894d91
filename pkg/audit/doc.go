// Package audit records login outcomes for security review.
//
// # Events
//
//	user.login          token issued (status success)
//	user.login_failed   refused (denied) or not completed (failure)
//
// Each event carries the account from the request path, the name the client
// logged in as, client address, user agent and request id. Passwords and
// tokens are never recorded.
//
// # Sinks
//
// FileLogger appends JSON lines to <dir>/audit.log and rotates by size,
// keeping a bounded number of rotated files. DBLogger inserts into the
// audit_events table created by the durable store migrations. MultiLogger
// fans out to several sinks.
//
// AsyncLogger puts a sink behind an async.WorkerPool so handlers never wait
// on it:
//
//	sink := audit.NewMultiLogger(fileLogger, dbLogger)
//	logger := audit.NewAsyncLogger(sink, audit.AsyncOptions{Workers: 2, QueueSize: 1000}, log, metrics)
//	defer logger.Close()
//
//	logger.Log(ctx, audit.LoginEvent(r, name, err))
//
// Events that find the queue full are dropped and counted in
// couchuser_audit_events_total{result="dropped"}.
package audit
