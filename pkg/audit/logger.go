package audit

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/couchuser/pkg/contextkeys"
	"github.com/platinummonkey/couchuser/pkg/httputil"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink
	Close() error
}

// NopLogger discards events
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }

func (NopLogger) Close() error { return nil }

// NewEvent creates an event populated from the request and its context
func NewEvent(r *http.Request, eventType EventType, status EventStatus) *Event {
	ctx := r.Context()
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Account:   contextkeys.GetAccount(ctx),
		IPAddress: httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: contextkeys.GetRequestID(ctx),
	}
}

// LoginEvent records the outcome of a login attempt by name. Refusals
// (bad credentials, missing fields) are denied; anything else that stopped
// the login is a failure.
func LoginEvent(r *http.Request, name string, err error) *Event {
	if err == nil {
		event := NewEvent(r, EventTypeLogin, EventStatusSuccess)
		event.Username = name
		event.Message = "token issued"
		return event
	}

	status := EventStatusFailure
	if errors.Is(err, users.ErrAuthentication) || errors.Is(err, users.ErrValidation) {
		status = EventStatusDenied
	}

	event := NewEvent(r, EventTypeLoginFailed, status)
	event.Username = name
	event.ErrorMessage = err.Error()
	return event
}
