package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// EventTypeLogin is a login that issued a token
	EventTypeLogin EventType = "user.login"
	// EventTypeLoginFailed is a login that was refused or could not complete
	EventTypeLoginFailed EventType = "user.login_failed"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	// EventStatusFailure means the service could not complete the request
	EventStatusFailure EventStatus = "failure"
	// EventStatusDenied means the caller was refused
	EventStatusDenied EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	Account  string `json:"account"`
	Username string `json:"username,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
