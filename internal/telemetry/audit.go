package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Publisher delivers envelopes to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// SessionAction names a step of the session flows.
type SessionAction string

const (
	ActionLogin          SessionAction = "login"
	ActionLoginFailed    SessionAction = "login_failed"
	ActionRegister       SessionAction = "register"
	ActionRegisterFailed SessionAction = "register_failed"
	ActionLogout         SessionAction = "logout"
	ActionStaleToken     SessionAction = "stale_token"
	ActionDebug          SessionAction = "debug"
)

// AuditRecord is one session audit entry. UserID is empty for anonymous
// callers.
type AuditRecord struct {
	Action    SessionAction
	Level     string
	Text      string
	RequestID string
	UserID    string
}

// SessionAuditEnvelope is the broker message for a session audit entry.
type SessionAuditEnvelope struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	Action        SessionAction `json:"action"`
	Level         string        `json:"level"`
	Text          string        `json:"text"`
	OccurredAt    time.Time     `json:"occurred_at"`
	Service       string        `json:"service"`
	Environment   string        `json:"environment"`
	RequestID     string        `json:"request_id,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
}

// AuditEmitter publishes session audit entries (login, register, logout,
// rejected stored tokens).
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Record publishes rec. Failures are logged and never reach the caller.
func (e *AuditEmitter) Record(ctx context.Context, rec AuditRecord) {
	if e == nil || e.publisher == nil {
		return
	}
	if rec.Level == "" {
		rec.Level = "INFO"
	}

	envelope := SessionAuditEnvelope{
		SchemaVersion: 2,
		EventType:     "session_audit",
		Action:        rec.Action,
		Level:         rec.Level,
		Text:          rec.Text,
		OccurredAt:    e.now().UTC(),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     rec.RequestID,
		UserID:        rec.UserID,
	}

	headers := map[string]string{"x-audit-action": string(rec.Action)}
	if rec.RequestID != "" {
		headers["x-request-id"] = rec.RequestID
	}
	if rec.UserID != "" {
		headers["owner"] = rec.UserID
	}

	log.Debug().Str("action", string(rec.Action)).Str("request_id", rec.RequestID).Msg("session audit")
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		log.Error().Err(err).Str("action", string(rec.Action)).Msg("session audit publish failed")
	}
}
