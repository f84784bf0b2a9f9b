package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"linkup/internal/models"
)

const (
	ChatEventsRoutingKey = "chat_events.messages"
	WSEventsRoutingKey   = "ws_events.chats"
	AuditRoutingKey      = "audit.session"
)

type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// ChatHeaders are the routing headers of an envelope that concerns one chat.
func ChatHeaders(owner, chatID, eventName string) map[string]string {
	headers := map[string]string{"event_name": eventName}
	if owner != "" {
		headers["owner"] = owner
	}
	if chatID != "" {
		headers["chat_id"] = chatID
	}
	return headers
}

// ChatEventRecorder counts a conversation event and forwards it to the broker.
// It runs on the conversation's listener path, so publishing is bounded.
func ChatEventRecorder(timeout time.Duration) func(models.ChatEvent) {
	return func(ev models.ChatEvent) {
		IncChatEvent(ev.Type)
		if ev.Type == "status" && ev.Message != nil {
			IncReceipt(string(ev.Message.Status))
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := PublishEvent(ctx, ChatEventsRoutingKey, EventEnvelope{
			EventType: "chat_event",
			EventName: ev.Type,
			Payload:   ev,
		}, ChatHeaders(ev.Owner, ev.ChatID, ev.Type))
		if err != nil {
			log.Debug().Err(err).Str("chat_id", ev.ChatID).Str("type", ev.Type).Str("owner", ev.Owner).Uint64("seq", ev.Seq).Msg("chat event publish failed")
		}
	}
}
