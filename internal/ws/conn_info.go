package ws

import (
	"time"

	"linkup/internal/observability"
)

type ConnInfo struct {
	ConnID      string
	Owner       string
	ChatID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// headers tags a websocket envelope with the chat it belongs to.
func (i ConnInfo) headers(event string) map[string]string {
	headers := observability.BuildHeaders(i.RequestID, i.TraceID)
	for key, value := range observability.ChatHeaders(i.Owner, i.ChatID, event) {
		headers[key] = value
	}
	return headers
}
