package models

import "time"

// Participant is a roster entry supplied by the presence source.
type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	IsOnline bool   `json:"is_online"`
}

// ChatSummary provides API-friendly view of an open chat for its owner.
type ChatSummary struct {
	ChatID       string    `json:"chat_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}
