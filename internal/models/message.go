package models

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// MessageStatus is the simulated delivery state of a message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Rank orders statuses so that transitions can only move forward.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Reaction aggregates the users that tagged a message with one emoji.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// Attachment is an already-hosted file referenced by a message.
type Attachment struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id"`
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// DisplaySize renders the file size the way the chat view shows it: powers of
// 1024, at most two decimals, trailing zeros dropped ("1.5 KB", "0 Bytes").
func (a Attachment) DisplaySize() string {
	if a.FileSize <= 0 {
		return "0 Bytes"
	}
	value, i := float64(a.FileSize), 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}
	return humanize.FtoaWithDigits(math.Round(value*100)/100, 2) + " " + sizeUnits[i]
}

// Message represents a chat message.
type Message struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	Sender      string        `json:"sender"`
	Timestamp   time.Time     `json:"timestamp"`
	Status      MessageStatus `json:"status"`
	Edited      bool          `json:"edited"`
	ReplyTo     string        `json:"reply_to,omitempty"`
	Reactions   []Reaction    `json:"reactions"`
	IsPinned    bool          `json:"is_pinned"`
	IsStarred   bool          `json:"is_starred"`
	IsFlagged   bool          `json:"is_flagged"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (m Message) Clone() Message {
	out := m
	out.Reactions = make([]Reaction, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		users := make([]string, len(r.Users))
		copy(users, r.Users)
		out.Reactions = append(out.Reactions, Reaction{Emoji: r.Emoji, Count: r.Count, Users: users})
	}
	if m.Attachments != nil {
		out.Attachments = make([]Attachment, len(m.Attachments))
		copy(out.Attachments, m.Attachments)
	}
	return out
}

// ReplyPreview is the resolved target of a reply.
type ReplyPreview struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// MessageView is a message as projected for one reader.
type MessageView struct {
	Message
	IsOwn            bool          `json:"is_own"`
	Reply            *ReplyPreview `json:"reply,omitempty"`
	ReplyUnavailable bool          `json:"reply_unavailable,omitempty"`
}

// ChatEvent is emitted by a conversation and broadcast through websockets.
// Seq increases by one per event of a chat; a client keeps the snapshot with
// the highest Seq.
type ChatEvent struct {
	Seq       uint64   `json:"seq"`
	Type      string   `json:"type"`
	Owner     string   `json:"owner"`
	ChatID    string   `json:"chat_id"`
	Message   *Message `json:"message,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
}
