package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"linkup/internal/conversation"
	"linkup/internal/middleware"
	"linkup/internal/models"
	"linkup/internal/validation"
)

// ChatRegistry is the set of open conversations keyed by owner.
type ChatRegistry interface {
	Open(owner, chatID string) (*conversation.Store, bool)
	Get(owner, chatID string) (*conversation.Store, error)
	List(owner string) []models.ChatSummary
	Close(owner, chatID string) error
}

// RoomCloser disconnects the websocket clients of a closed chat.
type RoomCloser interface {
	CloseRoom(owner, chatID string)
}

// ChatHandler exposes the conversation stores over HTTP.
type ChatHandler struct {
	chats ChatRegistry
	rooms RoomCloser
}

// NewChatHandler builds a ChatHandler. rooms may be nil.
func NewChatHandler(chats ChatRegistry, rooms RoomCloser) *ChatHandler {
	return &ChatHandler{chats: chats, rooms: rooms}
}

type attachmentInput struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	URL      string `json:"url"`
}

type attachmentResponse struct {
	models.Attachment
	DisplaySize string `json:"display_size"`
}

func ownerFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// store resolves the chat of the request, answering 404 when it is not open.
func (h *ChatHandler) store(c *gin.Context) (*conversation.Store, bool) {
	store, err := h.chats.Get(ownerFromContext(c), c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return nil, false
	}
	return store, true
}

// writeStoreError maps store errors to responses. It reports whether err was handled.
func writeStoreError(c *gin.Context, err error) bool {
	var verr *validation.ValidationError
	switch {
	case err == nil:
		return false
	case errors.Is(err, conversation.ErrMessageNotFound):
		c.Status(http.StatusNoContent)
	case errors.Is(err, conversation.ErrEmptyText):
		c.JSON(http.StatusBadRequest, validationBody(validation.Field("text", "Message cannot be empty")))
	case errors.Is(err, conversation.ErrEmptyEmoji):
		c.JSON(http.StatusBadRequest, validationBody(validation.Field("emoji", "Emoji is required")))
	case errors.Is(err, conversation.ErrUnknownFilter):
		c.JSON(http.StatusBadRequest, validationBody(validation.Field("mode", "Unknown filter")))
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, validationBody(verr))
	case errors.Is(err, conversation.ErrClosed):
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
	return true
}

func validationBody(err *validation.ValidationError) gin.H {
	return gin.H{"error": "validation failed", "fields": err.Fields}
}

// OpenChat returns the caller's chat, creating it when needed.
func (h *ChatHandler) OpenChat(c *gin.Context) {
	var req struct {
		ChatID       string               `json:"chat_id"`
		Participants []models.Participant `json:"participants"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	store, created := h.chats.Open(ownerFromContext(c), strings.TrimSpace(req.ChatID))
	if req.Participants != nil {
		store.SetParticipants(req.Participants)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"chat_id": store.ChatID(), "created": created})
}

// ListChats returns the caller's open chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chats": h.chats.List(ownerFromContext(c))})
}

// CloseChat abandons a chat and its pending receipts.
func (h *ChatHandler) CloseChat(c *gin.Context) {
	owner, chatID := ownerFromContext(c), c.Param("chat_id")
	if err := h.chats.Close(owner, chatID); err != nil {
		if errors.Is(err, conversation.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close chat"})
		return
	}
	if h.rooms != nil {
		h.rooms.CloseRoom(owner, chatID)
	}
	c.Status(http.StatusNoContent)
}

// GetMessages returns the projection under the active filter.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": store.Project(),
		"filter":   store.Filter(),
	})
}

// SendMessage appends a message from the caller.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req struct {
		Text        string            `json:"text"`
		ReplyTo     string            `json:"reply_to"`
		Attachments []attachmentInput `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attachments := make([]models.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, models.Attachment{
			FileName: a.FileName,
			FileType: a.FileType,
			FileSize: a.FileSize,
			URL:      a.URL,
		})
	}

	msg, err := store.Send(req.Text, req.ReplyTo, attachments...)
	if writeStoreError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ClearMessages removes every message of the chat.
func (h *ChatHandler) ClearMessages(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	if writeStoreError(c, store.Clear()) {
		return
	}
	c.Status(http.StatusNoContent)
}

// EditMessage replaces the text of a message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := store.Edit(c.Param("message_id"), req.Text)
	if writeStoreError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage removes a message. Replies to it become unavailable.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	if writeStoreError(c, store.Delete(c.Param("message_id"))) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleReaction flips the caller's reaction on a message.
func (h *ChatHandler) ToggleReaction(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := store.ToggleReaction(c.Param("message_id"), req.Emoji, ownerFromContext(c))
	if writeStoreError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": msg.ID, "reactions": msg.Reactions})
}

// TogglePin flips the pinned flag.
func (h *ChatHandler) TogglePin(c *gin.Context) {
	h.toggleFlag(c, "is_pinned", (*conversation.Store).TogglePin)
}

// ToggleStar flips the starred flag.
func (h *ChatHandler) ToggleStar(c *gin.Context) {
	h.toggleFlag(c, "is_starred", (*conversation.Store).ToggleStar)
}

// ToggleFlag flips the flagged flag.
func (h *ChatHandler) ToggleFlag(c *gin.Context) {
	h.toggleFlag(c, "is_flagged", (*conversation.Store).ToggleFlag)
}

func (h *ChatHandler) toggleFlag(c *gin.Context, field string, toggle func(*conversation.Store, string) (bool, error)) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	id := c.Param("message_id")
	value, err := toggle(store, id)
	if writeStoreError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": id, field: value})
}

// SetFilter activates exactly one view filter.
func (h *ChatHandler) SetFilter(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req struct {
		Mode  string `json:"mode"`
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter, err := conversation.ParseFilter(req.Mode, req.Query)
	if writeStoreError(c, err) {
		return
	}
	store.SetFilter(filter)
	c.JSON(http.StatusOK, gin.H{"filter": store.Filter()})
}

// ListAttachments returns the attachment index, optionally limited to one type.
func (h *ChatHandler) ListAttachments(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	attachments := store.ListAttachments(c.Query("type"))
	out := make([]attachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, attachmentResponse{Attachment: a, DisplaySize: a.DisplaySize()})
	}
	c.JSON(http.StatusOK, gin.H{"attachments": out})
}

// GetParticipants returns the roster.
func (h *ChatHandler) GetParticipants(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": store.Participants()})
}

// SetParticipants replaces the roster with the one supplied by the presence source.
func (h *ChatHandler) SetParticipants(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req struct {
		Participants []models.Participant `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store.SetParticipants(req.Participants)
	c.JSON(http.StatusOK, gin.H{"participants": store.Participants()})
}

// SetPresence updates one participant's online flag. Unknown ids are ignored.
func (h *ChatHandler) SetPresence(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req struct {
		Online bool `json:"online"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store.SetPresence(c.Param("participant_id"), req.Online)
	c.Status(http.StatusNoContent)
}
