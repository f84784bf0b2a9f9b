package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkup/internal/models"
)

var (
	ErrEmptyText       = errors.New("message text is empty")
	ErrEmptyEmoji      = errors.New("reaction emoji is empty")
	ErrMessageNotFound = errors.New("message not found")
	ErrUnknownFilter   = errors.New("unknown filter mode")
	ErrClosed          = errors.New("conversation closed")
)

// ReactionEmojis are the reactions offered by the chat view.
var ReactionEmojis = []string{"❤️", "👍", "😊", "😂", "😮", "😢"}

const (
	DefaultDeliveredAfter = time.Second
	DefaultReadAfter      = 2 * time.Second
)

// Event types emitted by a Store.
const (
	EventMessage  = "message"
	EventEdit     = "edit"
	EventDelete   = "delete"
	EventClear    = "clear"
	EventReaction = "reaction"
	EventPin      = "pin"
	EventStar     = "star"
	EventFlag     = "flag"
	EventStatus   = "status"
	EventRoster   = "roster"
)

// Listener receives store events. It is called without the store lock held.
type Listener func(models.ChatEvent)

// Options tune a Store. Zero values fall back to defaults.
type Options struct {
	DeliveredAfter time.Duration
	ReadAfter      time.Duration
	Scheduler      Scheduler
	Listener       Listener
	Now            func() time.Time
	NewID          func() string
}

func (o Options) withDefaults() Options {
	if o.DeliveredAfter <= 0 {
		o.DeliveredAfter = DefaultDeliveredAfter
	}
	if o.ReadAfter <= 0 {
		o.ReadAfter = DefaultReadAfter
	}
	if o.Scheduler == nil {
		o.Scheduler = RealScheduler{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Store is the in-memory state of one conversation as seen by its owner.
type Store struct {
	mu           sync.Mutex
	emitMu       sync.Mutex
	seq          uint64
	chatID       string
	owner        string
	createdAt    time.Time
	messages     []*models.Message
	index        map[string]*models.Message
	participants []models.Participant
	filter       Filter
	timers       map[string]Timer
	closed       bool
	opts         Options
}

// NewStore creates an empty conversation owned by owner.
func NewStore(chatID, owner string, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		chatID:    chatID,
		owner:     owner,
		createdAt: opts.Now(),
		index:     make(map[string]*models.Message),
		filter:    NoFilter(),
		timers:    make(map[string]Timer),
		opts:      opts,
	}
}

func (s *Store) ChatID() string       { return s.chatID }
func (s *Store) Owner() string        { return s.owner }
func (s *Store) CreatedAt() time.Time { return s.createdAt }

// Send appends a message from the owner and schedules its simulated receipts.
func (s *Store) Send(text, replyTo string, attachments ...models.Attachment) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyText
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Message{}, ErrClosed
	}

	id := s.freshID()
	now := s.opts.Now()
	if _, ok := s.index[replyTo]; !ok {
		replyTo = ""
	}

	msg := &models.Message{
		ID:        id,
		Text:      text,
		Sender:    s.owner,
		Timestamp: now,
		Status:    models.StatusSent,
		ReplyTo:   replyTo,
		Reactions: []models.Reaction{},
	}
	for _, a := range attachments {
		if a.ID == "" {
			a.ID = s.opts.NewID()
		}
		if a.Timestamp.IsZero() {
			a.Timestamp = now
		}
		a.MessageID = id
		msg.Attachments = append(msg.Attachments, a)
	}

	s.messages = append(s.messages, msg)
	s.index[id] = msg
	s.timers[id] = s.opts.Scheduler.AfterFunc(s.opts.DeliveredAfter, func() {
		s.advance(id, models.StatusDelivered)
	})
	out := msg.Clone()
	s.unlockAndEmit(models.ChatEvent{Type: EventMessage, Message: &out, MessageID: id})
	return out, nil
}

// freshID must be called with the lock held.
func (s *Store) freshID() string {
	for {
		id := s.opts.NewID()
		if _, taken := s.index[id]; !taken && id != "" {
			return id
		}
	}
}

// advance moves a message forward to status. The read advance is armed only
// once delivered has been applied.
func (s *Store) advance(id string, status models.MessageStatus) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	msg, ok := s.index[id]
	if !ok {
		delete(s.timers, id)
		s.mu.Unlock()
		return
	}
	if status.Rank() <= msg.Status.Rank() {
		s.mu.Unlock()
		return
	}

	msg.Status = status
	if status == models.StatusDelivered {
		delay := s.opts.ReadAfter - s.opts.DeliveredAfter
		if delay < 0 {
			delay = 0
		}
		s.timers[id] = s.opts.Scheduler.AfterFunc(delay, func() {
			s.advance(id, models.StatusRead)
		})
	} else {
		delete(s.timers, id)
	}
	out := msg.Clone()
	s.unlockAndEmit(models.ChatEvent{Type: EventStatus, Message: &out, MessageID: id})
}

// Edit replaces the text of a message and marks it edited for good.
func (s *Store) Edit(id, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyText
	}
	return s.mutate(id, EventEdit, func(m *models.Message) {
		m.Text = text
		m.Edited = true
	})
}

// Delete removes a message. Replies to it keep their dangling reference.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return ErrMessageNotFound
	}

	delete(s.index, id)
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	s.stopTimer(id)
	s.unlockAndEmit(models.ChatEvent{Type: EventDelete, MessageID: id})
	return nil
}

// Clear removes every message and abandons their pending receipts.
func (s *Store) Clear() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	for id := range s.timers {
		s.stopTimer(id)
	}
	s.messages = nil
	s.index = make(map[string]*models.Message)
	s.unlockAndEmit(models.ChatEvent{Type: EventClear})
	return nil
}

// ToggleReaction flips actor's emoji reaction on a message.
func (s *Store) ToggleReaction(id, emoji, actor string) (models.Message, error) {
	if strings.TrimSpace(emoji) == "" {
		return models.Message{}, ErrEmptyEmoji
	}
	return s.mutate(id, EventReaction, func(m *models.Message) {
		m.Reactions = toggleReaction(m.Reactions, emoji, actor)
	})
}

func toggleReaction(reactions []models.Reaction, emoji, actor string) []models.Reaction {
	for i := range reactions {
		r := &reactions[i]
		if r.Emoji != emoji {
			continue
		}
		for j, u := range r.Users {
			if u == actor {
				r.Users = append(r.Users[:j], r.Users[j+1:]...)
				r.Count = len(r.Users)
				if r.Count == 0 {
					return append(reactions[:i], reactions[i+1:]...)
				}
				return reactions
			}
		}
		r.Users = append(r.Users, actor)
		r.Count = len(r.Users)
		return reactions
	}
	return append(reactions, models.Reaction{Emoji: emoji, Count: 1, Users: []string{actor}})
}

// TogglePin flips the pinned flag and returns the new value.
func (s *Store) TogglePin(id string) (bool, error) {
	return s.toggle(id, EventPin, func(m *models.Message) *bool { return &m.IsPinned })
}

// ToggleStar flips the starred flag and returns the new value.
func (s *Store) ToggleStar(id string) (bool, error) {
	return s.toggle(id, EventStar, func(m *models.Message) *bool { return &m.IsStarred })
}

// ToggleFlag flips the flagged-for-review flag and returns the new value.
func (s *Store) ToggleFlag(id string) (bool, error) {
	return s.toggle(id, EventFlag, func(m *models.Message) *bool { return &m.IsFlagged })
}

func (s *Store) toggle(id, event string, field func(*models.Message) *bool) (bool, error) {
	var value bool
	_, err := s.mutate(id, event, func(m *models.Message) {
		f := field(m)
		*f = !*f
		value = *f
	})
	return value, err
}

func (s *Store) mutate(id, event string, apply func(*models.Message)) (models.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Message{}, ErrClosed
	}
	msg, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return models.Message{}, ErrMessageNotFound
	}
	apply(msg)
	out := msg.Clone()
	s.unlockAndEmit(models.ChatEvent{Type: event, Message: &out, MessageID: id})
	return out, nil
}

// SetFilter replaces the active view filter.
func (s *Store) SetFilter(f Filter) {
	if f.Mode == FilterSearch {
		f = Search(f.Query)
	}
	if f.Mode == "" {
		f = NoFilter()
	}
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Filter returns the active view filter.
func (s *Store) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Project returns the messages matching the active filter in send order.
func (s *Store) Project() []models.MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]models.MessageView, 0, len(s.messages))
	for _, m := range s.messages {
		if !s.filter.match(m) {
			continue
		}
		view := models.MessageView{Message: m.Clone(), IsOwn: m.Sender == s.owner}
		if m.ReplyTo != "" {
			if target, ok := s.index[m.ReplyTo]; ok {
				view.Reply = &models.ReplyPreview{ID: target.ID, Sender: target.Sender, Text: target.Text}
			} else {
				view.ReplyUnavailable = true
			}
		}
		views = append(views, view)
	}
	return views
}

// Get returns a copy of one message.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.index[id]
	if !ok {
		return models.Message{}, false
	}
	return msg.Clone(), true
}

// Len reports the number of messages regardless of filter.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// ListAttachments flattens attachments in message order. An empty type or
// "all" disables the type restriction.
func (s *Store) ListAttachments(fileType string) []models.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := fileType == "" || fileType == "all"
	out := []models.Attachment{}
	for _, m := range s.messages {
		for _, a := range m.Attachments {
			if all || a.FileType == fileType {
				out = append(out, a)
			}
		}
	}
	return out
}

// SetParticipants replaces the roster.
func (s *Store) SetParticipants(participants []models.Participant) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.participants = append([]models.Participant(nil), participants...)
	s.unlockAndEmit(models.ChatEvent{Type: EventRoster})
}

// SetPresence updates the online flag of one participant.
func (s *Store) SetPresence(participantID string, online bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	for i := range s.participants {
		if s.participants[i].ID == participantID {
			s.participants[i].IsOnline = online
			s.unlockAndEmit(models.ChatEvent{Type: EventRoster})
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// Participants returns a copy of the roster.
func (s *Store) Participants() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Participant{}, s.participants...)
}

// Close abandons pending receipts. The store rejects mutations afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id := range s.timers {
		s.stopTimer(id)
	}
}

// stopTimer must be called with the lock held.
func (s *Store) stopTimer(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// unlockAndEmit releases the store lock and hands ev to the listener. The
// emit lock is taken before the store lock is released, so listeners see
// events in the order the store applied them. Listeners must not call back
// into the store.
func (s *Store) unlockAndEmit(ev models.ChatEvent) {
	if s.opts.Listener == nil {
		s.mu.Unlock()
		return
	}
	s.seq++
	ev.Seq = s.seq
	ev.Owner = s.owner
	ev.ChatID = s.chatID

	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.opts.Listener(ev)
}
