package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkup/internal/models"
)

type manualTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// manualScheduler fires callbacks only when the test advances its clock.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{at: s.now + d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		var next *manualTimer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		if next.at > s.now {
			s.now = next.at
		}
		next.fired = true
		s.mu.Unlock()
		next.fn()
	}
}

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	events []models.ChatEvent
}

func (r *recorder) listen(ev models.ChatEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestStore(t *testing.T) (*Store, *manualScheduler, *recorder) {
	t.Helper()
	sched := &manualScheduler{}
	rec := &recorder{}
	seq := 0
	store := NewStore("chat-1", "You", Options{
		Scheduler: sched,
		Listener:  rec.listen,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	return store, sched, rec
}

func TestSendRejectsBlankText(t *testing.T) {
	store, sched, rec := newTestStore(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := store.Send(text, "")
		assert.ErrorIs(t, err, ErrEmptyText)
	}

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, sched.Pending())
	assert.Empty(t, rec.types())
}

func TestSendAppendsSentMessage(t *testing.T) {
	store, _, _ := newTestStore(t)

	msg, err := store.Send("hi", "")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, models.StatusSent, msg.Status)
	assert.Equal(t, "You", msg.Sender)
	assert.False(t, msg.Edited)
	assert.Empty(t, msg.Reactions)

	views := store.Project()
	require.Len(t, views, 1)
	assert.True(t, views[0].IsOwn)
}

func TestStatusAdvancesDeliveredThenRead(t *testing.T) {
	store, sched, rec := newTestStore(t)
	msg, err := store.Send("hi", "")
	require.NoError(t, err)

	sched.Advance(500 * time.Millisecond)
	got, _ := store.Get(msg.ID)
	assert.Equal(t, models.StatusSent, got.Status)

	sched.Advance(500 * time.Millisecond)
	got, _ = store.Get(msg.ID)
	assert.Equal(t, models.StatusDelivered, got.Status)

	sched.Advance(time.Second)
	got, _ = store.Get(msg.ID)
	assert.Equal(t, models.StatusRead, got.Status)

	assert.Equal(t, []string{EventMessage, EventStatus, EventStatus}, rec.types())
	assert.Equal(t, 0, sched.Pending())
}

func TestDeleteBeforeReceiptNeverResurrects(t *testing.T) {
	store, sched, rec := newTestStore(t)
	msg, err := store.Send("bye", "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(msg.ID))
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(5 * time.Second)
	_, ok := store.Get(msg.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []string{EventMessage, EventDelete}, rec.types())
}

func TestDeleteBetweenDeliveredAndRead(t *testing.T) {
	store, sched, _ := newTestStore(t)
	msg, _ := store.Send("bye", "")

	sched.Advance(time.Second)
	require.NoError(t, store.Delete(msg.ID))
	sched.Advance(time.Second)

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, sched.Pending())
}

func TestStaleCallbackIsNoop(t *testing.T) {
	store, _, rec := newTestStore(t)
	msg, _ := store.Send("x", "")
	require.NoError(t, store.Delete(msg.ID))

	store.advance(msg.ID, models.StatusDelivered)
	_, ok := store.Get(msg.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{EventMessage, EventDelete}, rec.types())
}

func TestStatusNeverRegresses(t *testing.T) {
	store, sched, _ := newTestStore(t)
	msg, _ := store.Send("x", "")
	sched.Advance(2 * time.Second)

	store.advance(msg.ID, models.StatusDelivered)
	got, _ := store.Get(msg.ID)
	assert.Equal(t, models.StatusRead, got.Status)
}

func TestEdit(t *testing.T) {
	store, _, _ := newTestStore(t)
	msg, _ := store.Send("old", "")

	_, err := store.Edit(msg.ID, "")
	assert.ErrorIs(t, err, ErrEmptyText)
	got, _ := store.Get(msg.ID)
	assert.Equal(t, "old", got.Text)
	assert.False(t, got.Edited)

	edited, err := store.Edit(msg.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", edited.Text)
	assert.True(t, edited.Edited)

	again, err := store.Edit(msg.ID, "newer")
	require.NoError(t, err)
	assert.True(t, again.Edited)

	_, err = store.Edit("missing", "text")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestToggleReactionKeepsCountInSync(t *testing.T) {
	store, _, _ := newTestStore(t)
	msg, _ := store.Send("react to me", "")

	steps := []struct {
		emoji, actor string
	}{
		{"👍", "You"}, {"👍", "Jane"}, {"❤️", "You"}, {"👍", "You"},
		{"👍", "Jane"}, {"❤️", "Mike"}, {"❤️", "You"}, {"❤️", "Mike"},
		{"😂", "Jane"}, {"😂", "Jane"}, {"😂", "Jane"},
	}
	for _, step := range steps {
		got, err := store.ToggleReaction(msg.ID, step.emoji, step.actor)
		require.NoError(t, err)
		for _, r := range got.Reactions {
			assert.Equal(t, len(r.Users), r.Count)
			assert.Greater(t, r.Count, 0)
		}
	}

	got, _ := store.Get(msg.ID)
	require.Len(t, got.Reactions, 1)
	assert.Equal(t, models.Reaction{Emoji: "😂", Count: 1, Users: []string{"Jane"}}, got.Reactions[0])
}

func TestToggleReactionFlipsAndPreservesOrder(t *testing.T) {
	store, _, _ := newTestStore(t)
	msg, _ := store.Send("x", "")

	store.ToggleReaction(msg.ID, "👍", "You")
	store.ToggleReaction(msg.ID, "❤️", "You")
	got, _ := store.ToggleReaction(msg.ID, "👍", "Jane")
	require.Len(t, got.Reactions, 2)
	assert.Equal(t, "👍", got.Reactions[0].Emoji)
	assert.Equal(t, []string{"You", "Jane"}, got.Reactions[0].Users)

	store.ToggleReaction(msg.ID, "👍", "You")
	got, _ = store.ToggleReaction(msg.ID, "👍", "You")
	assert.Equal(t, 2, got.Reactions[0].Count)

	_, err := store.ToggleReaction(msg.ID, " ", "You")
	assert.ErrorIs(t, err, ErrEmptyEmoji)
	_, err = store.ToggleReaction("missing", "👍", "You")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestReturnedMessagesDoNotAliasState(t *testing.T) {
	store, _, _ := newTestStore(t)
	msg, _ := store.Send("x", "")
	got, _ := store.ToggleReaction(msg.ID, "👍", "You")

	got.Reactions[0].Users[0] = "Mallory"
	fresh, _ := store.Get(msg.ID)
	assert.Equal(t, []string{"You"}, fresh.Reactions[0].Users)
}

func TestToggleFlags(t *testing.T) {
	store, _, rec := newTestStore(t)
	msg, _ := store.Send("x", "")

	pinned, err := store.TogglePin(msg.ID)
	require.NoError(t, err)
	assert.True(t, pinned)
	starred, _ := store.ToggleStar(msg.ID)
	assert.True(t, starred)
	flagged, _ := store.ToggleFlag(msg.ID)
	assert.True(t, flagged)
	pinned, _ = store.TogglePin(msg.ID)
	assert.False(t, pinned)

	got, _ := store.Get(msg.ID)
	assert.False(t, got.IsPinned)
	assert.True(t, got.IsStarred)
	assert.True(t, got.IsFlagged)

	_, err = store.ToggleStar("missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Equal(t, []string{EventMessage, EventPin, EventStar, EventFlag, EventPin}, rec.types())
}

func TestFilters(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, _ := store.Send("Hello there", "")
	b, _ := store.Send("general kenobi", "")
	c, _ := store.Send("HELLO again", "")
	store.ToggleStar(a.ID)
	store.ToggleStar(c.ID)
	store.TogglePin(b.ID)

	store.SetFilter(Starred())
	assert.Equal(t, []string{a.ID, c.ID}, ids(store.Project()))

	store.SetFilter(Pinned())
	assert.Equal(t, []string{b.ID}, ids(store.Project()))
	assert.Equal(t, FilterPinned, store.Filter().Mode)

	store.SetFilter(Search("hello"))
	assert.Equal(t, []string{a.ID, c.ID}, ids(store.Project()))

	store.SetFilter(Search("   "))
	assert.Equal(t, FilterNone, store.Filter().Mode)

	store.SetFilter(NoFilter())
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(store.Project()))
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("starred", "ignored")
	require.NoError(t, err)
	assert.Equal(t, Starred(), f)

	f, err = ParseFilter("", "")
	require.NoError(t, err)
	assert.Equal(t, NoFilter(), f)

	f, err = ParseFilter("Search", "abc")
	require.NoError(t, err)
	assert.Equal(t, Filter{Mode: FilterSearch, Query: "abc"}, f)

	_, err = ParseFilter("everything", "")
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestReplyToDeletedMessageIsUnavailable(t *testing.T) {
	store, _, _ := newTestStore(t)
	original, _ := store.Send("question?", "")
	reply, err := store.Send("answer", original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, reply.ReplyTo)

	views := store.Project()
	require.Len(t, views, 2)
	require.NotNil(t, views[1].Reply)
	assert.Equal(t, "question?", views[1].Reply.Text)

	require.NoError(t, store.Delete(original.ID))
	views = store.Project()
	require.Len(t, views, 1)
	assert.Equal(t, original.ID, views[0].ReplyTo)
	assert.Nil(t, views[0].Reply)
	assert.True(t, views[0].ReplyUnavailable)
}

func TestReplyToUnknownMessageIsDropped(t *testing.T) {
	store, _, _ := newTestStore(t)
	msg, err := store.Send("hi", "does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, msg.ReplyTo)
}

func TestListAttachments(t *testing.T) {
	store, _, _ := newTestStore(t)
	first, _ := store.Send("doc", "", models.Attachment{FileName: "document.pdf", FileType: "pdf", FileSize: 1024576, URL: "#"})
	second, _ := store.Send("pics", "",
		models.Attachment{FileName: "image1.jpg", FileType: "image", FileSize: 512000, URL: "#"},
		models.Attachment{FileName: "image2.jpg", FileType: "image", FileSize: 768000, URL: "#"},
	)
	store.Send("no files", "")

	images := store.ListAttachments("image")
	require.Len(t, images, 2)
	assert.Equal(t, "image1.jpg", images[0].FileName)
	assert.Equal(t, "image2.jpg", images[1].FileName)
	for _, a := range images {
		assert.Equal(t, second.ID, a.MessageID)
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.Timestamp.IsZero())
	}

	all := store.ListAttachments("all")
	require.Len(t, all, 3)
	assert.Equal(t, first.ID, all[0].MessageID)
	assert.Len(t, store.ListAttachments(""), 3)
	assert.Empty(t, store.ListAttachments("video"))
}

func TestClearAbandonsReceipts(t *testing.T) {
	store, sched, rec := newTestStore(t)
	store.Send("one", "")
	store.Send("two", "")
	store.SetFilter(Starred())

	require.NoError(t, store.Clear())
	assert.Equal(t, 0, sched.Pending())
	sched.Advance(10 * time.Second)

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, FilterStarred, store.Filter().Mode)
	assert.Equal(t, []string{EventMessage, EventMessage, EventClear}, rec.types())
}

func TestCloseStopsTimersAndRejectsMutations(t *testing.T) {
	store, sched, rec := newTestStore(t)
	msg, _ := store.Send("x", "")

	store.Close()
	store.Close()
	assert.Equal(t, 0, sched.Pending())
	sched.Advance(10 * time.Second)

	got, ok := store.Get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusSent, got.Status)

	_, err := store.Send("y", "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Delete(msg.ID), ErrClosed)
	store.SetParticipants([]models.Participant{{ID: "1"}})
	assert.Equal(t, []string{EventMessage}, rec.types())
}

func TestRoster(t *testing.T) {
	store, _, rec := newTestStore(t)
	store.SetParticipants([]models.Participant{
		{ID: "1", Name: "John Doe", IsOnline: true},
		{ID: "3", Name: "Mike Johnson"},
	})

	assert.True(t, store.SetPresence("3", true))
	assert.False(t, store.SetPresence("9", true))

	roster := store.Participants()
	require.Len(t, roster, 2)
	assert.True(t, roster[1].IsOnline)

	roster[0].Name = "changed"
	assert.Equal(t, "John Doe", store.Participants()[0].Name)
	assert.Equal(t, []string{EventRoster, EventRoster}, rec.types())
}

func TestRealSchedulerDeliversReceipts(t *testing.T) {
	store := NewStore("chat", "You", Options{
		DeliveredAfter: 5 * time.Millisecond,
		ReadAfter:      10 * time.Millisecond,
	})
	defer store.Close()

	msg, err := store.Send("hi", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, _ := store.Get(msg.ID)
		return got.Status == models.StatusRead
	}, time.Second, 5*time.Millisecond)
}

func ids(views []models.MessageView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestEventsReachListenerInApplyOrder(t *testing.T) {
	sched := &manualScheduler{}
	entered := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var events []models.ChatEvent
	store := NewStore("chat-1", "You", Options{
		Scheduler: sched,
		Listener: func(ev models.ChatEvent) {
			if ev.Type == EventReaction {
				close(entered)
				<-release
			}
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})

	msg, err := store.Send("hi", "")
	require.NoError(t, err)

	reacted := make(chan struct{})
	go func() {
		defer close(reacted)
		_, err := store.ToggleReaction(msg.ID, "👍", "You")
		assert.NoError(t, err)
	}()
	<-entered

	advanced := make(chan struct{})
	go func() {
		defer close(advanced)
		sched.Advance(time.Second)
	}()
	close(release)
	<-reacted
	<-advanced

	got, ok := store.Get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusDelivered, got.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, []string{EventMessage, EventReaction, EventStatus}, []string{events[0].Type, events[1].Type, events[2].Type})
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	last := events[len(events)-1]
	require.NotNil(t, last.Message)
	assert.Equal(t, models.StatusDelivered, last.Message.Status)
	assert.Len(t, last.Message.Reactions, 1)
}
