package conversation

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"linkup/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// Registry owns the open conversations of every user.
type Registry struct {
	mu      sync.RWMutex
	chats   map[string]map[string]*Store
	opts    Options
	onOpen  func(*Store)
	onClose func(*Store)
}

// NewRegistry builds a Registry whose stores share opts. The listener in
// opts receives the events of every store.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		chats: make(map[string]map[string]*Store),
		opts:  opts,
	}
}

// OnOpen registers a hook run for each newly created store.
func (r *Registry) OnOpen(fn func(*Store)) {
	r.mu.Lock()
	r.onOpen = fn
	r.mu.Unlock()
}

// Open returns owner's chat, creating it when needed. An empty chatID
// creates a new chat with a generated id.
func (r *Registry) Open(owner, chatID string) (*Store, bool) {
	if chatID == "" {
		chatID = uuid.NewString()
	}

	r.mu.Lock()
	chats, ok := r.chats[owner]
	if !ok {
		chats = make(map[string]*Store)
		r.chats[owner] = chats
	}
	if store, ok := chats[chatID]; ok {
		r.mu.Unlock()
		return store, false
	}
	store := NewStore(chatID, owner, r.opts)
	chats[chatID] = store
	hook := r.onOpen
	r.mu.Unlock()

	if hook != nil {
		hook(store)
	}
	return store, true
}

// OnClose registers a hook run for each store closed through the registry.
func (r *Registry) OnClose(fn func(*Store)) {
	r.mu.Lock()
	r.onClose = fn
	r.mu.Unlock()
}

// Get returns an open chat of owner.
func (r *Registry) Get(owner, chatID string) (*Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.chats[owner][chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return store, nil
}

// List returns owner's open chats, oldest first.
func (r *Registry) List(owner string) []models.ChatSummary {
	r.mu.RLock()
	stores := make([]*Store, 0, len(r.chats[owner]))
	for _, store := range r.chats[owner] {
		stores = append(stores, store)
	}
	r.mu.RUnlock()

	sort.Slice(stores, func(i, j int) bool {
		if stores[i].CreatedAt().Equal(stores[j].CreatedAt()) {
			return stores[i].ChatID() < stores[j].ChatID()
		}
		return stores[i].CreatedAt().Before(stores[j].CreatedAt())
	})

	out := make([]models.ChatSummary, 0, len(stores))
	for _, store := range stores {
		out = append(out, models.ChatSummary{
			ChatID:       store.ChatID(),
			MessageCount: store.Len(),
			CreatedAt:    store.CreatedAt(),
		})
	}
	return out
}

// Close abandons owner's chat and its pending receipts.
func (r *Registry) Close(owner, chatID string) error {
	r.mu.Lock()
	store, ok := r.chats[owner][chatID]
	if ok {
		delete(r.chats[owner], chatID)
		if len(r.chats[owner]) == 0 {
			delete(r.chats, owner)
		}
	}
	hook := r.onClose
	r.mu.Unlock()

	if !ok {
		return ErrChatNotFound
	}
	store.Close()
	if hook != nil {
		hook(store)
	}
	return nil
}

// CloseAll closes every open chat.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.chats
	r.chats = make(map[string]map[string]*Store)
	hook := r.onClose
	r.mu.Unlock()

	for _, chats := range all {
		for _, store := range chats {
			store.Close()
			if hook != nil {
				hook(store)
			}
		}
	}
}
