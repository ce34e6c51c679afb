package store

import (
	"maps"
	"slices"
	"sync"

	"github.com/namikmesic/chatstream/internal/transcript"
)

// Observer is notified of every change. deleted is true when the entry was
// removed; e then carries the last stored value.
type Observer func(e transcript.Entry, deleted bool)

// Memory is the client-local transcript store: a key-by-id map with
// per-conversation insertion order and last-write-wins puts.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]transcript.Entry
	order     map[string][]string // conversation id -> entry ids
	observers map[int]Observer
	nextObs   int
}

func NewMemory() *Memory {
	return &Memory{
		entries:   make(map[string]transcript.Entry),
		order:     make(map[string][]string),
		observers: make(map[int]Observer),
	}
}

func (m *Memory) Put(e transcript.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[e.ID]; !ok {
		m.order[e.ConversationID] = append(m.order[e.ConversationID], e.ID)
	}
	m.entries[e.ID] = e
	m.notify(e, false)
}

func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return
	}
	delete(m.entries, id)
	ids := slices.DeleteFunc(slices.Clone(m.order[e.ConversationID]), func(v string) bool { return v == id })
	if len(ids) == 0 {
		delete(m.order, e.ConversationID)
	} else {
		m.order[e.ConversationID] = ids
	}
	m.notify(e, true)
}

func (m *Memory) Get(id string) (transcript.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// Entries returns the conversation's entries in insertion order.
func (m *Memory) Entries(conversationID string) []transcript.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.order[conversationID]
	out := make([]transcript.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.entries[id])
	}
	return out
}

func (m *Memory) Conversations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.order))
	for id := range m.order {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it. Observers run synchronously in change order and must not
// call back into the store.
func (m *Memory) Subscribe(fn Observer) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// notify runs with m.mu held so observers see changes in order.
func (m *Memory) notify(e transcript.Entry, deleted bool) {
	for _, id := range slices.Sorted(maps.Keys(m.observers)) {
		m.observers[id](e, deleted)
	}
}
