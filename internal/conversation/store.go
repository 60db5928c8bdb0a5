// Package conversation keeps per-conversation message logs and trims them to a token budget.
package conversation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alexr72/wpcv/internal/core"
)

// Budget is the token limit a trimmed conversation must fit under, together with the
// headroom reserved for everything sent alongside it.
type Budget struct {
	Limit    int
	Headroom int
}

type TrimResult struct {
	Removed int
	Used    int
	Limit   int
}

// Info describes a stored conversation.
type Info struct {
	ID           core.ConversationID
	MessageCount int
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

type conversation struct {
	mu       sync.Mutex
	messages []core.Message
	modified time.Time
}

// Store owns every conversation. Mutations of one conversation are serialized by that
// conversation's lock; distinct conversations never contend beyond the map lookup.
type Store struct {
	mu            sync.RWMutex
	conversations map[core.ConversationID]*conversation
	files         *fileLog
}

// NewMemoryStore returns a store that keeps conversations in process memory only.
func NewMemoryStore() *Store {
	return &Store{conversations: make(map[core.ConversationID]*conversation)}
}

// NewFileStore returns a store that also appends every message to <dir>/<id>.jsonl
// so conversations survive process restarts.
func NewFileStore(dir string) *Store {
	store := NewMemoryStore()
	store.files = &fileLog{dir: dir}
	return store
}

func (s *Store) Create() (core.ConversationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := core.NewConversationID()
	for s.conversations[id] != nil {
		id = core.NewConversationID()
	}

	if s.files != nil {
		if err := s.files.create(id); err != nil {
			return "", err
		}
	}

	s.conversations[id] = &conversation{modified: time.Now()}
	return id, nil
}

// Open makes a persisted conversation available, loading its messages from disk
// if it is not already held in memory.
func (s *Store) Open(id core.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversations[id] != nil {
		return nil
	}

	if s.files == nil || !s.files.exists(id) {
		return &UnknownConversationError{ID: id}
	}

	messages, err := s.files.load(id)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", id, err)
	}

	s.conversations[id] = &conversation{messages: messages, modified: time.Now()}
	return nil
}

func (s *Store) Exists(id core.ConversationID) bool {
	s.mu.RLock()
	_, ok := s.conversations[id]
	s.mu.RUnlock()

	if ok {
		return true
	}
	return s.files != nil && s.files.exists(id)
}

// Append adds messages to the end of a conversation in the given order.
func (s *Store) Append(id core.ConversationID, messages ...core.Message) error {
	c, err := s.lookup(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s.files != nil {
		if err := s.files.append(id, messages...); err != nil {
			return fmt.Errorf("persist conversation %s: %w", id, err)
		}
	}

	c.messages = append(c.messages, messages...)
	c.modified = time.Now()
	return nil
}

// History returns a copy of the retained messages, oldest first.
func (s *Store) History(id core.ConversationID) ([]core.Message, error) {
	c, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]core.Message, len(c.messages))
	copy(out, c.messages)
	return out, nil
}

// Trim drops the oldest messages until the retained cost plus headroom fits the limit.
//
// A leading system message is never removed and at least the newest two other
// messages are always kept, so the result may still exceed the budget.
func (s *Store) Trim(id core.ConversationID, estimator Estimator, budget Budget) (TrimResult, error) {
	c, err := s.lookup(id)
	if err != nil {
		return TrimResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	retained, removed := trimMessages(c.messages, estimator, budget)
	c.messages = retained

	return TrimResult{
		Removed: removed,
		Used:    cost(estimator, retained),
		Limit:   budget.Limit,
	}, nil
}

// Delete forgets a conversation and removes its file. Deleting an absent id is not an error.
func (s *Store) Delete(id core.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, id)

	if s.files != nil {
		return s.files.remove(id)
	}
	return nil
}

// List returns every known conversation, most recently modified first.
func (s *Store) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[core.ConversationID]Info)

	if s.files != nil {
		persisted, err := s.files.list()
		if err != nil {
			return nil, err
		}
		for _, info := range persisted {
			seen[info.ID] = info
		}
	}

	for id, c := range s.conversations {
		if _, ok := seen[id]; ok {
			continue
		}
		c.mu.Lock()
		seen[id] = Info{ID: id, MessageCount: len(c.messages), CreatedAt: id.CreatedAt(), ModifiedAt: c.modified}
		c.mu.Unlock()
	}

	result := make([]Info, 0, len(seen))
	for _, info := range seen {
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ModifiedAt.After(result[j].ModifiedAt)
	})

	return result, nil
}

func (s *Store) lookup(id core.ConversationID) (*conversation, error) {
	s.mu.RLock()
	c, ok := s.conversations[id]
	s.mu.RUnlock()

	if !ok {
		return nil, &UnknownConversationError{ID: id}
	}
	return c, nil
}

type UnknownConversationError struct {
	ID core.ConversationID
}

func (e *UnknownConversationError) Error() string {
	return "unknown conversation: " + string(e.ID)
}
