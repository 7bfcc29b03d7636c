package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/state"
)

// StateKey is the key the collection is persisted under.
const StateKey = "sessions"

// collectionData is the persisted shape of the collection.
type collectionData struct {
	Sessions []*Session `json:"sessions"`
	ActiveID string     `json:"activeId,omitempty"`
}

// Collection is the process-wide set of sessions, ordered by creation, plus
// the single active-session pointer. All mutations rewrite the persisted
// blob.
type Collection struct {
	mu    sync.RWMutex
	store *state.Store
	data  collectionData
}

// Load reads the persisted collection, returning an empty one when nothing
// has been saved yet. A persisted active id that no longer resolves to a
// member is discarded.
func Load(store *state.Store) (*Collection, error) {
	c := &Collection{store: store}
	if _, err := store.Load(StateKey, &c.data); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	if c.data.ActiveID != "" && c.find(c.data.ActiveID) == nil {
		c.data.ActiveID = ""
	}
	return c, nil
}

// Add creates a session with the given name and path and makes it active.
// The name must be non-empty after trimming.
func (c *Collection) Add(name, path string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("session name must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     path,
		Messages: []message.Message{},
		Tasks:    []Task{},
	}
	c.data.Sessions = append(c.data.Sessions, s)
	c.data.ActiveID = s.ID

	if err := c.persist(); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a session. When the active session is deleted the first
// remaining session in list order becomes active, or the pointer clears if
// none remain. Deleting an unknown id is a no-op.
func (c *Collection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, s := range c.data.Sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	c.data.Sessions = append(c.data.Sessions[:idx], c.data.Sessions[idx+1:]...)
	if c.data.ActiveID == id {
		if len(c.data.Sessions) > 0 {
			c.data.ActiveID = c.data.Sessions[0].ID
		} else {
			c.data.ActiveID = ""
		}
	}
	return c.persist()
}

// Rename replaces the session's name. Empty trimmed names and unknown ids
// are silently ignored; both arise from benign UI races.
func (c *Collection) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.find(id)
	if s == nil {
		return nil
	}
	s.Name = name
	return c.persist()
}

// SetActive moves the active pointer. Unknown ids are silently ignored so
// the pointer always resolves to a member.
func (c *Collection) SetActive(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.find(id) == nil {
		return nil
	}
	c.data.ActiveID = id
	return c.persist()
}

// Snapshot bulk-replaces a session's live state. Unknown ids are ignored.
func (c *Collection) Snapshot(id string, msgs []message.Message, tasks []Task, taskCounter int, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.find(id)
	if s == nil {
		return nil
	}
	s.Messages = CopyMessages(msgs)
	s.Tasks = CopyTasks(tasks)
	s.TaskCounter = taskCounter
	s.Path = path
	return c.persist()
}

// Get returns a copy of the session with the given id.
func (c *Collection) Get(id string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.find(id)
	if s == nil {
		return Session{}, false
	}
	return c.copyOf(s), true
}

// Active returns a copy of the active session, false when none is active.
func (c *Collection) Active() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data.ActiveID == "" {
		return Session{}, false
	}
	s := c.find(c.data.ActiveID)
	if s == nil {
		return Session{}, false
	}
	return c.copyOf(s), true
}

// ActiveID returns the active session id, "" when none.
func (c *Collection) ActiveID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.ActiveID
}

// Sessions returns copies of all sessions in creation order.
func (c *Collection) Sessions() []Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Session, 0, len(c.data.Sessions))
	for _, s := range c.data.Sessions {
		out = append(out, c.copyOf(s))
	}
	return out
}

// Len returns the number of sessions.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Sessions)
}

func (c *Collection) find(id string) *Session {
	for _, s := range c.data.Sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (c *Collection) copyOf(s *Session) Session {
	out := *s
	out.Messages = CopyMessages(s.Messages)
	out.Tasks = CopyTasks(s.Tasks)
	return out
}

func (c *Collection) persist() error {
	return c.store.Save(StateKey, &c.data)
}
