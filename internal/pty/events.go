package pty

// EventType discriminates registry events.
type EventType string

const (
	// EventOutput carries a chunk of process output.
	EventOutput EventType = "output"
	// EventExit signals that the process ended on its own.
	EventExit EventType = "exit"
)

// Event is one registry event. Every event is tagged with the owning session
// id; the registry performs no filtering by foreground state — that is a
// presentation concern.
type Event struct {
	SessionID string
	Type      EventType
	Data      []byte
	ExitCode  int
}

// Handler receives registry events. Handlers for one session are invoked in
// output order; no ordering holds across sessions.
type Handler func(Event)

// Subscribe registers a handler for all registry events and returns its
// unsubscribe function, so teardown is deterministic.
func (r *Registry) Subscribe(h Handler) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = h
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) emit(ev Event) {
	r.subMu.RLock()
	handlers := make([]Handler, 0, len(r.subs))
	for _, h := range r.subs {
		handlers = append(handlers, h)
	}
	r.subMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
