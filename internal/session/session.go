// Package session holds the authoritative collection of work sessions. A
// session is one independent unit of work: a chat history, a task list, and a
// working directory. The collection is persisted as a single blob and
// rewritten in full on every mutation.
package session

import (
	"github.com/deskmux/deskmux/internal/message"
)

// Task is one entry of a session's task list.
type Task struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Session is one unit of independent work.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`

	Messages []message.Message `json:"messages"`
	Tasks    []Task            `json:"tasks"`

	// TaskCounter is the next task id to assign. It never decreases and ids
	// are never reused, even after deletion.
	TaskCounter int `json:"taskCounter"`
}

// CopyMessages returns an independent copy of the message slice.
func CopyMessages(msgs []message.Message) []message.Message {
	out := make([]message.Message, len(msgs))
	copy(out, msgs)
	return out
}

// CopyTasks returns an independent copy of the task slice.
func CopyTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
