// Package app wires the session collection, connection tracker, and PTY
// registry into one coordinator. App owns the live view of the foregrounded
// session (chat, tasks, directory listing) and runs the snapshot/restore
// sequence on every session switch. A single App instance exists per running
// application; there is no package-level state.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/deskmux/deskmux/internal/connection"
	"github.com/deskmux/deskmux/internal/explorer"
	"github.com/deskmux/deskmux/internal/log"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/internal/pty"
	"github.com/deskmux/deskmux/internal/session"
	"github.com/deskmux/deskmux/internal/state"
)

// ClientFactory builds an API client for a provider.
type ClientFactory func(ctx context.Context, p provider.Provider, apiKey string) (provider.LLMProvider, error)

// View is the live state of the foregrounded session.
type View struct {
	Messages      []message.Message
	Tasks         []session.Task
	TaskCounter   int
	NextMessageID int
	Dir           string
	DirEntries    []explorer.Entry
}

// Config controls App construction.
type Config struct {
	// DataDir is where persisted state lives.
	DataDir string

	// Registry configures the PTY registry.
	Registry pty.Config

	// NewClient overrides API client construction (tests). Defaults to
	// provider.New.
	NewClient ClientFactory

	// ListDir overrides directory listing (tests). Defaults to
	// explorer.ReadDir.
	ListDir func(path string) ([]explorer.Entry, error)
}

// App is the session switch orchestrator.
type App struct {
	mu sync.Mutex

	sessions *session.Collection
	conn     *connection.Tracker
	registry *pty.Registry

	newClient ClientFactory
	listDir   func(path string) ([]explorer.Entry, error)

	view View
}

// New loads persisted state from cfg.DataDir and builds the coordinator. The
// previously active session, if any, is restored into the live view.
func New(cfg Config) (*App, error) {
	store, err := state.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	sessions, err := session.Load(store)
	if err != nil {
		return nil, err
	}

	conn, err := connection.Load(store)
	if err != nil {
		return nil, err
	}

	a := &App{
		sessions:  sessions,
		conn:      conn,
		registry:  pty.NewRegistry(cfg.Registry),
		newClient: cfg.NewClient,
		listDir:   cfg.ListDir,
	}
	if a.newClient == nil {
		a.newClient = func(ctx context.Context, p provider.Provider, key string) (provider.LLMProvider, error) {
			return provider.New(ctx, p, key)
		}
	}
	if a.listDir == nil {
		a.listDir = explorer.ReadDir
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if active, ok := sessions.Active(); ok {
		a.restoreLocked(active)
	} else {
		a.resetViewLocked()
	}
	return a, nil
}

// Sessions exposes the session collection for presentation.
func (a *App) Sessions() *session.Collection { return a.sessions }

// Connection exposes the connection tracker for presentation.
func (a *App) Connection() *connection.Tracker { return a.conn }

// Registry exposes the PTY registry for the terminal widget.
func (a *App) Registry() *pty.Registry { return a.registry }

// View returns a copy of the live view.
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyView()
}

// Switch foregrounds the target session: the outgoing session is snapshotted,
// the target's chat/task/directory state is restored, and its connection
// snapshot becomes live. Switching to the current session or to an unknown id
// is a no-op. Live PTYs are never touched: only the intent to be connected is
// restored, and the UI reattaches through the idempotent registry connect.
func (a *App) Switch(targetID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if targetID == a.sessions.ActiveID() {
		return
	}
	target, ok := a.sessions.Get(targetID)
	if !ok {
		return
	}

	a.saveCurrentLocked()
	_ = a.sessions.SetActive(targetID)
	a.restoreLocked(target)
}

// AddSession creates a session with the given name and browse path and makes
// it active. The outgoing session keeps its own stored path; new sessions
// intentionally start from the browser's current path. New sessions always
// start disconnected.
func (a *App) AddSession(name, path string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("session name must not be empty")
	}

	// Snapshot the outgoing session with its own stored path: the browser
	// path belongs to the new session, not the one being backgrounded.
	if active, ok := a.sessions.Active(); ok {
		_ = a.sessions.Snapshot(active.ID, a.view.Messages, a.view.Tasks, a.view.TaskCounter, active.Path)
		_ = a.conn.SaveSessionConnected(active.ID)
	}

	s, err := a.sessions.Add(name, path)
	if err != nil {
		return "", err
	}

	a.resetViewLocked()
	a.view.Dir = path
	a.refreshDirLocked(path)
	_ = a.conn.Disconnect()

	log.Logger().Debug("session added",
		zap.String("id", s.ID), zap.String("name", name))
	return s.ID, nil
}

// DeleteSession removes a session along with its PTY and connection
// snapshot. Deleting the active session activates the first remaining
// session, or clears the view if none remain.
func (a *App) DeleteSession(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.registry.Disconnect(id)
	_ = a.conn.RemoveSessionConnected(id)

	wasActive := id == a.sessions.ActiveID()
	_ = a.sessions.Delete(id)

	if !wasActive {
		return
	}
	if next, ok := a.sessions.Active(); ok {
		a.restoreLocked(next)
	} else {
		a.resetViewLocked()
		_ = a.conn.Disconnect()
	}
}

// Rename replaces a session's name; empty names and unknown ids are ignored.
func (a *App) Rename(id, name string) {
	_ = a.sessions.Rename(id, name)
}

// SaveCurrent snapshots the active session's live state into the store.
// Silent no-op when no session is active.
func (a *App) SaveCurrent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saveCurrentLocked()
}

// saveCurrentLocked snapshots live chat/task/path state and the connection
// link for the active session.
func (a *App) saveCurrentLocked() {
	active, ok := a.sessions.Active()
	if !ok {
		return
	}
	_ = a.sessions.Snapshot(active.ID, a.view.Messages, a.view.Tasks, a.view.TaskCounter, a.view.Dir)
	_ = a.conn.SaveSessionConnected(active.ID)
}

// restoreLocked loads a session's stored state into the live view and makes
// its connection snapshot live. Directory re-listing is asynchronous and
// best-effort: a vanished directory must not fail the switch.
func (a *App) restoreLocked(s session.Session) {
	a.view.Messages = session.CopyMessages(s.Messages)
	a.view.Tasks = session.CopyTasks(s.Tasks)
	a.view.TaskCounter = s.TaskCounter
	a.view.NextMessageID = message.NextID(s.Messages)
	a.view.Dir = s.Path
	a.view.DirEntries = nil

	if s.Path != "" {
		a.refreshDirLocked(s.Path)
	}

	_ = a.conn.RestoreSessionConnected(s.ID)
}

// refreshDirLocked re-lists path into the view asynchronously. Failures are
// swallowed; stale results for a path the view has moved away from are
// dropped.
func (a *App) refreshDirLocked(path string) {
	if path == "" {
		return
	}
	go func() {
		entries, err := a.listDir(path)
		if err != nil {
			log.Logger().Debug("dir listing failed",
				zap.String("path", path), zap.Error(err))
			return
		}
		a.mu.Lock()
		if a.view.Dir == path {
			a.view.DirEntries = entries
		}
		a.mu.Unlock()
	}()
}

func (a *App) resetViewLocked() {
	a.view = View{
		Messages:      []message.Message{},
		Tasks:         []session.Task{},
		NextMessageID: 1,
	}
}

func (a *App) copyView() View {
	v := a.view
	v.Messages = session.CopyMessages(a.view.Messages)
	v.Tasks = session.CopyTasks(a.view.Tasks)
	v.DirEntries = append([]explorer.Entry(nil), a.view.DirEntries...)
	return v
}

// Close snapshots the active session, kills all PTYs, and flushes logs.
func (a *App) Close() {
	a.SaveCurrent()
	a.registry.CloseAll()
	_ = log.Sync()
}
