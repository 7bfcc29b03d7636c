// Package connection tracks which provider and model are selected, which API
// keys are stored, and whether the selection is currently usable — globally
// and per session. Per-session snapshots let a backgrounded session's
// connection be resumed instantly on switch-back without touching any live
// process.
package connection

import (
	"fmt"
	"sync"

	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/internal/state"
)

// StateKey is the key the tracker is persisted under.
const StateKey = "connection"

// Link is the per-session snapshot of what "connected" meant for a session
// the last time it was backgrounded.
type Link struct {
	Connected bool              `json:"connected"`
	Provider  provider.Provider `json:"provider"`
	Model     string            `json:"model"`
}

// trackerData is the persisted shape of the tracker.
type trackerData struct {
	Provider  provider.Provider            `json:"provider"`
	Model     string                       `json:"model,omitempty"`
	APIKeys   map[provider.Provider]string `json:"apiKeys"`
	Connected bool                         `json:"connected"`
	Sessions  map[string]Link              `json:"connectedSessions"`
}

// Tracker owns all provider/model/key/connected state.
type Tracker struct {
	mu    sync.RWMutex
	store *state.Store
	data  trackerData
}

// Load reads the persisted tracker. Two restart rules apply: a selected CLI
// provider is forced to disconnected (its process did not survive the
// restart), and all per-session snapshots are cleared (none of them reference
// live processes anymore).
func Load(store *state.Store) (*Tracker, error) {
	t := &Tracker{store: store}
	if _, err := store.Load(StateKey, &t.data); err != nil {
		return nil, fmt.Errorf("failed to load connection state: %w", err)
	}
	if t.data.APIKeys == nil {
		t.data.APIKeys = make(map[provider.Provider]string)
	}
	if t.data.Provider == "" {
		t.data.Provider = provider.ProviderAnthropic
		t.data.Model = provider.FirstModel(provider.ProviderAnthropic)
	}
	if t.data.Provider.IsCLI() {
		t.data.Connected = false
	}
	t.data.Sessions = make(map[string]Link)
	return t, nil
}

// SetProvider switches the selected provider and auto-selects its first
// available model ("" for CLI providers).
func (t *Tracker) SetProvider(p provider.Provider) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Provider = p
	t.data.Model = provider.FirstModel(p)
	return t.persist()
}

// SetModel selects a model for the current provider.
func (t *Tracker) SetModel(model string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Model = model
	return t.persist()
}

// SetAPIKey stores a secret for a provider, independent of the selection.
func (t *Tracker) SetAPIKey(p provider.Provider, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.APIKeys[p] = key
	return t.persist()
}

// APIKey returns the stored secret for a provider.
func (t *Tracker) APIKey(p provider.Provider) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.APIKeys[p]
}

// SetConnected mutates the connected flag for the current selection.
func (t *Tracker) SetConnected(connected bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Connected = connected
	return t.persist()
}

// Disconnect clears the connected flag for the current selection.
func (t *Tracker) Disconnect() error {
	return t.SetConnected(false)
}

// SaveSessionConnected snapshots {connected, provider, model} under the
// session id. The orchestrator calls this before switching away.
func (t *Tracker) SaveSessionConnected(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Sessions[sessionID] = Link{
		Connected: t.data.Connected,
		Provider:  t.data.Provider,
		Model:     t.data.Model,
	}
	return t.persist()
}

// RestoreSessionConnected loads a session's snapshot into the live fields.
// A session with no snapshot starts disconnected, keeping the last selected
// provider and model.
func (t *Tracker) RestoreSessionConnected(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	link, ok := t.data.Sessions[sessionID]
	if !ok {
		t.data.Connected = false
		return t.persist()
	}
	t.data.Provider = link.Provider
	t.data.Model = link.Model
	t.data.Connected = link.Connected
	return t.persist()
}

// RemoveSessionConnected drops a session's snapshot (called on deletion).
func (t *Tracker) RemoveSessionConnected(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.data.Sessions, sessionID)
	return t.persist()
}

// Provider returns the selected provider.
func (t *Tracker) Provider() provider.Provider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.Provider
}

// Model returns the selected model, "" for CLI providers.
func (t *Tracker) Model() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.Model
}

// Connected reports whether the current selection is actively usable.
func (t *Tracker) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.Connected
}

// SessionLink returns a session's snapshot, false when none exists.
func (t *Tracker) SessionLink(sessionID string) (Link, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	link, ok := t.data.Sessions[sessionID]
	return link, ok
}

func (t *Tracker) persist() error {
	return t.store.Save(StateKey, &t.data)
}
