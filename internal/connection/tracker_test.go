package connection

import (
	"testing"

	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/internal/state"
)

func newTracker(t *testing.T) (*Tracker, *state.Store) {
	t.Helper()
	store, err := state.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tr, err := Load(store)
	if err != nil {
		t.Fatal(err)
	}
	return tr, store
}

func TestDefaults(t *testing.T) {
	tr, _ := newTracker(t)

	if tr.Provider() != provider.ProviderAnthropic {
		t.Errorf("expected default provider, got %s", tr.Provider())
	}
	if tr.Model() == "" {
		t.Error("expected a default model for an API provider")
	}
	if tr.Connected() {
		t.Error("expected disconnected by default")
	}
}

func TestSetProviderAutoSelectsModel(t *testing.T) {
	tr, _ := newTracker(t)

	if err := tr.SetProvider(provider.ProviderGoogle); err != nil {
		t.Fatal(err)
	}
	if tr.Model() != provider.FirstModel(provider.ProviderGoogle) {
		t.Errorf("expected first google model, got %q", tr.Model())
	}

	if err := tr.SetProvider(provider.ProviderClaudeCLI); err != nil {
		t.Fatal(err)
	}
	if tr.Model() != "" {
		t.Errorf("CLI providers have no model, got %q", tr.Model())
	}
}

func TestAPIKeysIndependentOfSelection(t *testing.T) {
	tr, _ := newTracker(t)

	tr.SetAPIKey(provider.ProviderOpenAI, "sk-one")
	tr.SetAPIKey(provider.ProviderGoogle, "g-two")
	tr.SetProvider(provider.ProviderOpenAI)

	if tr.APIKey(provider.ProviderGoogle) != "g-two" {
		t.Error("keys for unselected providers must be kept")
	}
}

func TestCLIRestartAmnesia(t *testing.T) {
	tr, store := newTracker(t)

	tr.SetProvider(provider.ProviderClaudeCLI)
	tr.SetConnected(true)
	if !tr.Connected() {
		t.Fatal("setup: expected connected")
	}

	// The spawned process cannot survive a restart, so a reload must come
	// back disconnected.
	reloaded, err := Load(store)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Connected() {
		t.Error("CLI provider must reload disconnected")
	}
	if reloaded.Provider() != provider.ProviderClaudeCLI {
		t.Error("provider selection itself must survive the reload")
	}
}

func TestAPIProviderConnectionSurvivesReload(t *testing.T) {
	tr, store := newTracker(t)

	tr.SetProvider(provider.ProviderOpenAI)
	tr.SetConnected(true)

	reloaded, err := Load(store)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.Connected() {
		t.Error("API provider connection flag should survive a reload")
	}
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	tr, _ := newTracker(t)

	tr.SetProvider(provider.ProviderGoogle)
	tr.SetConnected(true)
	if err := tr.SaveSessionConnected("s1"); err != nil {
		t.Fatal(err)
	}

	// Another session's state takes over, then s1 is restored.
	tr.SetProvider(provider.ProviderOpenAI)
	tr.SetConnected(false)

	if err := tr.RestoreSessionConnected("s1"); err != nil {
		t.Fatal(err)
	}
	if tr.Provider() != provider.ProviderGoogle || !tr.Connected() {
		t.Errorf("expected google/connected restored, got %s connected=%v",
			tr.Provider(), tr.Connected())
	}
}

func TestRestoreMissingSnapshotForcesDisconnect(t *testing.T) {
	tr, _ := newTracker(t)

	tr.SetProvider(provider.ProviderOpenAI)
	tr.SetConnected(true)

	if err := tr.RestoreSessionConnected("never-seen"); err != nil {
		t.Fatal(err)
	}
	if tr.Connected() {
		t.Error("sessions without a snapshot must start disconnected")
	}
	if tr.Provider() != provider.ProviderOpenAI {
		t.Error("provider/model must keep the last selection")
	}
}

func TestRemoveSessionConnected(t *testing.T) {
	tr, _ := newTracker(t)

	tr.SetConnected(true)
	tr.SaveSessionConnected("s1")
	tr.RemoveSessionConnected("s1")

	if _, ok := tr.SessionLink("s1"); ok {
		t.Error("snapshot must be gone after removal")
	}
}

func TestSnapshotsClearedOnLoad(t *testing.T) {
	tr, store := newTracker(t)

	tr.SetConnected(true)
	tr.SaveSessionConnected("s1")

	reloaded, err := Load(store)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.SessionLink("s1"); ok {
		t.Error("session snapshots must be cleared on load")
	}
}
