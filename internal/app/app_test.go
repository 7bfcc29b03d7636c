package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deskmux/deskmux/internal/explorer"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/internal/pty"
)

// newApp builds an App on a temp data dir with API clients replaced by the
// given fake and directory listing replaced by a canned result.
func newApp(t *testing.T, fake *provider.Fake) *App {
	t.Helper()
	return newAppAt(t, t.TempDir(), fake)
}

func newAppAt(t *testing.T, dataDir string, fake *provider.Fake) *App {
	t.Helper()
	a, err := New(Config{
		DataDir: dataDir,
		NewClient: func(context.Context, provider.Provider, string) (provider.LLMProvider, error) {
			return fake, nil
		},
		ListDir: func(path string) ([]explorer.Entry, error) {
			return []explorer.Entry{{Name: "README.md"}}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Close)
	return a
}

func connect(t *testing.T, a *App, p provider.Provider) {
	t.Helper()
	if err := a.SetConfig(context.Background(), p, "", "key"); err != nil {
		t.Fatal(err)
	}
}

func TestSendTurnCommitsBothMessages(t *testing.T) {
	fake := &provider.Fake{Responses: []string{"hi there"}}
	a := newApp(t, fake)
	if _, err := a.AddSession("s", ""); err != nil {
		t.Fatal(err)
	}
	connect(t, a, provider.ProviderAnthropic)

	var streamed strings.Builder
	err := a.SendTurn(context.Background(),
		message.Message{Role: message.RoleUser, Content: "hello"},
		func(chunk string) { streamed.WriteString(chunk) })
	if err != nil {
		t.Fatal(err)
	}

	if streamed.String() != "hi there" {
		t.Errorf("chunks did not reassemble: %q", streamed.String())
	}

	v := a.View()
	if len(v.Messages) != 2 {
		t.Fatalf("expected user+assistant, got %d messages", len(v.Messages))
	}
	if v.Messages[0].Role != message.RoleUser || v.Messages[0].ID != 1 {
		t.Errorf("bad user message: %+v", v.Messages[0])
	}
	if v.Messages[1].Role != message.RoleAssistant || v.Messages[1].Content != "hi there" {
		t.Errorf("bad assistant message: %+v", v.Messages[1])
	}
	if v.NextMessageID != 3 {
		t.Errorf("expected next id 3, got %d", v.NextMessageID)
	}

	// The full history, user turn included, went to the provider.
	if len(fake.Calls) != 1 || len(fake.Calls[0].Messages) != 1 {
		t.Errorf("provider saw the wrong history: %+v", fake.Calls)
	}
}

func TestSendTurnMidStreamFailureKeepsPartial(t *testing.T) {
	boom := provider.WrapStatus(429, errors.New("slow down"))
	fake := &provider.Fake{
		Responses:  []string{"par"},
		ErrorAt:    1,
		ErrorValue: boom,
	}
	a := newApp(t, fake)
	if _, err := a.AddSession("s", ""); err != nil {
		t.Fatal(err)
	}
	connect(t, a, provider.ProviderOpenAI)

	err := a.SendTurn(context.Background(),
		message.Message{Role: message.RoleUser, Content: "hello"}, nil)
	if err == nil {
		t.Fatal("expected the stream error to surface")
	}
	if provider.KindOf(err) != provider.ErrKindRateLimit {
		t.Errorf("expected rate-limit kind, got %v", provider.KindOf(err))
	}

	v := a.View()
	if len(v.Messages) != 3 {
		t.Fatalf("expected user+partial+error, got %d messages", len(v.Messages))
	}
	if v.Messages[1].Role != message.RoleAssistant || v.Messages[1].Content != "par" {
		t.Errorf("partial text must be kept: %+v", v.Messages[1])
	}
	if v.Messages[2].Role != message.RoleError {
		t.Errorf("expected trailing error message: %+v", v.Messages[2])
	}
}

func TestSendTurnImmediateFailureDropsPlaceholder(t *testing.T) {
	fake := &provider.Fake{
		Responses:  []string{""},
		ErrorAt:    1,
		ErrorValue: errors.New("no tokens at all"),
	}
	a := newApp(t, fake)
	if _, err := a.AddSession("s", ""); err != nil {
		t.Fatal(err)
	}
	connect(t, a, provider.ProviderAnthropic)

	if err := a.SendTurn(context.Background(),
		message.Message{Role: message.RoleUser, Content: "hello"}, nil); err == nil {
		t.Fatal("expected error")
	}

	v := a.View()
	for _, m := range v.Messages {
		if m.Role == message.RoleAssistant {
			t.Errorf("empty assistant turn must not be committed: %+v", m)
		}
	}
}

func TestSendTurnRejectsCLIAndDisconnected(t *testing.T) {
	a := newApp(t, &provider.Fake{})
	if _, err := a.AddSession("s", ""); err != nil {
		t.Fatal(err)
	}

	// Disconnected by default.
	if err := a.SendTurn(context.Background(),
		message.Message{Role: message.RoleUser, Content: "x"}, nil); err == nil {
		t.Error("disconnected send must fail")
	}

	connect(t, a, provider.ProviderClaudeCLI)
	if err := a.SendTurn(context.Background(),
		message.Message{Role: message.RoleUser, Content: "x"}, nil); err == nil {
		t.Error("CLI providers must not accept chat turns")
	}
}

func TestSetConfigProbeFailureLeavesConfigUntouched(t *testing.T) {
	fake := &provider.Fake{}
	a := newApp(t, fake)
	connect(t, a, provider.ProviderAnthropic)

	fake.VerifyErr = provider.WrapStatus(401, errors.New("bad key"))
	err := a.SetConfig(context.Background(), provider.ProviderOpenAI, "", "wrong")
	if err == nil {
		t.Fatal("expected probe failure to surface")
	}

	conn := a.Connection()
	if conn.Provider() != provider.ProviderAnthropic {
		t.Errorf("failed probe must not change the provider, got %s", conn.Provider())
	}
	if !conn.Connected() {
		t.Error("failed probe must not disturb the existing connection")
	}
	if conn.APIKey(provider.ProviderOpenAI) != "" {
		t.Error("failed probe must not store the key")
	}
}

func TestSwitchRoundTripsChatAndTasks(t *testing.T) {
	fake := &provider.Fake{Responses: []string{"first reply"}}
	a := newApp(t, fake)

	s1, err := a.AddSession("one", "")
	if err != nil {
		t.Fatal(err)
	}
	connect(t, a, provider.ProviderAnthropic)
	if err := a.SendTurn(context.Background(),
		message.Message{Role: message.RoleUser, Content: "q"}, nil); err != nil {
		t.Fatal(err)
	}
	a.AddTask("first task")

	s2, err := a.AddSession("two", "")
	if err != nil {
		t.Fatal(err)
	}
	if v := a.View(); len(v.Messages) != 0 || len(v.Tasks) != 0 || v.NextMessageID != 1 {
		t.Fatalf("new session must start empty: %+v", v)
	}
	if a.Connection().Connected() {
		t.Error("new session must start disconnected")
	}

	a.Switch(s1)
	v := a.View()
	if len(v.Messages) != 2 || v.Messages[1].Content != "first reply" {
		t.Fatalf("chat did not round-trip: %+v", v.Messages)
	}
	if len(v.Tasks) != 1 || v.Tasks[0].Text != "first task" {
		t.Fatalf("tasks did not round-trip: %+v", v.Tasks)
	}
	if v.NextMessageID != 3 {
		t.Errorf("next message id must resume at 3, got %d", v.NextMessageID)
	}
	if !a.Connection().Connected() {
		t.Error("connection snapshot must come back live on switch-back")
	}

	a.Switch(s2)
	if v := a.View(); len(v.Messages) != 0 {
		t.Errorf("second session picked up foreign messages: %+v", v.Messages)
	}
}

func TestSwitchToSelfOrUnknownIsNoop(t *testing.T) {
	a := newApp(t, &provider.Fake{})
	s1, _ := a.AddSession("one", "")
	a.AddTask("live edit")

	a.Switch(s1)
	a.Switch("no-such-id")

	v := a.View()
	if len(v.Tasks) != 1 {
		t.Errorf("no-op switches must not disturb the live view: %+v", v.Tasks)
	}
	if a.Sessions().ActiveID() != s1 {
		t.Errorf("active pointer moved: %q", a.Sessions().ActiveID())
	}
}

func TestAddSessionEmptyNameChangesNothing(t *testing.T) {
	a := newApp(t, &provider.Fake{})
	s1, _ := a.AddSession("one", "")
	a.AddTask("t")

	if _, err := a.AddSession("   ", ""); err == nil {
		t.Fatal("empty name must be rejected")
	}
	if a.Sessions().ActiveID() != s1 {
		t.Error("rejected add must leave the active session alone")
	}
	if v := a.View(); len(v.Tasks) != 1 {
		t.Error("rejected add must leave the live view alone")
	}
}

func TestAddSessionPreservesOutgoingPath(t *testing.T) {
	a := newApp(t, &provider.Fake{})
	s1, _ := a.AddSession("one", "/projects/alpha")

	// The browser wandered off, then a new session is created at the browsed
	// path. The outgoing session keeps its own stored path.
	if _, err := a.AddSession("two", "/somewhere/else"); err != nil {
		t.Fatal(err)
	}

	stored, ok := a.Sessions().Get(s1)
	if !ok {
		t.Fatal("first session vanished")
	}
	if stored.Path != "/projects/alpha" {
		t.Errorf("outgoing session's path must survive, got %q", stored.Path)
	}
	if v := a.View(); v.Dir != "/somewhere/else" {
		t.Errorf("new session must browse its own path, got %q", v.Dir)
	}
}

func TestDeleteActiveSessionActivatesFirstRemaining(t *testing.T) {
	a := newApp(t, &provider.Fake{})
	s1, _ := a.AddSession("one", "")
	a.AddTask("belongs to one")
	s2, _ := a.AddSession("two", "")

	a.Switch(s1)
	a.DeleteSession(s1)

	if a.Sessions().ActiveID() != s2 {
		t.Errorf("expected %q active, got %q", s2, a.Sessions().ActiveID())
	}
	if v := a.View(); len(v.Tasks) != 0 {
		t.Errorf("deleted session's state leaked into the view: %+v", v.Tasks)
	}

	a.DeleteSession(s2)
	if a.Sessions().ActiveID() != "" {
		t.Error("deleting the last session must clear the active pointer")
	}
	if a.Connection().Connected() {
		t.Error("no sessions left means disconnected")
	}
}

func TestPersistedStateSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	fake := &provider.Fake{Responses: []string{"persisted reply"}}

	a := newAppAt(t, dir, fake)
	s1, _ := a.AddSession("keep", "")
	connect(t, a, provider.ProviderAnthropic)
	if err := a.SendTurn(context.Background(),
		message.Message{Role: message.RoleUser, Content: "q"}, nil); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b := newAppAt(t, dir, fake)
	if b.Sessions().ActiveID() != s1 {
		t.Fatalf("active session not restored, got %q", b.Sessions().ActiveID())
	}
	v := b.View()
	if len(v.Messages) != 2 || v.Messages[1].Content != "persisted reply" {
		t.Errorf("chat not restored: %+v", v.Messages)
	}
	if v.NextMessageID != 3 {
		t.Errorf("next id must resume from history, got %d", v.NextMessageID)
	}
}

func TestEnsureTerminalSpawnsOncePerSession(t *testing.T) {
	a, err := New(Config{
		DataDir: t.TempDir(),
		Registry: pty.Config{
			Commands: map[provider.Provider][]string{
				provider.ProviderClaudeCLI: {"sleep", "30"},
			},
		},
		ListDir: func(string) ([]explorer.Entry, error) { return nil, nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Close)

	if _, err := a.AddSession("term", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	connect(t, a, provider.ProviderClaudeCLI)

	res, err := a.EnsureTerminal()
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != pty.SpawnedNew {
		t.Errorf("first ensure must spawn, got %v", res.Outcome)
	}

	res, err = a.EnsureTerminal()
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != pty.ReattachedExisting {
		t.Errorf("second ensure must reattach, got %v", res.Outcome)
	}
}

// Two sessions, one with a live CLI terminal: switching away leaves the
// process running, switching back reattaches to the same process.
func TestTerminalSurvivesBackgrounding(t *testing.T) {
	a, err := New(Config{
		DataDir: t.TempDir(),
		Registry: pty.Config{
			Commands: map[provider.Provider][]string{
				provider.ProviderClaudeCLI: {"sh", "-c", "printf marker; sleep 30"},
			},
		},
		NewClient: func(context.Context, provider.Provider, string) (provider.LLMProvider, error) {
			return &provider.Fake{}, nil
		},
		ListDir: func(string) ([]explorer.Entry, error) { return nil, nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Close)

	s1, _ := a.AddSession("terminal", t.TempDir())
	connect(t, a, provider.ProviderClaudeCLI)
	if _, err := a.EnsureTerminal(); err != nil {
		t.Fatal(err)
	}

	s2, _ := a.AddSession("chat", "")
	connect(t, a, provider.ProviderAnthropic)

	// Backgrounded: process stays alive, its output still accumulates.
	if !a.Registry().Exists(s1) {
		t.Fatal("backgrounded terminal must stay alive")
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if sb, ok := a.Registry().Scrollback(s1); ok && strings.Contains(sb, "marker") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background output never reached the scrollback")
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.Switch(s1)
	if got := a.Connection().Provider(); got != provider.ProviderClaudeCLI {
		t.Fatalf("switch-back must restore the CLI selection, got %s", got)
	}
	res, err := a.EnsureTerminal()
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != pty.ReattachedExisting {
		t.Errorf("switch-back must reattach, not respawn, got %v", res.Outcome)
	}

	a.Switch(s2)
	if got := a.Connection().Provider(); got != provider.ProviderAnthropic {
		t.Errorf("second session must keep its own provider, got %s", got)
	}
}

func TestTaskLifecycle(t *testing.T) {
	a := newApp(t, &provider.Fake{})
	if _, err := a.AddSession("s", ""); err != nil {
		t.Fatal(err)
	}

	t1 := a.AddTask("first")
	t2 := a.AddTask("second")
	if t1.ID != 0 || t2.ID != 1 {
		t.Fatalf("expected ids 0,1 got %d,%d", t1.ID, t2.ID)
	}

	a.SetTaskDone(t1.ID, true)
	a.RemoveTask(t1.ID)
	t3 := a.AddTask("third")
	if t3.ID != 2 {
		t.Errorf("ids must never be reused, got %d", t3.ID)
	}

	v := a.View()
	if len(v.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %+v", v.Tasks)
	}
	a.SetTaskDone(99, true) // unknown id ignored
	a.RemoveTask(99)
}
