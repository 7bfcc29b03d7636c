// Package pty owns the map from session id to live pseudo-terminal process.
// The registry is the only component permitted to spawn or kill processes.
// PTYs outlive foreground/background transitions: entries are removed only by
// an explicit disconnect or by the process exiting on its own.
package pty

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/deskmux/deskmux/internal/log"
	"github.com/deskmux/deskmux/internal/provider"
)

// Initial terminal size for spawned processes; the UI resizes afterwards.
const (
	initialCols = 80
	initialRows = 24
)

// ConnectOutcome tags the result of an idempotent connect.
type ConnectOutcome int

const (
	// SpawnedNew means a fresh process was started for the session.
	SpawnedNew ConnectOutcome = iota
	// ReattachedExisting means a live entry already existed; nothing spawned.
	ReattachedExisting
)

// ConnectResult reports how a connect was satisfied.
type ConnectResult struct {
	Outcome ConnectOutcome
}

// Config controls registry behavior.
type Config struct {
	// ScrollbackCap is the per-session scrollback cap in bytes.
	ScrollbackCap int

	// Commands overrides the command spawned per CLI provider.
	Commands map[provider.Provider][]string
}

type entry struct {
	provider   provider.Provider
	cmd        *exec.Cmd
	ptmx       *os.File
	scrollback *Scrollback

	mu     sync.Mutex
	closed bool
}

// Registry owns all live PTY entries, keyed by session id. The entry map is
// the single source of truth for live processes and is mutated only by
// Connect, Disconnect, and the exit handler.
type Registry struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry

	subMu   sync.RWMutex
	subs    map[int]Handler
	nextSub int
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.ScrollbackCap <= 0 {
		cfg.ScrollbackCap = DefaultScrollbackCap
	}
	return &Registry{
		cfg:     cfg,
		entries: make(map[string]*entry),
		subs:    make(map[int]Handler),
	}
}

// Connect ensures a live PTY exists for the session. When an entry already
// exists the call reattaches without spawning, so concurrent connects for one
// session id yield exactly one process. Spawn failures leave no entry behind.
func (r *Registry) Connect(sessionID string, p provider.Provider, workingDir string) (ConnectResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[sessionID]; ok {
		return ConnectResult{Outcome: ReattachedExisting}, nil
	}

	argv, err := r.resolveCommand(p)
	if err != nil {
		return ConnectResult{}, err
	}

	if workingDir == "" {
		workingDir, _ = os.UserHomeDir()
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: initialRows,
		Cols: initialCols,
	})
	if err != nil {
		return ConnectResult{}, fmt.Errorf("failed to start PTY: %w", err)
	}

	e := &entry{
		provider:   p,
		cmd:        cmd,
		ptmx:       ptmx,
		scrollback: NewScrollback(r.cfg.ScrollbackCap),
	}
	r.entries[sessionID] = e

	log.Logger().Debug("pty spawned",
		zap.String("session", sessionID),
		zap.String("provider", string(p)),
		zap.String("dir", workingDir))

	go r.readLoop(sessionID, e)

	return ConnectResult{Outcome: SpawnedNew}, nil
}

// Disconnect kills the session's process and removes its entry. It always
// succeeds; disconnecting an absent session is a no-op.
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	e.close()
	log.Logger().Debug("pty disconnected", zap.String("session", sessionID))
}

// Write forwards raw input to the session's process. Best-effort: absent
// sessions and write errors are silently ignored.
func (r *Registry) Write(sessionID string, data []byte) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	_, _ = e.ptmx.Write(data)
}

// Resize forwards a terminal resize. Errors from the underlying call are
// swallowed: some process states reject resize and that must not crash the
// caller.
func (r *Registry) Resize(sessionID string, cols, rows uint16) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	_ = pty.Setsize(e.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Exists reports whether a live entry exists for the session.
func (r *Registry) Exists(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[sessionID]
	return ok
}

// Provider returns the CLI provider a live entry was spawned for.
func (r *Registry) Provider(sessionID string) (provider.Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return "", false
	}
	return e.provider, true
}

// Scrollback returns the accumulated output for the session, false when no
// entry exists.
func (r *Registry) Scrollback(sessionID string) (string, bool) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	return e.scrollback.String(), true
}

// CloseAll kills every live process. Used at teardown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for id, e := range r.entries {
		entries = append(entries, e)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
}

// readLoop forwards process output as tagged events until the PTY closes,
// then reaps the process and emits the exit event. Exit is the only path
// where entry removal is not caller-initiated.
func (r *Registry) readLoop(sessionID string, e *entry) {
	buf := make([]byte, 4096)
	for {
		n, err := e.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			_, _ = e.scrollback.Write(data)
			r.emit(Event{SessionID: sessionID, Type: EventOutput, Data: data})
		}
		if err != nil {
			if err != io.EOF {
				log.Logger().Debug("pty read ended",
					zap.String("session", sessionID), zap.Error(err))
			}
			break
		}
	}

	_ = e.cmd.Wait()
	exitCode := e.cmd.ProcessState.ExitCode()

	// A caller-initiated disconnect already removed the entry; only the
	// self-exit path removes it here and reports the exit.
	r.mu.Lock()
	current, ok := r.entries[sessionID]
	selfExit := ok && current == e
	if selfExit {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if selfExit {
		e.closePTY()
		log.Logger().Debug("pty exited",
			zap.String("session", sessionID), zap.Int("code", exitCode))
		r.emit(Event{SessionID: sessionID, Type: EventExit, ExitCode: exitCode})
	}
}

func (r *Registry) resolveCommand(p provider.Provider) ([]string, error) {
	if argv, ok := r.cfg.Commands[p]; ok && len(argv) > 0 {
		return argv, nil
	}
	if argv, ok := provider.CLICommand(p); ok {
		return argv, nil
	}
	return nil, fmt.Errorf("unknown CLI provider: %s", p)
}

// close kills the process immediately and closes the PTY. Disconnect is the
// only cancellation primitive and it is not graceful.
func (e *entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.ptmx.Close()
}

func (e *entry) closePTY() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	_ = e.ptmx.Close()
}
