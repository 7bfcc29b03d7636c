package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskmux/deskmux/internal/log"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/internal/pty"
	"github.com/deskmux/deskmux/internal/session"
)

// SendTurn appends the user message to the live chat, streams one assistant
// turn through the selected API provider, and commits the result. onChunk
// receives each text chunk as it arrives; it may be nil.
//
// On a mid-stream failure partial assistant text already shown is kept, but a
// fully empty assistant placeholder is removed and the categorized error is
// appended as an error-role message. A turn, once sent, runs to completion or
// failure; there is no mid-stream cancellation beyond ctx.
func (a *App) SendTurn(ctx context.Context, userMsg message.Message, onChunk func(string)) error {
	a.mu.Lock()
	p := a.conn.Provider()
	model := a.conn.Model()
	if p.IsCLI() {
		a.mu.Unlock()
		return fmt.Errorf("provider %s streams through its terminal, not the chat", p)
	}
	if !a.conn.Connected() {
		a.mu.Unlock()
		return fmt.Errorf("provider %s is not connected", p)
	}

	client, err := a.newClient(ctx, p, a.conn.APIKey(p))
	if err != nil {
		a.mu.Unlock()
		return err
	}

	userMsg.ID = a.view.NextMessageID
	a.view.NextMessageID++
	a.view.Messages = append(a.view.Messages, userMsg)
	history := session.CopyMessages(a.view.Messages)
	a.mu.Unlock()

	ch := client.Stream(ctx, provider.CompletionOptions{
		Model:    model,
		Messages: history,
	})

	var assistant string
	var streamErr error
	for chunk := range ch {
		switch chunk.Type {
		case message.ChunkTypeText:
			assistant += chunk.Text
			if onChunk != nil {
				onChunk(chunk.Text)
			}
		case message.ChunkTypeError:
			streamErr = chunk.Err
		case message.ChunkTypeDone:
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if assistant != "" {
		a.view.Messages = append(a.view.Messages, message.Message{
			ID:      a.view.NextMessageID,
			Role:    message.RoleAssistant,
			Content: assistant,
		})
		a.view.NextMessageID++
	}
	if streamErr != nil {
		a.view.Messages = append(a.view.Messages, message.Message{
			ID:      a.view.NextMessageID,
			Role:    message.RoleError,
			Content: streamErr.Error(),
		})
		a.view.NextMessageID++
		log.Logger().Debug("turn failed",
			zap.String("provider", string(p)),
			zap.String("kind", string(provider.KindOf(streamErr))),
			zap.Error(streamErr))
		return streamErr
	}
	return nil
}

// SetConfig validates a provider/model/key selection with a one-shot
// low-token probe before making it the active configuration. A probe failure
// leaves the active configuration untouched.
func (a *App) SetConfig(ctx context.Context, p provider.Provider, model, apiKey string) error {
	if !provider.Known(p) {
		return fmt.Errorf("unknown provider: %s", p)
	}

	if p.IsCLI() {
		// CLI providers have nothing to probe; connecting spawns the process.
		if err := a.conn.SetProvider(p); err != nil {
			return err
		}
		return a.conn.SetConnected(true)
	}

	client, err := a.newClient(ctx, p, apiKey)
	if err != nil {
		return err
	}
	if err := client.Verify(ctx); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}

	if err := a.conn.SetAPIKey(p, apiKey); err != nil {
		return err
	}
	if err := a.conn.SetProvider(p); err != nil {
		return err
	}
	if model != "" {
		if err := a.conn.SetModel(model); err != nil {
			return err
		}
	}
	return a.conn.SetConnected(true)
}

// EnsureTerminal reattaches or spawns the active session's CLI terminal. The
// registry's idempotent connect makes the reattach-vs-spawn decision.
func (a *App) EnsureTerminal() (pty.ConnectResult, error) {
	a.mu.Lock()
	id := a.sessions.ActiveID()
	p := a.conn.Provider()
	dir := a.view.Dir
	a.mu.Unlock()

	if id == "" {
		return pty.ConnectResult{}, fmt.Errorf("no active session")
	}
	if !p.IsCLI() {
		return pty.ConnectResult{}, fmt.Errorf("provider %s is not a CLI provider", p)
	}
	return a.registry.Connect(id, p, dir)
}

// AddTask appends a task to the live task list, assigning the next counter
// value. Task ids are never reused, even after deletion.
func (a *App) AddTask(text string) session.Task {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := session.Task{ID: a.view.TaskCounter, Text: text}
	a.view.TaskCounter++
	a.view.Tasks = append(a.view.Tasks, t)
	return t
}

// SetTaskDone flips a task's done flag; unknown ids are ignored.
func (a *App) SetTaskDone(id int, done bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.view.Tasks {
		if a.view.Tasks[i].ID == id {
			a.view.Tasks[i].Done = done
			return
		}
	}
}

// RemoveTask deletes a task from the live list; unknown ids are ignored.
func (a *App) RemoveTask(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.view.Tasks {
		if a.view.Tasks[i].ID == id {
			a.view.Tasks = append(a.view.Tasks[:i], a.view.Tasks[i+1:]...)
			return
		}
	}
}
