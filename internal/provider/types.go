// Package provider defines the uniform contract for AI providers. API
// providers stream chat turns over their vendor SDK; CLI providers resolve to
// an interactive command spawned by the PTY registry.
package provider

import (
	"context"

	"github.com/deskmux/deskmux/internal/message"
)

// Provider identifies one AI integration.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderClaudeCLI Provider = "claude-cli"
	ProviderGeminiCLI Provider = "gemini-cli"
)

// All lists every known provider in display order.
var All = []Provider{
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderGoogle,
	ProviderClaudeCLI,
	ProviderGeminiCLI,
}

// IsCLI reports whether the provider is accessed by spawning an interactive
// command rather than calling a network API.
func (p Provider) IsCLI() bool {
	return p == ProviderClaudeCLI || p == ProviderGeminiCLI
}

// Known reports whether p is a recognized provider kind.
func Known(p Provider) bool {
	for _, q := range All {
		if p == q {
			return true
		}
	}
	return false
}

// models is the static per-provider model list. CLI providers have none.
var models = map[Provider][]string{
	ProviderAnthropic: {
		"claude-sonnet-4-5",
		"claude-opus-4-5",
		"claude-haiku-3-5",
	},
	ProviderOpenAI: {
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
	},
	ProviderGoogle: {
		"gemini-2.5-flash",
		"gemini-2.5-pro",
	},
}

// Models returns the available models for a provider, nil for CLI providers.
func Models(p Provider) []string {
	return models[p]
}

// FirstModel returns the default model for a provider, "" if it has none.
func FirstModel(p Provider) string {
	if m := models[p]; len(m) > 0 {
		return m[0]
	}
	return ""
}

// cliCommands maps CLI providers to the command spawned for them.
var cliCommands = map[Provider][]string{
	ProviderClaudeCLI: {"claude"},
	ProviderGeminiCLI: {"gemini"},
}

// CLICommand returns the command and arguments spawned for a CLI provider.
func CLICommand(p Provider) ([]string, bool) {
	cmd, ok := cliCommands[p]
	return cmd, ok
}

// CompletionOptions contains options for one streamed turn.
type CompletionOptions struct {
	Model     string
	Messages  []message.Message
	MaxTokens int
}

// LLMProvider is the interface every API provider client implements.
type LLMProvider interface {
	// Name returns the provider name.
	Name() string

	// Stream sends a completion request and returns a channel of chunks.
	// The channel always terminates with a done or error chunk and is then
	// closed, even when the transport fails mid-stream.
	Stream(ctx context.Context, opts CompletionOptions) <-chan message.StreamChunk

	// Verify performs a one-shot low-token probe of the credentials.
	Verify(ctx context.Context) error
}
