package provider

import (
	"context"
	"sync"

	"github.com/deskmux/deskmux/internal/message"
)

// Fake is a test double that streams predefined responses.
//
// Usage:
//
//	fake := &provider.Fake{Responses: []string{"hello"}}
//	ch := fake.Stream(ctx, opts)
//
// Each call to Stream pops the first entry of Responses and emits it as a
// series of single-rune text chunks followed by a done chunk. ErrorAt injects
// ErrorValue on the Nth call (1-based) after any partial text in the popped
// response has been emitted.
type Fake struct {
	mu sync.Mutex

	// Responses is the queue of assistant replies, consumed in order.
	Responses []string

	// ProviderName defaults to "fake".
	ProviderName string

	// Calls records every CompletionOptions received, in order.
	Calls []CompletionOptions

	// ErrorAt injects an error on the Nth call (1-based). 0 means disabled.
	ErrorAt int

	// ErrorValue is the error to inject when ErrorAt triggers.
	ErrorValue error

	// VerifyErr is returned by Verify.
	VerifyErr error

	callCount int
}

// Name returns the fake provider name.
func (f *Fake) Name() string {
	if f.ProviderName != "" {
		return f.ProviderName
	}
	return "fake"
}

// Stream emits the next queued response as a finite chunk stream.
func (f *Fake) Stream(_ context.Context, opts CompletionOptions) <-chan message.StreamChunk {
	f.mu.Lock()
	f.Calls = append(f.Calls, opts)
	f.callCount++
	fail := f.ErrorAt > 0 && f.callCount == f.ErrorAt
	var text string
	if len(f.Responses) > 0 {
		text = f.Responses[0]
		f.Responses = f.Responses[1:]
	}
	f.mu.Unlock()

	ch := make(chan message.StreamChunk)
	go func() {
		defer close(ch)
		for _, r := range text {
			ch <- message.StreamChunk{Type: message.ChunkTypeText, Text: string(r)}
		}
		if fail {
			ch <- message.StreamChunk{Type: message.ChunkTypeError, Err: f.ErrorValue}
			return
		}
		ch <- message.StreamChunk{Type: message.ChunkTypeDone}
	}()
	return ch
}

// Verify returns the configured verification error.
func (f *Fake) Verify(context.Context) error {
	return f.VerifyErr
}

var _ LLMProvider = (*Fake)(nil)
