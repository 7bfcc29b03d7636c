// Package anthropic implements the provider contract over the Anthropic SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/deskmux/deskmux/internal/log"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/provider"
)

const defaultMaxTokens = 8192

// Client implements provider.LLMProvider using the Anthropic SDK.
type Client struct {
	client anthropic.Client
}

// NewClient creates an Anthropic client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return string(provider.ProviderAnthropic)
}

// Stream sends a completion request and returns a channel of streaming chunks.
func (c *Client) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(opts.Model),
			MaxTokens: int64(maxTokens(opts)),
			Messages:  convertHistory(opts.Messages),
		}

		log.Logger().Debug("anthropic request",
			zap.String("model", opts.Model),
			zap.Int("messages", len(params.Messages)))

		stream := c.client.Messages.NewStreaming(ctx, params)

		streamStart := time.Now()
		chunkCount := 0

		for stream.Next() {
			event := stream.Current()
			chunkCount++

			if event.Type == "content_block_delta" {
				delta := event.AsContentBlockDelta()
				if delta.Delta.Type == "text_delta" && delta.Delta.Text != "" {
					ch <- message.StreamChunk{
						Type: message.ChunkTypeText,
						Text: delta.Delta.Text,
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			log.Logger().Debug("anthropic stream failed", zap.Error(err))
			ch <- message.StreamChunk{
				Type: message.ChunkTypeError,
				Err:  categorize(err),
			}
			return
		}

		log.Logger().Debug("anthropic stream done",
			zap.Duration("elapsed", time.Since(streamStart)),
			zap.Int("chunks", chunkCount))

		ch <- message.StreamChunk{Type: message.ChunkTypeDone}
	}()

	return ch
}

// Verify performs a one-shot low-token probe of the credentials.
func (c *Client) Verify(ctx context.Context) error {
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(provider.FirstModel(provider.ProviderAnthropic)),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return categorize(err)
	}
	return nil
}

// convertHistory maps the canonical history onto Anthropic message params.
// Content blocks map verbatim: text blocks stay text blocks, image blocks
// become base64 image blocks. Error and system roles never reach the wire.
func convertHistory(msgs []message.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleUser:
			if len(msg.Parts) > 0 {
				blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
				for _, part := range msg.Parts {
					switch part.Type {
					case message.PartImage:
						if part.Image != nil {
							blocks = append(blocks, anthropic.NewImageBlockBase64(
								part.Image.MediaType,
								part.Image.Data,
							))
						}
					case message.PartText:
						if part.Text != "" {
							blocks = append(blocks, anthropic.NewTextBlock(part.Text))
						}
					default:
						blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("%v", part)))
					}
				}
				out = append(out, anthropic.NewUserMessage(blocks...))
			} else {
				out = append(out, anthropic.NewUserMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}
		case message.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.PlainText()),
			))
		}
	}
	return out
}

func maxTokens(opts provider.CompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return defaultMaxTokens
}

// categorize maps SDK errors onto the shared error taxonomy.
func categorize(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return provider.WrapStatus(apierr.StatusCode, err)
	}
	return provider.WrapStatus(0, err)
}

// init registers the client factory.
func init() {
	provider.Register(provider.ProviderAnthropic, func(_ context.Context, apiKey string) (provider.LLMProvider, error) {
		return NewClient(apiKey), nil
	})
}

// Ensure Client implements LLMProvider.
var _ provider.LLMProvider = (*Client)(nil)
