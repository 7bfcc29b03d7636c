// Package google implements the provider contract over the Google GenAI SDK.
package google

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/deskmux/deskmux/internal/log"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/provider"
)

// Client implements provider.LLMProvider using the Google GenAI SDK.
type Client struct {
	client *genai.Client
}

// NewClient creates a Google client with the given API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{client: client}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return string(provider.ProviderGoogle)
}

// Stream sends a completion request and returns a channel of streaming chunks.
func (c *Client) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		contents := convertHistory(opts.Messages)

		config := &genai.GenerateContentConfig{}
		if opts.MaxTokens > 0 {
			config.MaxOutputTokens = int32(opts.MaxTokens)
		}

		log.Logger().Debug("google request",
			zap.String("model", opts.Model),
			zap.Int("messages", len(contents)))

		streamStart := time.Now()
		chunkCount := 0

		for result, err := range c.client.Models.GenerateContentStream(ctx, opts.Model, contents, config) {
			if err != nil {
				log.Logger().Debug("google stream failed", zap.Error(err))
				ch <- message.StreamChunk{
					Type: message.ChunkTypeError,
					Err:  categorize(err),
				}
				return
			}
			chunkCount++

			for _, candidate := range result.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						ch <- message.StreamChunk{
							Type: message.ChunkTypeText,
							Text: part.Text,
						}
					}
				}
			}
		}

		log.Logger().Debug("google stream done",
			zap.Duration("elapsed", time.Since(streamStart)),
			zap.Int("chunks", chunkCount))

		ch <- message.StreamChunk{Type: message.ChunkTypeDone}
	}()

	return ch
}

// Verify performs a one-shot low-token probe of the credentials.
func (c *Client) Verify(ctx context.Context) error {
	maxTokens := int32(1)
	_, err := c.client.Models.GenerateContent(ctx,
		provider.FirstModel(provider.ProviderGoogle),
		genai.Text("ping"),
		&genai.GenerateContentConfig{MaxOutputTokens: maxTokens},
	)
	if err != nil {
		return categorize(err)
	}
	return nil
}

// convertHistory maps the canonical history onto GenAI contents. This API has
// no "assistant" role; assistant turns are remapped to "model". Image blocks
// become inline-data parts carrying raw bytes.
func convertHistory(msgs []message.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		var role genai.Role
		switch msg.Role {
		case message.RoleUser:
			role = genai.RoleUser
		case message.RoleAssistant:
			role = genai.RoleModel
		default:
			continue
		}

		var parts []*genai.Part
		if len(msg.Parts) > 0 {
			for _, part := range msg.Parts {
				switch part.Type {
				case message.PartImage:
					if part.Image != nil {
						raw, err := base64.StdEncoding.DecodeString(part.Image.Data)
						if err != nil {
							continue
						}
						parts = append(parts, &genai.Part{
							InlineData: &genai.Blob{
								MIMEType: part.Image.MediaType,
								Data:     raw,
							},
						})
					}
				case message.PartText:
					if part.Text != "" {
						parts = append(parts, &genai.Part{Text: part.Text})
					}
				default:
					parts = append(parts, &genai.Part{Text: fmt.Sprintf("%v", part)})
				}
			}
		} else {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}

		contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
	}
	return contents
}

// categorize maps SDK errors onto the shared error taxonomy.
func categorize(err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return provider.WrapStatus(apierr.Code, err)
	}
	return provider.WrapStatus(0, err)
}

// init registers the client factory.
func init() {
	provider.Register(provider.ProviderGoogle, func(ctx context.Context, apiKey string) (provider.LLMProvider, error) {
		return NewClient(ctx, apiKey)
	})
}

// Ensure Client implements LLMProvider.
var _ provider.LLMProvider = (*Client)(nil)
