// Package openai implements the provider contract over the OpenAI SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/deskmux/deskmux/internal/log"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/provider"
)

// Client implements provider.LLMProvider using the OpenAI SDK.
type Client struct {
	client openai.Client
}

// NewClient creates an OpenAI client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return string(provider.ProviderOpenAI)
}

// Stream sends a completion request and returns a channel of streaming chunks.
func (c *Client) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk)

	go func() {
		defer close(ch)

		params := openai.ChatCompletionNewParams{
			Model:    opts.Model,
			Messages: convertHistory(opts.Messages),
		}
		if opts.MaxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
		}

		log.Logger().Debug("openai request",
			zap.String("model", opts.Model),
			zap.Int("messages", len(params.Messages)))

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)

		streamStart := time.Now()
		chunkCount := 0

		for stream.Next() {
			chunk := stream.Current()
			chunkCount++

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					ch <- message.StreamChunk{
						Type: message.ChunkTypeText,
						Text: choice.Delta.Content,
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			log.Logger().Debug("openai stream failed", zap.Error(err))
			ch <- message.StreamChunk{
				Type: message.ChunkTypeError,
				Err:  categorize(err),
			}
			return
		}

		log.Logger().Debug("openai stream done",
			zap.Duration("elapsed", time.Since(streamStart)),
			zap.Int("chunks", chunkCount))

		ch <- message.StreamChunk{Type: message.ChunkTypeDone}
	}()

	return ch
}

// Verify performs a one-shot low-token probe of the credentials.
func (c *Client) Verify(ctx context.Context) error {
	params := openai.ChatCompletionNewParams{
		Model:               provider.FirstModel(provider.ProviderOpenAI),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		MaxCompletionTokens: openai.Int(1),
	}
	if _, err := c.client.Chat.Completions.New(ctx, params); err != nil {
		return categorize(err)
	}
	return nil
}

// convertHistory maps the canonical history onto OpenAI chat messages.
// Image blocks become data-URI image_url parts, the shape this API expects
// for inline images.
func convertHistory(msgs []message.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleUser:
			if len(msg.Parts) > 0 {
				parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
				for _, part := range msg.Parts {
					switch part.Type {
					case message.PartImage:
						if part.Image != nil {
							dataURI := fmt.Sprintf("data:%s;base64,%s", part.Image.MediaType, part.Image.Data)
							parts = append(parts, openai.ChatCompletionContentPartUnionParam{
								OfImageURL: &openai.ChatCompletionContentPartImageParam{
									ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
										URL: dataURI,
									},
								},
							})
						}
					case message.PartText:
						if part.Text != "" {
							parts = append(parts, openai.ChatCompletionContentPartUnionParam{
								OfText: &openai.ChatCompletionContentPartTextParam{
									Text: part.Text,
								},
							})
						}
					default:
						parts = append(parts, openai.ChatCompletionContentPartUnionParam{
							OfText: &openai.ChatCompletionContentPartTextParam{
								Text: fmt.Sprintf("%v", part),
							},
						})
					}
				}
				out = append(out, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfArrayOfContentParts: parts,
						},
					},
				})
			} else {
				out = append(out, openai.UserMessage(msg.Content))
			}
		case message.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.PlainText()))
		}
	}
	return out
}

// categorize maps SDK errors onto the shared error taxonomy.
func categorize(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return provider.WrapStatus(apierr.StatusCode, err)
	}
	return provider.WrapStatus(0, err)
}

// init registers the client factory.
func init() {
	provider.Register(provider.ProviderOpenAI, func(_ context.Context, apiKey string) (provider.LLMProvider, error) {
		return NewClient(apiKey), nil
	})
}

// Ensure Client implements LLMProvider.
var _ provider.LLMProvider = (*Client)(nil)
