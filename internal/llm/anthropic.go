package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kestrelhq/kestrel/internal/config"
)

// anthropicProvider adapts the Anthropic Messages API to the Provider
// contract.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg config.ProviderConfig, timeout time.Duration) (*anthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

func (p *anthropicProvider) Generate(ctx context.Context, req *Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages:    convertAnthropicMessages(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.wrapError(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", &ProviderError{
		Reason:   FailureUnknown,
		Provider: p.Name(),
		Model:    p.model,
		Message:  "response contained no text content",
	}
}

func convertAnthropicMessages(messages []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case BlockImage:
				blocks = append(blocks, anthropic.NewImageBlockBase64(
					block.MimeType,
					base64.StdEncoding.EncodeToString(block.Data),
				))
			case BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			}
		}
		if msg.Role == RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result
}

func (p *anthropicProvider) wrapError(err error) *ProviderError {
	wrapped := WrapError(p.Name(), p.model, err)

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		wrapped.WithStatus(apiErr.StatusCode)
		wrapped.Message = fmt.Sprintf("anthropic api error: %v", apiErr)
	}
	return wrapped
}
