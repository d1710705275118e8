package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kestrelhq/kestrel/internal/config"
)

// openaiProvider adapts the OpenAI chat completions API. With a custom
// BaseURL it also serves OpenAI-compatible gateways such as OpenRouter;
// the optional site attribution headers are forwarded for those.
type openaiProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(cfg config.ProviderConfig, timeout time.Duration) (*openaiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: attributionTransport(cfg.SiteURL, cfg.SiteName),
	}

	return &openaiProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (p *openaiProvider) Name() string {
	return "openai"
}

func (p *openaiProvider) Generate(ctx context.Context, req *Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, convertOpenAIMessage(msg))
	}

	// ChatCompletionRequest.Temperature is tagged omitempty, so a plain
	// 0 would be dropped from the wire request and the API would apply
	// its own default. The smallest nonzero float stands in for an
	// explicit zero.
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", p.wrapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ProviderError{
			Reason:   FailureUnknown,
			Provider: p.Name(),
			Model:    p.model,
			Message:  "response contained no choices",
		}
	}
	return resp.Choices[0].Message.Content, nil
}

func convertOpenAIMessage(msg Message) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if msg.Role == RoleAssistant {
		role = openai.ChatMessageRoleAssistant
	}

	// Plain string content when the message is a single text block; the
	// multi-part shape is only needed for images.
	if len(msg.Content) == 1 && msg.Content[0].Type == BlockText {
		return openai.ChatCompletionMessage{Role: role, Content: msg.Content[0].Text}
	}

	parts := make([]openai.ChatMessagePart, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case BlockImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s",
						block.MimeType, base64.StdEncoding.EncodeToString(block.Data)),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		case BlockText:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: block.Text,
			})
		}
	}
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}

func (p *openaiProvider) wrapError(err error) *ProviderError {
	wrapped := WrapError(p.Name(), p.model, err)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped.WithStatus(apiErr.HTTPStatusCode)
		wrapped.Message = apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrapped.WithStatus(reqErr.HTTPStatusCode)
	}
	return wrapped
}

// attributionTransport adds OpenRouter attribution headers when site
// metadata is configured. Returns nil (the default transport) otherwise.
func attributionTransport(siteURL, siteName string) http.RoundTripper {
	if siteURL == "" && siteName == "" {
		return nil
	}
	return &headerTransport{siteURL: siteURL, siteName: siteName}
}

type headerTransport struct {
	siteURL  string
	siteName string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.siteURL != "" {
		clone.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.siteName != "" {
		clone.Header.Set("X-Title", t.siteName)
	}
	return http.DefaultTransport.RoundTrip(clone)
}
