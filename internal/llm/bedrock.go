package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/kestrelhq/kestrel/internal/config"
)

// bedrockProvider adapts AWS Bedrock's InvokeModel API using the
// Anthropic native request shape, which covers the Claude model family
// hosted on Bedrock.
type bedrockProvider struct {
	client *bedrockruntime.Client
	model  string
	region string
}

// Anthropic native payload for Bedrock InvokeModel.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []bedrockBlock `json:"content"`
}

type bedrockBlock struct {
	Type   string              `json:"type"`
	Text   string              `json:"text,omitempty"`
	Source *bedrockImageSource `json:"source,omitempty"`
}

type bedrockImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func newBedrockProvider(cfg config.ProviderConfig, timeout time.Duration) (*bedrockProvider, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}

	return &bedrockProvider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  cfg.Model,
		region: cfg.Region,
	}, nil
}

func (p *bedrockProvider) Name() string {
	return "bedrock"
}

func (p *bedrockProvider) Generate(ctx context.Context, req *Request) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		System:           req.SystemPrompt,
		Messages:         convertBedrockMessages(req.Messages),
	})
	if err != nil {
		return "", WrapError(p.Name(), p.model, fmt.Errorf("encode request: %w", err))
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", WrapError(p.Name(), p.model, err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", WrapError(p.Name(), p.model, fmt.Errorf("decode response: %w", err))
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

func convertBedrockMessages(messages []Message) []bedrockMessage {
	result := make([]bedrockMessage, 0, len(messages))
	for _, msg := range messages {
		blocks := make([]bedrockBlock, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case BlockImage:
				blocks = append(blocks, bedrockBlock{
					Type: "image",
					Source: &bedrockImageSource{
						Type:      "base64",
						MediaType: block.MimeType,
						Data:      base64.StdEncoding.EncodeToString(block.Data),
					},
				})
			case BlockText:
				blocks = append(blocks, bedrockBlock{Type: "text", Text: block.Text})
			}
		}
		result = append(result, bedrockMessage{Role: string(msg.Role), Content: blocks})
	}
	return result
}
