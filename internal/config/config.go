// Package config defines the YAML configuration model for Kestrel and the
// lookup rules that bind Slack channels and slash commands to LLM providers
// and enrichment tools.
//
// Configuration is loaded once at startup, validated, and treated as
// read-only afterwards. Rule lookups return the first enabled match.
package config

import (
	"fmt"
	"strings"
	"time"
)

// ProviderKind identifies an LLM backend.
type ProviderKind string

const (
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOpenAI    ProviderKind = "openai"
	ProviderBedrock   ProviderKind = "bedrock"
)

// ToolKind identifies an enrichment tool type.
type ToolKind string

const (
	ToolWeather  ToolKind = "weather"
	ToolNewsfeed ToolKind = "newsfeed"
)

// Config is the root configuration document.
type Config struct {
	Settings Settings      `yaml:"settings"`
	Channels []ChannelRule `yaml:"channels"`
	Commands []CommandRule `yaml:"slash_commands"`
}

// Settings holds global application settings.
type Settings struct {
	LogLevel          string  `yaml:"log_level"`
	MaxMessageLength  int     `yaml:"max_message_length"`
	ProviderTimeout   int     `yaml:"provider_timeout"`
	IgnoreBotMessages *bool   `yaml:"ignore_bot_messages"`
	IgnoreSelf        *bool   `yaml:"ignore_self"`
	GuardEnabled      bool    `yaml:"guard_enabled"`
	GuardThreshold    float64 `yaml:"guard_threshold"`
	MetricsPort       int     `yaml:"metrics_port"`
}

// ProviderConfig selects and parameterizes an LLM backend for a rule.
// Temperature is a pointer so an explicit 0.0 is distinguishable from an
// omitted value, which defaults to 0.7.
type ProviderConfig struct {
	Provider    ProviderKind `yaml:"provider"`
	APIKey      string       `yaml:"api_key"`
	Model       string       `yaml:"model"`
	MaxTokens   int          `yaml:"max_tokens"`
	Temperature *float64     `yaml:"temperature"`
	BaseURL     string       `yaml:"base_url"`

	// Bedrock-only fields. Empty credentials fall back to the default
	// AWS credential chain.
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"aws_access_key_id"`
	SecretAccessKey string `yaml:"aws_secret_access_key"`

	// Attribution metadata forwarded by OpenAI-compatible gateways
	// such as OpenRouter.
	SiteURL  string `yaml:"site_url"`
	SiteName string `yaml:"site_name"`
}

// ResponseConfig controls how a channel rule replies.
type ResponseConfig struct {
	ThreadReply *bool  `yaml:"thread_reply"`
	AddReaction string `yaml:"add_reaction"`
}

// ChannelRule configures one monitored Slack channel.
type ChannelRule struct {
	ChannelID     string         `yaml:"channel_id"`
	ChannelName   string         `yaml:"channel_name"`
	Enabled       *bool          `yaml:"enabled"`
	Keywords      []string       `yaml:"keywords"`
	CaseSensitive bool           `yaml:"case_sensitive"`
	RequireImage  bool           `yaml:"require_image"`
	LLM           ProviderConfig `yaml:"llm"`
	SystemPrompt  string         `yaml:"system_prompt"`
	Tools         []ToolConfig   `yaml:"tools"`
	Response      ResponseConfig `yaml:"response"`
}

// CommandRule configures one slash command.
type CommandRule struct {
	Command      string         `yaml:"command"`
	Description  string         `yaml:"description"`
	Enabled      *bool          `yaml:"enabled"`
	LLM          ProviderConfig `yaml:"llm"`
	SystemPrompt string         `yaml:"system_prompt"`
	Tools        []ToolConfig   `yaml:"tools"`
}

// ToolConfig is the tagged union over tool kinds. Type selects which of
// the remaining fields apply; the tools factory validates the payload
// at construction time.
type ToolConfig struct {
	Type ToolKind `yaml:"type"`

	// weather
	APIKey    string   `yaml:"api_key"`
	Location  string   `yaml:"location"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	Units     string   `yaml:"units"`
	Language  string   `yaml:"language"`

	// newsfeed
	FeedURLs   []string `yaml:"feed_urls"`
	DataFile   string   `yaml:"data_file"`
	MaxStories int      `yaml:"max_stories"`
}

// IsEnabled reports whether the channel rule is active. Rules default
// to enabled when the flag is omitted.
func (r *ChannelRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// IsEnabled reports whether the command rule is active.
func (r *CommandRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ReplyInThread reports whether replies go to the message thread.
// Defaults to true.
func (r ResponseConfig) ReplyInThread() bool {
	return r.ThreadReply == nil || *r.ThreadReply
}

// TemperatureValue returns the sampling temperature, defaulting to 0.7
// when unset.
func (p ProviderConfig) TemperatureValue() float64 {
	if p.Temperature == nil {
		return 0.7
	}
	return *p.Temperature
}

// ProviderTimeoutDuration returns the provider call timeout as a duration.
func (s Settings) ProviderTimeoutDuration() time.Duration {
	return time.Duration(s.ProviderTimeout) * time.Second
}

// IgnoreBots reports whether messages from bot accounts are suppressed.
// Defaults to true.
func (s Settings) IgnoreBots() bool {
	return s.IgnoreBotMessages == nil || *s.IgnoreBotMessages
}

// IgnoreOwn reports whether the bot's own messages are suppressed.
// Defaults to true.
func (s Settings) IgnoreOwn() bool {
	return s.IgnoreSelf == nil || *s.IgnoreSelf
}

// ChannelRule returns the first enabled rule for the channel ID, or nil.
func (c *Config) ChannelRule(channelID string) *ChannelRule {
	for i := range c.Channels {
		if c.Channels[i].ChannelID == channelID && c.Channels[i].IsEnabled() {
			return &c.Channels[i]
		}
	}
	return nil
}

// CommandRule returns the first enabled rule for the command name, or nil.
// The name is normalized to a leading slash before matching.
func (c *Config) CommandRule(command string) *CommandRule {
	command = normalizeCommand(command)
	for i := range c.Commands {
		if c.Commands[i].Command == command && c.Commands[i].IsEnabled() {
			return &c.Commands[i]
		}
	}
	return nil
}

func normalizeCommand(command string) string {
	if command == "" || strings.HasPrefix(command, "/") {
		return command
	}
	return "/" + command
}

// applyDefaults fills unset fields and clamps bounded values in place.
func (c *Config) applyDefaults() {
	s := &c.Settings
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.MaxMessageLength <= 0 {
		s.MaxMessageLength = 10000
	}
	if s.ProviderTimeout <= 0 {
		s.ProviderTimeout = 30
	}
	s.GuardThreshold = clamp01(s.GuardThreshold)
	if s.GuardEnabled && s.GuardThreshold == 0 {
		s.GuardThreshold = 0.92
	}

	for i := range c.Channels {
		c.Channels[i].LLM.applyDefaults()
	}
	for i := range c.Commands {
		c.Commands[i].Command = normalizeCommand(c.Commands[i].Command)
		c.Commands[i].LLM.applyDefaults()
	}
}

func (p *ProviderConfig) applyDefaults() {
	if p.Provider == "" {
		p.Provider = ProviderBedrock
	}
	if p.MaxTokens < 1 {
		p.MaxTokens = 1024
	}
	if p.Temperature == nil {
		v := 0.7
		p.Temperature = &v
	} else {
		v := clamp01(*p.Temperature)
		p.Temperature = &v
	}
	if p.Provider == ProviderBedrock && p.Region == "" {
		p.Region = "us-east-1"
	}
	if p.Model == "" {
		switch p.Provider {
		case ProviderAnthropic:
			p.Model = "claude-3-5-sonnet-20241022"
		case ProviderOpenAI:
			p.Model = "gpt-4o"
		case ProviderBedrock:
			p.Model = "anthropic.claude-3-5-haiku-20241022-v1:0"
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Validate checks the configuration for construction-time errors so that
// bad rules fail at startup rather than at request time.
func (c *Config) Validate() error {
	for i := range c.Channels {
		rule := &c.Channels[i]
		if rule.ChannelID == "" {
			return fmt.Errorf("channels[%d]: channel_id is required", i)
		}
		if rule.SystemPrompt == "" {
			return fmt.Errorf("channel %s: system_prompt is required", rule.ChannelID)
		}
		if err := rule.LLM.validate(); err != nil {
			return fmt.Errorf("channel %s: %w", rule.ChannelID, err)
		}
		for j := range rule.Tools {
			if err := rule.Tools[j].validate(); err != nil {
				return fmt.Errorf("channel %s: tools[%d]: %w", rule.ChannelID, j, err)
			}
		}
	}
	for i := range c.Commands {
		rule := &c.Commands[i]
		if rule.Command == "" || rule.Command == "/" {
			return fmt.Errorf("slash_commands[%d]: command is required", i)
		}
		if rule.SystemPrompt == "" {
			return fmt.Errorf("command %s: system_prompt is required", rule.Command)
		}
		if err := rule.LLM.validate(); err != nil {
			return fmt.Errorf("command %s: %w", rule.Command, err)
		}
		for j := range rule.Tools {
			if err := rule.Tools[j].validate(); err != nil {
				return fmt.Errorf("command %s: tools[%d]: %w", rule.Command, j, err)
			}
		}
	}
	return nil
}

func (p *ProviderConfig) validate() error {
	switch p.Provider {
	case ProviderAnthropic, ProviderOpenAI:
		if p.APIKey == "" {
			return fmt.Errorf("api_key is required for provider %q", p.Provider)
		}
	case ProviderBedrock:
		// Credentials may come from the default AWS chain.
	default:
		return fmt.Errorf("unknown provider %q (supported: anthropic, openai, bedrock)", p.Provider)
	}
	return nil
}

func (t *ToolConfig) validate() error {
	switch t.Type {
	case ToolWeather:
		if t.APIKey == "" {
			return fmt.Errorf("weather tool requires api_key")
		}
		hasCoords := t.Latitude != nil && t.Longitude != nil
		if t.Location == "" && !hasCoords {
			return fmt.Errorf("weather tool requires either location or both latitude and longitude")
		}
		if t.Location != "" && hasCoords {
			return fmt.Errorf("weather tool accepts location or latitude/longitude, not both")
		}
	case ToolNewsfeed:
		if len(t.FeedURLs) == 0 {
			return fmt.Errorf("newsfeed tool requires feed_urls with at least one URL")
		}
	case "":
		return fmt.Errorf("tool configuration must specify type")
	default:
		return fmt.Errorf("unknown tool type %q", t.Type)
	}
	return nil
}
