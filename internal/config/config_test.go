package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
settings:
  log_level: debug
  max_message_length: 4000
  provider_timeout: 45
  guard_enabled: true
  guard_threshold: 0.9

channels:
  - channel_id: C0123456789
    channel_name: support
    keywords: ["help", "question"]
    llm:
      provider: anthropic
      api_key: sk-test
      model: claude-3-5-sonnet-20241022
      max_tokens: 2048
      temperature: 0.7
    system_prompt: You are a support assistant.
    response:
      thread_reply: true
      add_reaction: eyes

  - channel_id: C0000000001
    channel_name: weather
    llm:
      provider: openai
      api_key: sk-openai
    system_prompt: You report the weather.
    tools:
      - type: weather
        api_key: owm-key
        location: "Boston,US"
        units: imperial

slash_commands:
  - command: ask
    description: Ask a question
    llm:
      provider: bedrock
    system_prompt: Answer concisely.
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := cfg.Settings.MaxMessageLength; got != 4000 {
		t.Errorf("MaxMessageLength = %d, want 4000", got)
	}
	if got := cfg.Settings.ProviderTimeoutDuration().Seconds(); got != 45 {
		t.Errorf("ProviderTimeoutDuration = %vs, want 45s", got)
	}
	if !cfg.Settings.GuardEnabled {
		t.Error("GuardEnabled = false, want true")
	}
	if len(cfg.Channels) != 2 {
		t.Fatalf("len(Channels) = %d, want 2", len(cfg.Channels))
	}
	if len(cfg.Commands) != 1 {
		t.Fatalf("len(Commands) = %d, want 1", len(cfg.Commands))
	}
	if got := cfg.Commands[0].Command; got != "/ask" {
		t.Errorf("Command = %q, want %q (leading slash added)", got, "/ask")
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
channels:
  - channel_id: C1
    channel_name: general
    llm:
      provider: anthropic
      api_key: sk-test
    system_prompt: Hi.
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	s := cfg.Settings
	if s.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", s.LogLevel, "info")
	}
	if s.MaxMessageLength != 10000 {
		t.Errorf("MaxMessageLength = %d, want 10000", s.MaxMessageLength)
	}
	if s.ProviderTimeout != 30 {
		t.Errorf("ProviderTimeout = %d, want 30", s.ProviderTimeout)
	}
	if !s.IgnoreBots() {
		t.Error("IgnoreBots() = false, want true by default")
	}
	if !s.IgnoreOwn() {
		t.Error("IgnoreOwn() = false, want true by default")
	}

	llm := cfg.Channels[0].LLM
	if llm.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", llm.MaxTokens)
	}
	if llm.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("Model = %q, want anthropic default", llm.Model)
	}
	if !cfg.Channels[0].Response.ReplyInThread() {
		t.Error("ReplyInThread() = false, want true by default")
	}
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want float64
	}{
		{
			name: "unset defaults to 0.7",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
`,
			want: 0.7,
		},
		{
			name: "explicit zero is kept",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk, temperature: 0.0}
    system_prompt: Hi.
`,
			want: 0,
		},
		{
			name: "clamped to 1",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk, temperature: 1.5}
    system_prompt: Hi.
`,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := cfg.Channels[0].LLM.TemperatureValue(); got != tt.want {
				t.Errorf("TemperatureValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemperatureValueUnset(t *testing.T) {
	var p ProviderConfig
	if got := p.TemperatureValue(); got != 0.7 {
		t.Errorf("TemperatureValue() = %v, want 0.7 default", got)
	}
}

func TestParseGuardThresholdDefault(t *testing.T) {
	cfg, err := Parse([]byte(`
settings:
  guard_enabled: true
channels:
  - channel_id: C1
    channel_name: general
    llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := cfg.Settings.GuardThreshold; got != 0.92 {
		t.Errorf("GuardThreshold = %v, want 0.92", got)
	}
}

func TestParseBedrockDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
slash_commands:
  - command: /ask
    llm: {}
    system_prompt: Answer.
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	llm := cfg.Commands[0].LLM
	if llm.Provider != ProviderBedrock {
		t.Errorf("Provider = %q, want bedrock default", llm.Provider)
	}
	if llm.Region != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", llm.Region)
	}
	if llm.Model != "anthropic.claude-3-5-haiku-20241022-v1:0" {
		t.Errorf("Model = %q, want bedrock default", llm.Model)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
settings:
  log_levl: info
`))
	if err == nil {
		t.Fatal("Parse() accepted a misspelled field")
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing channel_id",
			yaml: `
channels:
  - channel_name: general
    llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
`,
			wantErr: "channel_id is required",
		},
		{
			name: "missing system_prompt",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk}
`,
			wantErr: "system_prompt is required",
		},
		{
			name: "missing api_key",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: openai}
    system_prompt: Hi.
`,
			wantErr: "api_key is required",
		},
		{
			name: "unknown provider",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: cohere, api_key: sk}
    system_prompt: Hi.
`,
			wantErr: "unknown provider",
		},
		{
			name: "weather tool without location",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
    tools:
      - type: weather
        api_key: owm
`,
			wantErr: "location or both latitude and longitude",
		},
		{
			name: "weather tool with both location and coordinates",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
    tools:
      - type: weather
        api_key: owm
        location: Boston
        latitude: 42.36
        longitude: -71.06
`,
			wantErr: "not both",
		},
		{
			name: "newsfeed tool without feeds",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
    tools:
      - type: newsfeed
`,
			wantErr: "feed_urls",
		},
		{
			name: "unknown tool type",
			yaml: `
channels:
  - channel_id: C1
    llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
    tools:
      - type: stocks
`,
			wantErr: "unknown tool type",
		},
		{
			name: "command without name",
			yaml: `
slash_commands:
  - llm: {provider: anthropic, api_key: sk}
    system_prompt: Hi.
`,
			wantErr: "command is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
channels:
  - channel_id: C1
    channel_name: general
    llm:
      provider: anthropic
      api_key: ${TEST_ANTHROPIC_KEY}
    system_prompt: Hi.
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Channels[0].LLM.APIKey; got != "sk-from-env" {
		t.Errorf("APIKey = %q, want %q", got, "sk-from-env")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() error = nil for missing file")
	}
}

func TestChannelRuleLookup(t *testing.T) {
	disabled := false
	cfg := &Config{
		Channels: []ChannelRule{
			{ChannelID: "C1", Enabled: &disabled},
			{ChannelID: "C1", ChannelName: "second"},
			{ChannelID: "C2"},
		},
	}

	rule := cfg.ChannelRule("C1")
	if rule == nil {
		t.Fatal("ChannelRule(C1) = nil, want rule")
	}
	if rule.ChannelName != "second" {
		t.Errorf("ChannelRule(C1) picked %q, want first enabled match", rule.ChannelName)
	}
	if cfg.ChannelRule("C9") != nil {
		t.Error("ChannelRule(C9) != nil, want nil")
	}
}

func TestCommandRuleLookup(t *testing.T) {
	cfg := &Config{
		Commands: []CommandRule{{Command: "/ask"}},
	}

	for _, name := range []string{"/ask", "ask"} {
		if cfg.CommandRule(name) == nil {
			t.Errorf("CommandRule(%q) = nil, want rule", name)
		}
	}
	if cfg.CommandRule("/other") != nil {
		t.Error("CommandRule(/other) != nil, want nil")
	}
	if cfg.CommandRule("") != nil {
		t.Error(`CommandRule("") != nil, want nil`)
	}
}
