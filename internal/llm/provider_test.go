package llm

import (
	"testing"
	"time"

	"github.com/kestrelhq/kestrel/internal/config"
)

func anthropicCfg(key string) config.ProviderConfig {
	return config.ProviderConfig{
		Provider:  config.ProviderAnthropic,
		APIKey:    key,
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 1024,
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.ProviderConfig{Provider: "cohere"}, time.Second)
	if err == nil {
		t.Fatal("New() error = nil for unknown provider kind")
	}
}

func TestCacheReusesClients(t *testing.T) {
	cache := NewCache()

	first, err := cache.Get(anthropicCfg("sk-a"), 30*time.Second)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := cache.Get(anthropicCfg("sk-a"), 30*time.Second)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if first != second {
		t.Error("Get() built a new client for an identical configuration")
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1", cache.Size())
	}
}

func TestCacheSeparatesConfigurations(t *testing.T) {
	cache := NewCache()

	base := anthropicCfg("sk-a")
	if _, err := cache.Get(base, 30*time.Second); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Different key, model, and timeout each get their own client.
	otherKey := anthropicCfg("sk-b")
	otherModel := anthropicCfg("sk-a")
	otherModel.Model = "claude-3-5-haiku-20241022"

	for _, cfg := range []config.ProviderConfig{otherKey, otherModel} {
		if _, err := cache.Get(cfg, 30*time.Second); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if _, err := cache.Get(base, 60*time.Second); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if cache.Size() != 4 {
		t.Errorf("Size() = %d, want 4", cache.Size())
	}
}

func TestCachePropagatesConstructionError(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Get(config.ProviderConfig{Provider: "nope"}, time.Second); err == nil {
		t.Fatal("Get() error = nil for unknown provider kind")
	}
	if cache.Size() != 0 {
		t.Errorf("Size() = %d after failed construction, want 0", cache.Size())
	}
}

func TestImageBlockDefaultsMimeType(t *testing.T) {
	block := ImageBlock([]byte{0xFF, 0xD8}, "")
	if block.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want image/jpeg default", block.MimeType)
	}
	if block.Type != BlockImage {
		t.Errorf("Type = %q, want image", block.Type)
	}
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage(TextBlock("hi"))
	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}
	if len(msg.Content) != 1 || msg.Content[0].Text != "hi" {
		t.Errorf("Content = %+v, want single text block", msg.Content)
	}
}
