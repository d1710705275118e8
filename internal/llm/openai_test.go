package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kestrelhq/kestrel/internal/config"
)

func newTestOpenAIProvider(t *testing.T, server *httptest.Server) Provider {
	t.Helper()
	p, err := newOpenAIProvider(config.ProviderConfig{
		Provider: config.ProviderOpenAI,
		APIKey:   "sk-test",
		Model:    "gpt-4o",
		BaseURL:  server.URL,
	}, 10*time.Second)
	if err != nil {
		t.Fatalf("newOpenAIProvider() error = %v", err)
	}
	return p
}

func completionResponse(text string) string {
	return fmt.Sprintf(`{
		"id": "cmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}}]
	}`, text)
}

func TestOpenAIGenerateSendsExplicitZeroTemperature(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, completionResponse("ok"))
	}))
	defer server.Close()

	p := newTestOpenAIProvider(t, server)
	out, err := p.Generate(t.Context(), &Request{
		Messages:    []Message{UserMessage(TextBlock("hi"))},
		MaxTokens:   100,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "ok" {
		t.Errorf("Generate() = %q", out)
	}

	// A requested temperature of 0 must reach the wire; the field is
	// omitempty in the SDK, so a literal 0 would vanish and the API
	// would substitute its own default.
	raw, present := body["temperature"]
	if !present {
		t.Fatal("temperature missing from the request body")
	}
	v, ok := raw.(float64)
	if !ok {
		t.Fatalf("temperature = %T(%v), want number", raw, raw)
	}
	if v < 0 || v > 1e-30 {
		t.Errorf("temperature = %v, want effectively zero", v)
	}
}

func TestOpenAIGeneratePassesTemperatureThrough(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, completionResponse("ok"))
	}))
	defer server.Close()

	p := newTestOpenAIProvider(t, server)
	if _, err := p.Generate(t.Context(), &Request{
		Messages:    []Message{UserMessage(TextBlock("hi"))},
		MaxTokens:   100,
		Temperature: 0.7,
	}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	v, _ := body["temperature"].(float64)
	if v < 0.69 || v > 0.71 {
		t.Errorf("temperature = %v, want 0.7", v)
	}
}
