package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.MessagesProcessed.WithLabelValues("message", "replied").Inc()
	m.MessagesProcessed.WithLabelValues("message", "dropped").Add(2)
	m.LLMRequests.WithLabelValues("anthropic", "claude-3-5-sonnet-20241022", "success").Inc()
	m.LLMRequestDuration.WithLabelValues("anthropic", "claude-3-5-sonnet-20241022").Observe(1.2)
	m.ToolExecutions.WithLabelValues("Weather", "success").Inc()
	m.GuardRejections.Inc()

	if got := testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("message", "dropped")); got != 2 {
		t.Errorf("messages dropped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.GuardRejections); got != 1 {
		t.Errorf("guard rejections = %v, want 1", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	want := map[string]bool{
		"kestrel_messages_processed_total":     false,
		"kestrel_llm_requests_total":           false,
		"kestrel_llm_request_duration_seconds": false,
		"kestrel_tool_executions_total":        false,
		"kestrel_guard_rejections_total":       false,
	}
	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s not registered", name)
		}
	}
}
