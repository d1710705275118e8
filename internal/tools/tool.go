// Package tools implements context-enrichment tools that fetch external
// data and return text appended to a rule's system prompt.
//
// A tool failure never aborts the request: the orchestrator logs it and
// continues with the remaining tools. Construction is the opposite —
// unknown types or missing required fields fail fast so bad configuration
// surfaces at startup, not at request time.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelhq/kestrel/internal/config"
)

// Context carries per-request data into a tool invocation. It is passed
// by value; tools must not retain or mutate it.
type Context struct {
	UserInput string
	UserID    string
	ChannelID string
	Timestamp time.Time
}

// Tool is the uniform enrichment contract.
type Tool interface {
	// Name identifies the tool in logs and enrichment headings.
	Name() string

	// Execute fetches enrichment data and returns it as text. External
	// transport failures that should degrade gracefully are returned as
	// human-readable output, not as errors.
	Execute(ctx context.Context, ec Context) (string, error)
}

// New constructs the tool selected by the config's type tag. The switch
// is exhaustive over config.ToolKind.
func New(cfg config.ToolConfig) (Tool, error) {
	switch cfg.Type {
	case config.ToolWeather:
		return newWeatherTool(cfg)
	case config.ToolNewsfeed:
		return newNewsfeedTool(cfg)
	case "":
		return nil, fmt.Errorf("tool configuration must specify type")
	default:
		return nil, fmt.Errorf("unknown tool type %q", cfg.Type)
	}
}

// Build constructs every tool in order, failing on the first invalid
// configuration.
func Build(cfgs []config.ToolConfig) ([]Tool, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	built := make([]Tool, 0, len(cfgs))
	for i, cfg := range cfgs {
		tool, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		built = append(built, tool)
	}
	return built, nil
}
