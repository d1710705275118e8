// Package guard screens user-supplied text for prompt-injection content
// before it reaches an LLM provider.
//
// The scanner is a weighted pattern heuristic: each known injection
// pattern carries a risk weight, and the scan score is the highest weight
// among matched patterns. Construction has no side effects (no model
// warmup), so tests can build a Gate directly.
package guard

import (
	"regexp"
	"strings"
)

// weightedPattern pairs an injection pattern with its risk weight.
type weightedPattern struct {
	re     *regexp.Regexp
	weight float64
}

// Core override/injection phrasing. These are strong signals.
var basePatterns = []weightedPattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?|directions?)`), 0.98},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`), 0.98},
	{regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?|context)`), 0.97},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:`), 0.95},
	{regexp.MustCompile(`(?i)system\s*:\s*you\s+are`), 0.95},
	{regexp.MustCompile(`(?i)\bdo\s+anything\s+now\b`), 0.95},
	{regexp.MustCompile(`(?i)\bjailbreak\b`), 0.94},
	{regexp.MustCompile(`(?i)pretend\s+you\s+(are|have)\s+no\s+(restrictions?|rules?|guidelines?)`), 0.96},
	{regexp.MustCompile(`(?i)act\s+as\s+if\s+you\s+have\s+no\s+(restrictions?|rules?|filters?)`), 0.96},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), 0.93},
}

// Softer probing phrasing. Weighted below the default threshold so they
// only reject under a stricter configuration.
var probePatterns = []weightedPattern{
	{regexp.MustCompile(`(?i)override\s+(your|the|all)\s+`), 0.88},
	{regexp.MustCompile(`(?i)bypass\s+(your|the|all)\s+`), 0.88},
	{regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?(prompt|instructions?)`), 0.90},
	{regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions?|rules?)`), 0.85},
	{regexp.MustCompile(`(?i)repeat\s+(your|the)\s+(system\s+)?(prompt|instructions?)\s+verbatim`), 0.90},
}

// Gate is a configured injection scanner. The zero value is unusable;
// construct with New.
type Gate struct {
	threshold float64
}

// New builds a Gate with the given rejection threshold, clamped to [0,1].
func New(threshold float64) *Gate {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	return &Gate{threshold: threshold}
}

// Threshold returns the configured rejection threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Scan classifies text and reports whether it is safe to forward.
// Empty or whitespace-only input is trivially safe with score 0. A score
// greater than or equal to the threshold is unsafe (the threshold itself
// rejects).
func (g *Gate) Scan(text string) (safe bool, score float64) {
	if strings.TrimSpace(text) == "" {
		return true, 0
	}
	score = Score(text)
	return score < g.threshold, score
}

// Score returns the injection risk score for text: the maximum weight of
// any matched pattern, or 0 when nothing matches.
func Score(text string) float64 {
	var max float64
	for _, p := range basePatterns {
		if p.weight > max && p.re.MatchString(text) {
			max = p.weight
		}
	}
	for _, p := range probePatterns {
		if p.weight > max && p.re.MatchString(text) {
			max = p.weight
		}
	}
	return max
}
