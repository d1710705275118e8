package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FailureReason buckets provider errors for diagnostics. Every bucket
// results in the same outcome at the orchestrator boundary (no generated
// text); the taxonomy only shapes what gets logged.
type FailureReason string

const (
	// FailureAuth indicates authentication failure (HTTP 401, 403).
	FailureAuth FailureReason = "auth"

	// FailureQuota indicates payment or quota exhaustion (HTTP 402).
	FailureQuota FailureReason = "quota"

	// FailureRateLimit indicates rate limiting (HTTP 429).
	FailureRateLimit FailureReason = "rate_limit"

	// FailureUnavailable indicates transient server-side issues (HTTP 5xx).
	FailureUnavailable FailureReason = "unavailable"

	// FailureConnectivity indicates a network-level failure before any
	// HTTP response was received.
	FailureConnectivity FailureReason = "connectivity"

	// FailureTimeout indicates the request exceeded its deadline.
	FailureTimeout FailureReason = "timeout"

	// FailureUnknown indicates an unclassified error, including
	// malformed or empty responses.
	FailureUnknown FailureReason = "unknown"
)

// ProviderError is a structured error from an LLM adapter. It records
// enough context to diagnose the failure without the caller needing any
// vendor-specific knowledge.
type ProviderError struct {
	Reason   FailureReason
	Provider string
	Model    string
	Status   int
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// WrapError builds a ProviderError around a raw adapter failure,
// classifying it into a FailureReason.
func WrapError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{
		Provider: provider,
		Model:    model,
		Cause:    cause,
		Reason:   Classify(cause),
	}
	if cause != nil {
		err.Message = cause.Error()
	}
	return err
}

// WithStatus records the HTTP status and reclassifies from it.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	if reason := classifyStatus(status); reason != FailureUnknown {
		e.Reason = reason
	}
	return e
}

// Classify maps a raw error to a FailureReason using error types first
// and message inspection as a fallback.
func Classify(err error) FailureReason {
	if err == nil {
		return FailureUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureConnectivity
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureConnectivity
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return FailureTimeout
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return FailureRateLimit
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "invalid_api_key") ||
		strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return FailureAuth
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing") ||
		strings.Contains(msg, "insufficient") || strings.Contains(msg, "402"):
		return FailureQuota
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset"):
		return FailureConnectivity
	case strings.Contains(msg, "server error") || strings.Contains(msg, "internal server") ||
		strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "529"):
		return FailureUnavailable
	}
	return FailureUnknown
}

func classifyStatus(status int) FailureReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusPaymentRequired:
		return FailureQuota
	case status == http.StatusTooManyRequests:
		return FailureRateLimit
	case status >= 500:
		return FailureUnavailable
	default:
		return FailureUnknown
	}
}

// ReasonOf extracts the failure bucket from an error chain for logging.
func ReasonOf(err error) FailureReason {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return Classify(err)
}
