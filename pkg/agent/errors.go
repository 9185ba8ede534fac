package agent

import (
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
)

// FailureReason is a coarse classification of provider errors, used for
// logging and metrics fields.
type FailureReason string

const (
	FailureAuth      FailureReason = "auth"
	FailureRateLimit FailureReason = "rate_limit"
	FailureTimeout   FailureReason = "timeout"
	FailureServer    FailureReason = "server"
	FailureUnknown   FailureReason = "unknown"
)

// ClassifyFailure maps a provider error to a FailureReason.
func ClassifyFailure(err error) FailureReason {
	switch {
	case err == nil:
		return FailureUnknown
	case IsAuthError(err):
		return FailureAuth
	case IsRateLimitError(err):
		return FailureRateLimit
	case IsTimeoutError(err):
		return FailureTimeout
	case IsServerError(err):
		return FailureServer
	default:
		return FailureUnknown
	}
}

// IsRateLimitError checks if the error is a rate limit (429) error.
func IsRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if strings.EqualFold(apiErr.Code, "rate_limit_exceeded") {
			return true
		}
		if apiErr.StatusCode == 429 {
			return true
		}
	}
	return containsAnyPattern(err, []string{
		"resource_exhausted",
		"quota exceeded",
		"usage limit",
	})
}

// IsAuthError checks if the error is an authentication or permission error.
func IsAuthError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 401 || apiErr.StatusCode == 403 {
			return true
		}
	}
	return containsAnyPattern(err, []string{
		"invalid api key",
		"invalid_api_key",
		"incorrect api key",
		"unauthorized",
		"forbidden",
		"access denied",
	})
}

// IsServerError checks if the error is a server-side (5xx) error.
func IsServerError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if strings.EqualFold(apiErr.Code, "server_error") {
			return true
		}
		return apiErr.StatusCode >= 500
	}
	return false
}

// IsTimeoutError checks if the error looks like a timeout.
func IsTimeoutError(err error) bool {
	return containsAnyPattern(err, []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"econnreset",
		"408",
		"504",
	})
}

// containsAnyPattern checks if the lowercased error message contains any of
// the given patterns.
func containsAnyPattern(err error, patterns []string) bool {
	msg := strings.ToLower(safeErrorString(err))
	if msg == "" {
		return false
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// safeErrorString guards against Error() implementations that dereference
// absent request or response data.
func safeErrorString(err error) (text string) {
	if err == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	return err.Error()
}
