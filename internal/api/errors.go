package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// TransportError reports a network failure or timeout talking to an
// external provider. The core never retries these.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ProviderError reports a failure answered by the provider itself, such as
// an invalid key or a rate limit. Message carries the provider's detail.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimited reports whether the provider rejected the call for rate limiting.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Unauthorized reports whether the provider rejected the credentials.
func (e *ProviderError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ClassifyError converts an error returned by a provider call into a
// *ProviderError or *TransportError. Errors that are already classified are
// returned unchanged; nil stays nil.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   provider,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Err:        err,
		}
	}

	return &TransportError{Provider: provider, Err: err}
}

// NewHTTPStatusError builds a *ProviderError from a non-2xx HTTP response
// body returned by a provider that has no SDK.
func NewHTTPStatusError(provider string, statusCode int, body []byte) *ProviderError {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    truncate(msg, 500),
	}
}

// IsFatal reports whether err should abort an agent run instead of being
// handed back to the model as a failed tool call.
func IsFatal(err error) bool {
	var pe *ProviderError
	var te *TransportError
	return errors.As(err, &pe) || errors.As(err, &te)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
