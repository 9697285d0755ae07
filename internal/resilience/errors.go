// Package resilience provides retry with exponential backoff for
// outbound vendor and webhook calls.
package resilience

import (
	"errors"
	"net"
	"syscall"

	"github.com/parleylabs/parley/internal/provider"
)

// IsTransient reports whether a failed outbound call is worth retrying.
// Vendor errors are judged by their HTTP status; transport failures and
// network-level timeouts are always transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if pe, ok := provider.AsProviderError(err); ok {
		return IsTransientHTTPStatus(pe.StatusCode)
	}
	if provider.IsTransport(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// IsTransientHTTPStatus reports whether the status code indicates a
// server-side condition that is safe to retry. Auth and validation
// failures are not: retrying a 401 burns budget for the same answer.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
