package provider

import (
	"errors"
	"fmt"
)

// ProviderError indicates the vendor returned a non-success HTTP status.
// It is not retried automatically.
type ProviderError struct {
	Provider      string
	StatusCode    int
	VendorMessage string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.VendorMessage)
}

// TransportError indicates a network-level failure reaching the vendor
// (timeout, DNS, connection reset). The orchestrator treats it exactly
// like a ProviderError.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// IsTransport reports whether the error chain contains a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
