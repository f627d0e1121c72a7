package provider

import (
	"errors"
	"fmt"
)

// ErrNoResults indicates the provider responded successfully but found
// nothing. Distinct from a failure: it does not trigger fallback.
var ErrNoResults = errors.New("no results")

// ErrorClass classifies upstream failures for metrics and orchestration.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx upstream responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx upstream responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassPayload represents malformed upstream payloads.
	ErrorClassPayload ErrorClass = "payload"
)

// UpstreamError is a provider-level failure with classification context.
// Orchestration converts these into fallback decisions; they never
// propagate raw to the caller.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Class      ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassServer
	}
}
