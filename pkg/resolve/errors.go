package resolve

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize.
	// Oversized batches are rejected, never silently truncated.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrUnknownProvider is returned for a forced-provider name that no
	// registered client matches.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError records one provider's failure during fallback, in the
// shape the error envelope carries for observability.
type ProviderError struct {
	Provider string `json:"provider"`
	Message  string `json:"error"`
}

// ProviderUnavailableError is returned in forced mode when the chosen
// provider fails. No fallback is attempted: the caller explicitly opted
// out of automatic substitution.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// AllFailedError is returned in fallback mode after every provider in
// the chain has been tried, carrying the ordered per-provider errors.
type AllFailedError struct {
	Errors []ProviderError
}

// Error implements the error interface.
func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all %d providers failed", len(e.Errors))
}
