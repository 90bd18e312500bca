package backend

import "errors"

// Backend errors
var (
	// ErrBackendNotFound indicates no backend with the given id is registered
	ErrBackendNotFound = errors.New("backend not found")

	// ErrBackendDisabled indicates the backend is registered but disabled
	ErrBackendDisabled = errors.New("backend is disabled")

	// ErrCircuitOpen indicates the backend failed too often and is not queried
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrUnknownSourceType indicates a catalog entry names an unsupported source type
	ErrUnknownSourceType = errors.New("unknown source type")
)

// IsBackendNotFound checks if the error is a missing backend error
func IsBackendNotFound(err error) bool {
	return errors.Is(err, ErrBackendNotFound)
}

// IsCircuitOpen checks if the error is an open circuit error
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
