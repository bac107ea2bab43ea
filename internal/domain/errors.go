package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is returned when a product id is not in the catalog
	ErrItemNotFound = errors.New("item not found in catalog")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrDriverTimeout is returned when a machine-speed driver wait exceeds its budget
	ErrDriverTimeout = errors.New("driver timed out")

	// ErrDriverNotReady is returned when the driver never signals ready at startup
	ErrDriverNotReady = errors.New("driver not ready")

	// ErrSessionQuit signals that the operator ended the session. It is not a failure.
	ErrSessionQuit = errors.New("session quit by operator")

	// ErrInvalidProductURL is returned when a captured URL is not a product page
	ErrInvalidProductURL = errors.New("invalid product URL")

	// ErrMissingDescription is returned when a new catalog item has no description
	ErrMissingDescription = errors.New("description required for new item")

	// ErrCatalogMutation is returned when the store rejects a create, update or purchase
	ErrCatalogMutation = errors.New("catalog mutation failed")
)

// DriverError is an explicit failure reported by the driver
type DriverError struct {
	Message string
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error: %s", e.Message)
}

// IsDriverFailure reports whether err is an item-scoped driver problem
// (timeout or explicit driver error)
func IsDriverFailure(err error) bool {
	var de *DriverError
	return errors.Is(err, ErrDriverTimeout) || errors.As(err, &de)
}
