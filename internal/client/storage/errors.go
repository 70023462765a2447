package storage

import "errors"

// Common client storage errors
var (
	// ErrSessionNotFound indicates that no saved session exists
	ErrSessionNotFound = errors.New("session not found")

	// ErrScanNotFound indicates that scan is not in local history
	ErrScanNotFound = errors.New("scan not found")
)
