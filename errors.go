package chatstore

import "errors"

// Common errors for session and analytics operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrNotFound         = errors.New("session not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRetrievalFailure = errors.New("analytics retrieval failed")
	ErrExportFailure    = errors.New("analytics export failed")
	ErrStoreClosed      = errors.New("store is closed")
)
