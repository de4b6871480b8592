// Package syncerr contains the shared error catalog and the failure
// classification used by the sync engines.
package syncerr

import "errors"

var (

	// repository specific errors
	ErrNotFound = errors.New("not found")

	// remote store errors
	ErrUnavailable     = errors.New("server unavailable")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTokenExpired    = errors.New("token expired")
	ErrVersionConflict = errors.New("version conflict")
	ErrValidation      = errors.New("validation error")

	// local store errors
	ErrQuotaExceeded  = errors.New("storage quota exceeded")
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrStoreCorrupted = errors.New("local store corrupted")

	// evidence errors
	ErrSealed      = errors.New("record is sealed")
	ErrBlobMissing = errors.New("media blob missing")
)
