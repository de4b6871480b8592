package syncerr

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class is the retry classification of a failed remote operation.
type Class int

const (
	// Transient failures are retried with backoff.
	Transient Class = iota
	// Permanent failures are escalated immediately and never retried.
	Permanent
	// Storage failures come from the local store, not the network.
	Storage
)

func (c Class) String() string {
	switch c {
	case Permanent:
		return "permanent"
	case Storage:
		return "storage"
	default:
		return "transient"
	}
}

// Classify maps an error to its retry class.
//
// Permanent covers validation failures, expired or invalid auth,
// authorization denial, not-found and version-conflict signals. Anything
// unrecognized classifies Transient: failing open to a retry is always
// preferable to silently dropping captured work.
func Classify(err error) Class {
	if err == nil {
		return Transient
	}

	switch {
	case errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrSchemaMismatch),
		errors.Is(err, ErrStoreCorrupted):
		return Storage
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrSealed):
		return Permanent
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrRateLimited):
		return Transient
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied,
			codes.NotFound, codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
			return Permanent
		}
	}

	return Transient
}
