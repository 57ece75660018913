// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error kinds surfaced by the ledger, detector and projector.
// Store backends wrap their driver errors in one of the first two.
var (
	// ErrStoreUnavailable means a read or write could not complete.
	// Every mutation in this module is idempotent, so it is always safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound means the referenced user does not exist. Not retried.
	ErrNotFound = errors.New("user not found")

	// ErrPartialMatch means one side of a two-sided match write landed and
	// the other did not. The next projection read repairs it.
	ErrPartialMatch = errors.New("partial match failure")

	// ErrSelfAction rejects like/pass where viewer and target are the same user.
	ErrSelfAction = errors.New("cannot decide on yourself")
)

// Map converts ledger/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	// partial match wraps the store error as well, check it first
	case errors.Is(err, ErrPartialMatch):
		return status.Error(codes.Aborted, "match was only partially recorded, retry the like")

	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, "user not found")

	case errors.Is(err, ErrSelfAction):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	case errors.Is(err, ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "store unavailable, try again")

	default:
		// fallback → bubble up error message for debugging
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// Retryable reports whether the caller may safely repeat the operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrPartialMatch)
}
