package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound is returned when a row doesn't exist or the lookup inputs are blank.
	ErrNotFound = errors.New("dynadao: object not found")

	// ErrRetryExhausted is returned when unprocessed batch items remain after all resubmissions.
	ErrRetryExhausted = errors.New("dynadao: batch retry budget exhausted")

	// ErrStoreUnavailable wraps throttling and server-side failures of the remote store.
	ErrStoreUnavailable = errors.New("dynadao: store unavailable")

	// ErrInvalidRequest wraps requests the store rejected (validation, missing table).
	ErrInvalidRequest = errors.New("dynadao: invalid request")
)

// BatchError reports the items of a batch operation that were left unprocessed.
type BatchError struct {
	// Op is the batch operation ("create", "delete", "read").
	Op string

	// Tenant is the tenant the batch was issued for.
	Tenant string

	// Unprocessed holds the object ids the store did not complete.
	Unprocessed []string

	// Err is the underlying cause.
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("dynadao: batch %s for %q: %d unprocessed: %v", e.Op, e.Tenant, len(e.Unprocessed), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// classify wraps a remote error with the matching error kind and operation context.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "ProvisionedThroughputExceededException",
			code == "RequestLimitExceeded",
			code == "InternalServerError",
			code == "ServiceUnavailable",
			strings.Contains(code, "Throttl"):
			return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
		case code == "ValidationException",
			code == "ResourceNotFoundException":
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidRequest, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
