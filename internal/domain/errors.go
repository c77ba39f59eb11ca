package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound        = errors.New("not found")
	ErrLeadNotFound    = errors.New("lead not found")
	ErrNoAvailableUser = errors.New("no available user found")
	ErrInvalidStatus   = errors.New("invalid status: must be pending, processing, assigned, or failed")
	ErrNotRetryable    = errors.New("only failed queue items can be retried")
	ErrUnknownCriteria = errors.New("assignment rule criteria references an unknown lead field")
	ErrUnknownStrategy = errors.New("unknown assignment type")
)
