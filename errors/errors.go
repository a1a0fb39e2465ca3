package errors

import "fmt"

// Domain taxonomy. Callers wrap them with fmt.Errorf("%w: ...") and classify with errors.Is.
var (
	ErrUnauthenticated  = fmt.Errorf("unauthenticated")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrNotFound         = fmt.Errorf("not found")
	ErrConflict         = fmt.Errorf("conflict")
	ErrInvalidState     = fmt.Errorf("invalid state")
	ErrInvalidOperation = fmt.Errorf("invalid operation")
	ErrInvalidPayload   = fmt.Errorf("invalid payload")
)

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles   = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords          = fmt.Errorf("no words have been found")
	ErrProviderUnavailable = fmt.Errorf("recommendation provider unavailable")
	ErrSessionClosed       = fmt.Errorf("session closed")
	ErrCommandRejected     = fmt.Errorf("command channel full")
	ErrSinkFull            = fmt.Errorf("connection queue full")
	ErrUnknownStoreDriver  = fmt.Errorf("unknown store driver")
)
