package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindTransientNetwork    ErrorKind = "TRANSIENT_NETWORK"
	KindTerminalRejected    ErrorKind = "TERMINAL_REJECTED"
	KindTimeout             ErrorKind = "TIMEOUT"
	KindMalformedResult     ErrorKind = "MALFORMED_RESULT"
	KindPersistenceDegraded ErrorKind = "PERSISTENCE_DEGRADED"
	KindUnknown             ErrorKind = "UNKNOWN"
)

var (
	ErrTransientNetwork    = errors.New("transient network failure")
	ErrTerminalRejected    = errors.New("rejected by backend")
	ErrTimeout             = errors.New("timed out without a terminal answer")
	ErrMalformedResult     = errors.New("malformed backend result")
	ErrPersistenceDegraded = errors.New("session persistence unavailable")
)

var (
	ErrNoSession             = errors.New("no session stored")
	ErrSessionActive         = errors.New("a play is already in progress")
	ErrUnacknowledgedFailure = errors.New("previous play failed and has not been acknowledged")
	ErrInvalidTransition     = errors.New("invalid session status transition")
	ErrInvoiceImmutable      = errors.New("invoice id already set")
	ErrWalletRequired        = errors.New("wallet address is required to mint")
	ErrUnknownPrize          = errors.New("unknown prize")
	ErrSessionExpired        = errors.New("session exceeded its maximum lifetime")
)

// Kind classifies err against the error taxonomy. Wrapped errors are
// inspected with errors.Is.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedResult):
		return KindMalformedResult
	case errors.Is(err, ErrTerminalRejected):
		return KindTerminalRejected
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrPersistenceDegraded):
		return KindPersistenceDegraded
	case errors.Is(err, ErrTransientNetwork):
		return KindTransientNetwork
	default:
		return KindUnknown
	}
}

// IsTransient reports whether err may succeed when the same call is repeated.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return Kind(err) == KindTransientNetwork
}

// SupportError is returned for failures that happen after a payment was
// confirmed. Its message always carries the identifiers support needs to
// resolve the play by hand.
type SupportError struct {
	SessionID SessionID
	InvoiceID string
	Err       error
}

func (e *SupportError) Error() string {
	return fmt.Sprintf("%v (session %s, invoice %s)", e.Err, e.SessionID, e.InvoiceID)
}

func (e *SupportError) Unwrap() error {
	return e.Err
}
