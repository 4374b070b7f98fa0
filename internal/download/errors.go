package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/vmunix/stowaway/internal/events"
)

// Sentinel errors for the download package.
var (
	// ErrDuplicate is returned by Enqueue when an equivalent item is already
	// persisted, downloading, or queued.
	ErrDuplicate = errors.New("duplicate download")

	// ErrInvalidRequest is returned by Enqueue for a request without a source URL.
	ErrInvalidRequest = errors.New("invalid download request")

	// ErrTransferCreation is reported when the transfer primitive yields no task.
	ErrTransferCreation = errors.New("transfer task creation failed")

	// ErrInvalidState is returned when an operation does not apply to the
	// entry's current state.
	ErrInvalidState = errors.New("invalid download state")

	// ErrNotFound is returned when no live entry has the given ID.
	ErrNotFound = errors.New("download not found")

	// ErrClosed is returned once the manager has stopped.
	ErrClosed = errors.New("download manager closed")

	// ErrCancelled is the failure reported by a transfer that was cancelled.
	ErrCancelled = errors.New("transfer cancelled")
)

// ErrorKind classifies a terminal transfer failure.
type ErrorKind string

const (
	KindConnectivity ErrorKind = events.FailureConnectivity
	KindDNS          ErrorKind = events.FailureDNS
	KindForbidden    ErrorKind = events.FailureForbidden
	KindCancelled    ErrorKind = "cancelled"
	KindOther        ErrorKind = events.FailureOther
)

// StatusError is a non-success HTTP response from a transfer.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// TransferError is a classified terminal transfer failure.
type TransferError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return e.Cause()
	}
	return e.Cause() + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

// Cause is the human-readable reason shown to users.
func (e *TransferError) Cause() string {
	switch e.Kind {
	case KindConnectivity:
		return "connectivity lost"
	case KindDNS:
		return "host could not be resolved"
	case KindForbidden:
		return "403 - check required headers"
	case KindCancelled:
		return "cancelled"
	default:
		return "transfer failed"
	}
}

// Classify maps a transfer failure onto an ErrorKind.
func Classify(err error) *TransferError {
	var te *TransferError
	if errors.As(err, &te) {
		return te
	}

	kind := KindOther
	var (
		dnsErr    *net.DNSError
		statusErr *StatusError
		netErr    net.Error
	)
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.As(err, &dnsErr):
		kind = KindDNS
	case errors.As(err, &statusErr):
		if statusErr.Code == http.StatusForbidden || statusErr.Code == http.StatusUnauthorized {
			kind = KindForbidden
		}
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &netErr):
		kind = KindConnectivity
	}
	return &TransferError{Kind: kind, Err: err}
}
