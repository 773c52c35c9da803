// Package api defines the shared contracts of the hioload-tcp engine: the
// error taxonomy, the request handler signature, completion sinks, pooled
// I/O state objects, and the shutdown signal shared by the stream reader
// and stream writer.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCode classifies an engine failure: InvalidConfig, BufferTooLarge,
// MalformedHeader, PeerClosed, Transport, Cancelled, Shutdown.
type ErrorCode int

const (
	// ErrCodeInvalidConfig marks a construction-time argument out of range.
	ErrCodeInvalidConfig ErrorCode = iota
	// ErrCodeBufferTooLarge marks a caller buffer exceeding max_message_size.
	ErrCodeBufferTooLarge
	// ErrCodeMalformedHeader marks a decoded frame header that is invalid.
	ErrCodeMalformedHeader
	// ErrCodePeerClosed marks a read/write that returned zero bytes.
	ErrCodePeerClosed
	// ErrCodeTransport marks any other OS socket error.
	ErrCodeTransport
	// ErrCodeCancelled marks a cooperative cancellation.
	ErrCodeCancelled
	// ErrCodeShutdown marks an operation rejected because the endpoint is
	// stopping.
	ErrCodeShutdown
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeInvalidConfig:
		return "invalid_config"
	case ErrCodeBufferTooLarge:
		return "buffer_too_large"
	case ErrCodeMalformedHeader:
		return "malformed_header"
	case ErrCodePeerClosed:
		return "peer_closed"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeCancelled:
		return "cancelled"
	case ErrCodeShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error is a structured transport error carrying a taxonomy code alongside
// the underlying cause, so callers can both errors.Is against a sentinel
// and errors.As into *Error for the code and wrapped cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewError builds an *Error with no wrapped cause.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError builds an *Error wrapping cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code, so
// errors.Is(err, ErrShutdown) style checks work against sentinels below
// regardless of message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is comparisons against a bare code.
var (
	ErrInvalidConfig   = &Error{Code: ErrCodeInvalidConfig, Message: "invalid config"}
	ErrBufferTooLarge  = &Error{Code: ErrCodeBufferTooLarge, Message: "buffer too large"}
	ErrMalformedHeader = &Error{Code: ErrCodeMalformedHeader, Message: "malformed header"}
	ErrPeerClosed      = &Error{Code: ErrCodePeerClosed, Message: "peer closed"}
	ErrCancelled       = &Error{Code: ErrCodeCancelled, Message: "cancelled"}
	ErrShutdown        = &Error{Code: ErrCodeShutdown, Message: "endpoint is shutting down"}
)

// MapOSError classifies an error returned by a socket read/write/accept/
// connect call into the taxonomy above. A nil input returns nil.
//
// io.EOF, ECONNRESET and EPIPE collapse to PeerClosed; net.ErrClosed
// collapses to Shutdown; an ECANCELED or ECONNABORTED errno (an aborted
// operation) collapses to Cancelled; everything else, context errors
// included, is wrapped as Transport, preserving the original errno for inspection via
// errors.As(err, &syscall.Errno{}). Transport errors additionally capture
// the stack at the point the OS error was observed, since they can surface
// many continuations away from the call that produced them.
func MapOSError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return WrapError(ErrCodePeerClosed, "peer closed connection", err)
	}
	if errors.Is(err, net.ErrClosed) {
		return WrapError(ErrCodeShutdown, "socket already closed", err)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.EPIPE:
			return WrapError(ErrCodePeerClosed, "peer reset connection", err)
		case syscall.ECONNABORTED, syscall.ECANCELED:
			return WrapError(ErrCodeCancelled, "operation aborted", err)
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return WrapError(ErrCodeTransport, "operation timed out", pkgerrors.WithStack(err))
	}
	return WrapError(ErrCodeTransport, "transport error", pkgerrors.WithStack(err))
}
