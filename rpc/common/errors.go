package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPeers is returned when a request is dispatched without any configured node
	ErrNoPeers = errors.New("no peers configured")

	// ErrClosed is returned by operations on a closed client, pool or connection
	ErrClosed = errors.New("closed")
)

// --------------------------------------------------------------------------
// Encode Error
// --------------------------------------------------------------------------

// EncodeError is returned when the encoder rejects malformed batch content.
type EncodeError struct {
	Table  string
	Column string
	Msg    string
}

func (e *EncodeError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("encode error (table %q, column %q): %s", e.Table, e.Column, e.Msg)
	}
	return fmt.Sprintf("encode error (table %q): %s", e.Table, e.Msg)
}

// --------------------------------------------------------------------------
// Transport Error
// --------------------------------------------------------------------------

// TransportError describes a failure to reach a node or to exchange a request
// with it (dial failure, reset connection, timeout, undecodable response).
type TransportError struct {
	Addr NodeAddress
	Op   string // dial, send, recv, decode
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s %s): %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// --------------------------------------------------------------------------
// Server Rejected
// --------------------------------------------------------------------------

// ServerRejected is returned when a reachable node answered with an
// application level error. It is never retried on another node.
type ServerRejected struct {
	Addr NodeAddress
	Code StatusCode
	Msg  string
}

func (e *ServerRejected) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("node %s rejected request: %s", e.Addr, e.Code)
	}
	return fmt.Sprintf("node %s rejected request: %s: %s", e.Addr, e.Code, e.Msg)
}

// --------------------------------------------------------------------------
// Dispatch Failed
// --------------------------------------------------------------------------

// AttemptError records the failure of one dispatch attempt
type AttemptError struct {
	Addr NodeAddress
	Err  error
}

// DispatchFailed aggregates the failures of every attempt of one dispatch.
type DispatchFailed struct {
	Attempts []AttemptError

	// Cause is set when the dispatch was stopped by the caller's context
	Cause error
}

func (e *DispatchFailed) Error() string {
	var sb strings.Builder
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("dispatch aborted after %d attempt(s): %v", len(e.Attempts), e.Cause))
	} else {
		sb.WriteString(fmt.Sprintf("dispatch failed after %d attempt(s)", len(e.Attempts)))
	}
	for _, a := range e.Attempts {
		sb.WriteString(fmt.Sprintf("; %s: %v", a.Addr, a.Err))
	}
	return sb.String()
}

// Unwrap exposes the cause and all per-attempt errors to errors.Is / errors.As
func (e *DispatchFailed) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Addresses returns the attempted addresses in attempt order
func (e *DispatchFailed) Addresses() []NodeAddress {
	addrs := make([]NodeAddress, len(e.Attempts))
	for i, a := range e.Attempts {
		addrs[i] = a.Addr
	}
	return addrs
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// IsRetriable reports whether repeating the same request later may succeed.
// Transport failures and exhausted dispatches are retriable, schema, encode and
// server rejections are not.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var rejected *ServerRejected
	if errors.As(err, &rejected) {
		return rejected.Code == StatusInternal
	}
	var encodeErr *EncodeError
	if errors.As(err, &encodeErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) || errors.Is(err, ErrNoPeers) {
		return false
	}
	var dispatchErr *DispatchFailed
	if errors.As(err, &dispatchErr) {
		return true
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr) || errors.Is(err, context.DeadlineExceeded)
}
