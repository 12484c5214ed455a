// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"fmt"
)

// EncodeError reports a structurally invalid parameter tree. It is
// never retried: the same tree will fail the same way.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return "rpc: encode: " + e.Reason
}

// DecodeError reports a response that is not valid protocol output,
// most commonly an HTML error page where the anti-XSSI guard should
// be. Fatal for the call.
type DecodeError struct {
	Reason string
	// Snippet is the leading part of the offending response, for
	// diagnostics. May be empty.
	Snippet string
}

func (e *DecodeError) Error() string {
	if e.Snippet == "" {
		return "rpc: decode: " + e.Reason
	}
	return fmt.Sprintf("rpc: decode: %s (response starts %q)", e.Reason, e.Snippet)
}

// ServerError is an explicit application failure from the backend,
// either an HTTP error status or an error code embedded in the result
// frame. Fatal for the call.
type ServerError struct {
	Method string
	// Code is the application error code when the frame carried one,
	// otherwise the HTTP status as text.
	Code string
	// StatusCode is the HTTP status of the response, 200 for
	// in-frame errors.
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("rpc: %s failed: server error %s (http %d)", e.Method, e.Code, e.StatusCode)
}

// RateLimitError is the backend's throttling signal (HTTP 429).
// Retryable with backoff when the caller opts in via
// [CallOptions.MaxRetries].
type RateLimitError struct {
	Method string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rpc: %s rate limited", e.Method)
}

// AuthError means the current credentials were not accepted: an HTTP
// 401/403, an expired anti-forgery token rejection, or a redirect to
// the login interstitial. Transport reacts with exactly one refresh
// followed by one retry; a second AuthError on the retried send
// surfaces to the caller.
type AuthError struct {
	Method string
	// StatusCode is the HTTP status, 0 when the failure was detected
	// from the response body rather than the status line.
	StatusCode int
	Reason     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("rpc: %s auth rejected: %s", e.Method, e.Reason)
}

// TransportError wraps a network-level failure: connect errors, read
// errors, or the per-call timeout. Retried only when the caller sets
// [CallOptions.RetryNetwork].
type TransportError struct {
	Method string
	// Timeout is set when the per-call deadline expired. Timeouts are
	// reported distinctly from other network failures; test with
	// [IsTimeout].
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("rpc: %s timed out: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("rpc: %s transport failure: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnknownMethodError means the response was well-formed protocol
// output but contained no result frame for the requested method id,
// the signature of protocol drift (the backend renamed or removed the
// method). Fatal for the call; the drift diagnostic is logged once per
// observed id.
type UnknownMethodError struct {
	Method string
	// Observed lists the method ids that were present in the
	// response instead.
	Observed []string
}

func (e *UnknownMethodError) Error() string {
	if len(e.Observed) == 0 {
		return fmt.Sprintf("rpc: no result for method %s in response", e.Method)
	}
	return fmt.Sprintf("rpc: no result for method %s in response (observed %v)", e.Method, e.Observed)
}

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) && transportErr.Timeout
}
