// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"time"
)

// retryable reports whether err may be resolved by resending after a
// delay, under the caller's options. Auth failures are handled
// separately by the one-shot refresh path and are never retryable
// here; everything structural or server-explicit is fatal.
func retryable(err error, opts CallOptions) bool {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return opts.RetryNetwork
	}
	return false
}

// backoffDelay returns the delay before retry number attempt
// (1-based): base, 2*base, 4*base, bounded above. Deterministic so
// tests can advance a fake clock through the exact schedule.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	d := base << (attempt - 1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
