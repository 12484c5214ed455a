// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import "time"

// CallOptions tunes one Call. The zero value means: no retries beyond
// the single credential-refresh retry, default backoff base, network
// failures fatal, default per-call timeout.
type CallOptions struct {
	// MaxRetries bounds additional send attempts after the first for
	// retryable failures (rate limiting, and network failures when
	// RetryNetwork is set). Zero means fail on the first retryable
	// error. The credential-refresh retry for an AuthError is separate
	// and always available exactly once.
	MaxRetries int

	// RetryBase is the first backoff delay; each subsequent retry
	// doubles it. Zero selects the default of one second.
	RetryBase time.Duration

	// RetryNetwork opts network-level failures into the retry budget.
	// Off by default: the POST may have been applied server-side, so
	// non-idempotent callers must decide for themselves.
	RetryNetwork bool

	// Timeout bounds one physical send, not the whole Call. Zero
	// selects the default of thirty seconds.
	Timeout time.Duration

	// SourcePath overrides the transport's default source-path query
	// parameter for this call. The backend expects the frontend route
	// the call would originate from, e.g. "/notebook/<id>".
	SourcePath string
}

const (
	defaultRetryBase   = time.Second
	defaultCallTimeout = 30 * time.Second
	maxBackoff         = 30 * time.Second
)

func (o CallOptions) retryBase() time.Duration {
	if o.RetryBase > 0 {
		return o.RetryBase
	}
	return defaultRetryBase
}

func (o CallOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultCallTimeout
}
