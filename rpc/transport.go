// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nlmkit/nlm/lib/clock"
)

// Credentials is the transport's view of one credential set: the
// Cookie header value proving the Google session, the anti-forgery
// token sent as the "at" form field, and the session id sent as the
// "f.sid" query parameter.
type Credentials struct {
	CookieHeader string
	AuthToken    string
	SessionID    string
}

// CredentialSource supplies credentials and replaces them when the
// backend rejects them. Implementations must be safe for concurrent
// use; Transport calls Refresh from whichever Call first observes the
// rejection, and concurrent callers may race into it.
type CredentialSource interface {
	// Credentials returns the current credential set.
	Credentials(ctx context.Context) (Credentials, error)

	// Refresh replaces a rejected credential set. stale is the set the
	// caller was using, so an implementation that coalesces concurrent
	// refreshes can tell an already-replaced set from a current one.
	Refresh(ctx context.Context, stale Credentials) (Credentials, error)
}

// Static wraps a fixed credential set as a CredentialSource with no
// refresh capability. Intended for tests and one-shot tooling.
func Static(creds Credentials) CredentialSource { return staticSource{creds} }

type staticSource struct{ creds Credentials }

func (s staticSource) Credentials(context.Context) (Credentials, error) {
	return s.creds, nil
}

func (s staticSource) Refresh(_ context.Context, _ Credentials) (Credentials, error) {
	return Credentials{}, errors.New("rpc: static credentials cannot be refreshed")
}

// Config assembles a Transport. BaseURL and Credentials are required;
// everything else has a usable default.
type Config struct {
	// BaseURL is the scheme and host of the backend, without the
	// batchexecute path.
	BaseURL string

	// SourcePath is sent as the source-path query parameter, the
	// frontend route the request claims to originate from.
	SourcePath string

	// BuildLabel is the frontend build the client mimics, sent as the
	// bl query parameter. Optional.
	BuildLabel string

	// Credentials supplies and refreshes the session credentials.
	Credentials CredentialSource

	// HTTPClient defaults to a client with no client-side timeout;
	// per-call deadlines come from CallOptions.
	HTTPClient *http.Client

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Clock defaults to the real clock. Tests inject a fake to step
	// through backoff schedules.
	Clock clock.Clock

	// Limiter optionally paces sends client-side, ahead of the
	// backend's own throttling. Nil disables pacing.
	Limiter *rate.Limiter

	// Metrics defaults to a set backed by a private registry.
	Metrics *Metrics

	// InitialSeq seeds the request counter. Zero selects the default
	// seed; the first send uses InitialSeq+1.
	InitialSeq uint64
}

// defaultInitialSeq starts the counter in the range browser sessions
// use, so client traffic looks unremarkable. Unlike the frontend the
// seed is fixed: tests need a predictable, contiguous sequence.
const defaultInitialSeq = 100000

// maxResponseBytes bounds one response body read. Result payloads are
// notebook metadata, far below this; anything larger is not protocol
// output.
const maxResponseBytes = 32 << 20

// Transport executes RPCs against a batch-style backend: it encodes
// the request envelope, assigns sequence numbers, sends, classifies
// the outcome, and drives the refresh and retry loops.
type Transport struct {
	baseURL    *url.URL
	sourcePath string
	buildLabel string
	client     *http.Client
	logger     *slog.Logger
	clk        clock.Clock
	creds      CredentialSource
	limiter    *rate.Limiter
	metrics    *Metrics
	dec        *decoder

	seq atomic.Uint64
}

// New validates cfg and returns a ready Transport.
func New(cfg Config) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rpc: Config.BaseURL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("rpc: parsing Config.BaseURL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("rpc: Config.BaseURL %q needs a scheme and host", cfg.BaseURL)
	}
	if cfg.Credentials == nil {
		return nil, errors.New("rpc: Config.Credentials is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	initial := cfg.InitialSeq
	if initial == 0 {
		initial = defaultInitialSeq
	}

	t := &Transport{
		baseURL:    base,
		sourcePath: cfg.SourcePath,
		buildLabel: cfg.BuildLabel,
		client:     client,
		logger:     logger,
		clk:        clk,
		creds:      cfg.Credentials,
		limiter:    cfg.Limiter,
		metrics:    metrics,
		dec:        newDecoder(logger, metrics),
	}
	t.seq.Store(initial)
	return t, nil
}

// Call executes one RPC and returns its decoded result tree, or nil
// for a legitimately empty result. Errors are the typed values in
// this package; test them with errors.As.
//
// The refresh path runs at most once per Call: the first auth
// rejection triggers CredentialSource.Refresh and one resend, a
// second rejection surfaces. Retryable failures (rate limiting, and
// network failures under CallOptions.RetryNetwork) resend up to
// CallOptions.MaxRetries times with doubling backoff. Every resend is
// a fresh physical send with a fresh sequence number.
func (t *Transport) Call(ctx context.Context, method Method, params []Param, opts CallOptions) (any, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			t.metrics.calls.WithLabelValues(method.Name, outcomeCanceled).Inc()
			return nil, &TransportError{Method: method.Name, Err: err}
		}
	}

	creds, err := t.creds.Credentials(ctx)
	if err != nil {
		t.metrics.calls.WithLabelValues(method.Name, outcomeAuth).Inc()
		return nil, err
	}

	refreshed := false
	retries := 0
	for {
		value, err := t.send(ctx, method, params, creds, opts)
		if err == nil {
			t.metrics.calls.WithLabelValues(method.Name, outcomeOK).Inc()
			return value, nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) && !refreshed {
			refreshed = true
			t.metrics.refreshes.Inc()
			t.logger.Info("credentials rejected, refreshing",
				"method", method.Name, "reason", authErr.Reason)
			fresh, refreshErr := t.creds.Refresh(ctx, creds)
			if refreshErr != nil {
				t.metrics.calls.WithLabelValues(method.Name, outcomeAuth).Inc()
				return nil, refreshErr
			}
			creds = fresh
			t.metrics.retries.WithLabelValues(method.Name, "auth_refresh").Inc()
			continue
		}

		if retryable(err, opts) && retries < opts.MaxRetries {
			retries++
			delay := backoffDelay(opts.retryBase(), retries)
			trigger := "rate_limit"
			var transportErr *TransportError
			if errors.As(err, &transportErr) {
				trigger = "network"
			}
			t.metrics.retries.WithLabelValues(method.Name, trigger).Inc()
			t.logger.Debug("retrying rpc after backoff",
				"method", method.Name, "attempt", retries, "delay", delay, "cause", err)
			select {
			case <-t.clk.After(delay):
			case <-ctx.Done():
				t.metrics.calls.WithLabelValues(method.Name, outcomeCanceled).Inc()
				return nil, &TransportError{Method: method.Name, Err: ctx.Err()}
			}
			continue
		}

		t.metrics.calls.WithLabelValues(method.Name, outcomeFor(err)).Inc()
		return nil, err
	}
}

// send performs one physical send: sequence assignment, encoding,
// the HTTP exchange, status classification, and decoding.
func (t *Transport) send(ctx context.Context, method Method, params []Param, creds Credentials, opts CallOptions) (any, error) {
	seq := t.seq.Add(1)
	sourcePath := t.sourcePath
	if opts.SourcePath != "" {
		sourcePath = opts.SourcePath
	}
	body, query, err := encodeRequest(method, params, seq, creds, sourcePath, t.buildLabel)
	if err != nil {
		return nil, err
	}

	target := *t.baseURL
	target.Path = strings.TrimSuffix(t.baseURL.Path, "/") + batchExecutePath
	target.RawQuery = query.Encode()

	sendCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, target.String(), strings.NewReader(body))
	if err != nil {
		return nil, &TransportError{Method: method.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	if creds.CookieHeader != "" {
		req.Header.Set("Cookie", creds.CookieHeader)
	}

	t.logger.Debug("rpc send", "method", method.Name, "id", method.ID, "seq", seq)
	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{
			Method:  method.Name,
			Timeout: sendCtx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if len(raw) > maxResponseBytes {
		return nil, &DecodeError{
			Reason: fmt.Sprintf("response exceeds %d bytes", maxResponseBytes),
		}
	}
	if err != nil {
		return nil, &TransportError{
			Method:  method.Name,
			Timeout: sendCtx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled),
			Err:     err,
		}
	}
	t.logger.Debug("rpc response", "method", method.Name, "seq", seq,
		"status", resp.StatusCode, "bytes", len(raw), "elapsed", time.Since(start))

	if err := classifyStatus(resp.StatusCode, raw, method); err != nil {
		return nil, err
	}
	return t.dec.decode(raw, method)
}

// failedPreconditionMarker appears in 400 bodies when the anti-forgery
// token has expired; the session cookies may still be good, so this is
// an auth failure, not a bad request.
const failedPreconditionMarker = "FAILED_PRECONDITION"

func classifyStatus(status int, raw []byte, method Method) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{
			Method:     method.Name,
			StatusCode: status,
			Reason:     http.StatusText(status),
		}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Method: method.Name}
	case status == http.StatusBadRequest && strings.Contains(string(raw), failedPreconditionMarker):
		return &AuthError{
			Method:     method.Name,
			StatusCode: status,
			Reason:     "anti-forgery token rejected",
		}
	default:
		return &ServerError{
			Method:     method.Name,
			Code:       http.StatusText(status),
			StatusCode: status,
		}
	}
}

func outcomeFor(err error) string {
	var (
		encodeErr    *EncodeError
		decodeErr    *DecodeError
		serverErr    *ServerError
		rateLimitErr *RateLimitError
		authErr      *AuthError
		transportErr *TransportError
		unknownErr   *UnknownMethodError
	)
	switch {
	case errors.As(err, &encodeErr):
		return outcomeEncode
	case errors.As(err, &decodeErr):
		return outcomeDecode
	case errors.As(err, &serverErr):
		return outcomeServer
	case errors.As(err, &rateLimitErr):
		return outcomeRateLimit
	case errors.As(err, &authErr):
		return outcomeAuth
	case errors.As(err, &unknownErr):
		return outcomeUnknownMeth
	case errors.As(err, &transportErr):
		if errors.Is(err, context.Canceled) {
			return outcomeCanceled
		}
		return outcomeTransport
	default:
		return outcomeTransport
	}
}
