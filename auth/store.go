// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nlmkit/nlm/lib/clock"
	"github.com/nlmkit/nlm/rpc"
)

// ErrLoginRequired means the session cookies themselves were rejected.
// No refresh can recover from this; the user has to run the browser
// sign-in again and produce a fresh storage state.
var ErrLoginRequired = errors.New("auth: login required, session cookies rejected; run the browser sign-in again")

// StoreConfig assembles a Store. Cookies and BaseURL are required.
type StoreConfig struct {
	// Cookies is the Google session loaded from storage state.
	Cookies []Cookie

	// BaseURL is the application origin whose landing page embeds the
	// tokens, e.g. "https://notebooklm.google.com".
	BaseURL string

	// HTTPClient defaults to one with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Clock defaults to the real clock.
	Clock clock.Clock

	// SettleDelay is how long a successful refresh waits before
	// handing the new token to waiters. The backend propagates fresh
	// tokens asynchronously; using one immediately tends to bounce.
	// Zero selects the default of 500ms; negative disables the wait.
	SettleDelay time.Duration

	// RefreshTimeout bounds one token fetch. The fetch deliberately
	// ignores caller deadlines (many callers may be waiting on it), so
	// this is its only bound. Zero selects the default of 30 seconds.
	RefreshTimeout time.Duration
}

const (
	defaultSettleDelay    = 500 * time.Millisecond
	defaultRefreshTimeout = 30 * time.Second
)

// Store holds the current credential set and coordinates refreshes.
// It implements [rpc.CredentialSource]. Any number of goroutines may
// call Credentials and Refresh concurrently; a refresh in flight is
// shared by every caller that needs one.
type Store struct {
	cookieHeader   string
	baseURL        string
	client         *http.Client
	logger         *slog.Logger
	clk            clock.Clock
	settleDelay    time.Duration
	refreshTimeout time.Duration

	mu       sync.Mutex
	current  rpc.Credentials
	ready    bool
	inflight *refreshTicket
}

// refreshTicket is the shared future for one refresh: fields are
// written once, then done is closed.
type refreshTicket struct {
	done  chan struct{}
	creds rpc.Credentials
	err   error
}

// NewStore validates cfg and returns a Store. No network traffic
// happens until the first Credentials call.
func NewStore(cfg StoreConfig) (*Store, error) {
	if len(cfg.Cookies) == 0 {
		return nil, errors.New("auth: StoreConfig.Cookies is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("auth: StoreConfig.BaseURL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRefreshTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	settle := cfg.SettleDelay
	if settle == 0 {
		settle = defaultSettleDelay
	}
	if settle < 0 {
		settle = 0
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}

	s := &Store{
		cookieHeader:   CookieHeader(cfg.Cookies),
		baseURL:        cfg.BaseURL,
		client:         client,
		logger:         logger,
		clk:            clk,
		settleDelay:    settle,
		refreshTimeout: timeout,
	}
	return s, nil
}

// Credentials returns the current credential set, fetching the page
// tokens on first use. Implements [rpc.CredentialSource].
func (s *Store) Credentials(ctx context.Context) (rpc.Credentials, error) {
	s.mu.Lock()
	if s.ready {
		creds := s.current
		s.mu.Unlock()
		return creds, nil
	}
	s.mu.Unlock()
	return s.Refresh(ctx, rpc.Credentials{})
}

// Refresh replaces a rejected credential set and returns the new one.
// Implements [rpc.CredentialSource].
//
// Concurrent calls coalesce: the first caller starts the fetch, the
// rest wait on its result. A caller whose stale set has already been
// replaced gets the current set back without triggering another
// fetch, so a burst of rejections from one expiry costs one refresh.
// The fetch itself runs detached from caller contexts; a waiter whose
// context ends gives up waiting, the fetch completes for the others.
func (s *Store) Refresh(ctx context.Context, stale rpc.Credentials) (rpc.Credentials, error) {
	s.mu.Lock()
	if s.ready && s.current != stale {
		creds := s.current
		s.mu.Unlock()
		return creds, nil
	}
	ticket := s.inflight
	if ticket == nil {
		ticket = &refreshTicket{done: make(chan struct{})}
		s.inflight = ticket
		go s.runRefresh(ticket)
	}
	s.mu.Unlock()

	select {
	case <-ticket.done:
		return ticket.creds, ticket.err
	case <-ctx.Done():
		return rpc.Credentials{}, ctx.Err()
	}
}

func (s *Store) runRefresh(ticket *refreshTicket) {
	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
	defer cancel()

	start := s.clk.Now()
	creds, err := s.fetchTokens(ctx)
	if err == nil && s.settleDelay > 0 {
		// Let the new token propagate server-side before anyone uses
		// it.
		s.clk.Sleep(s.settleDelay)
	}

	s.mu.Lock()
	if err == nil {
		s.current = creds
		s.ready = true
	}
	s.inflight = nil
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("credential refresh failed", "error", err)
	} else {
		s.logger.Info("credentials refreshed", "elapsed", s.clk.Now().Sub(start))
	}

	ticket.creds = creds
	ticket.err = err
	close(ticket.done)
}

// fetchTokens loads the application landing page with the session
// cookies and scrapes the two tokens out of its inline script data.
func (s *Store) fetchTokens(ctx context.Context) (rpc.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/", nil)
	if err != nil {
		return rpc.Credentials{}, fmt.Errorf("auth: building token request: %w", err)
	}
	req.Header.Set("Cookie", s.cookieHeader)

	resp, err := s.client.Do(req)
	if err != nil {
		return rpc.Credentials{}, fmt.Errorf("auth: fetching landing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rpc.Credentials{}, fmt.Errorf("auth: landing page returned status %d", resp.StatusCode)
	}
	finalURL := resp.Request.URL.String()
	if isLoginRedirect(finalURL) {
		return rpc.Credentials{}, ErrLoginRequired
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return rpc.Credentials{}, fmt.Errorf("auth: reading landing page: %w", err)
	}
	html := string(raw)

	token, ok := extractAuthToken(html)
	if !ok {
		if containsLoginRedirect(html) {
			return rpc.Credentials{}, ErrLoginRequired
		}
		return rpc.Credentials{}, fmt.Errorf("auth: anti-forgery token not found in landing page (final url %s); the page structure may have changed", finalURL)
	}
	sessionID, ok := extractSessionID(html)
	if !ok {
		return rpc.Credentials{}, fmt.Errorf("auth: session id not found in landing page (final url %s); the page structure may have changed", finalURL)
	}

	return rpc.Credentials{
		CookieHeader: s.cookieHeader,
		AuthToken:    token,
		SessionID:    sessionID,
	}, nil
}
