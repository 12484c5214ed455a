// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth manages the credentials the NotebookLM backend accepts:
// Google session cookies plus two short-lived tokens scraped from the
// application landing page (the anti-forgery token "SNlM0e" and the
// session id "FdrFJe").
//
// Cookies come from a Playwright storage state file written by a
// browser sign-in; [LoadCookiesFromEnvironment] filters it to Google
// domains and
// resolves duplicate names in favor of the .google.com base domain.
// There is no programmatic sign-in. When the cookies themselves stop
// working the only fix is a fresh browser login, reported as
// [ErrLoginRequired].
//
// [Store] holds the credential set, fetches the page tokens on first
// use, and refreshes them when the transport reports a rejection.
// Concurrent refresh requests coalesce into a single fetch whose
// result every waiter shares.
package auth
