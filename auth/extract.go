// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"net/url"
	"regexp"
	"strings"
)

// The tokens live inside the WIZ_global_data object the landing page
// embeds as inline JavaScript. Both patterns tolerate optional
// whitespace around the colon; the frontend minifier has flipped that
// between deployments.
var (
	authTokenPattern = regexp.MustCompile(`"SNlM0e"\s*:\s*"([^"]+)"`)
	sessionIDPattern = regexp.MustCompile(`"FdrFJe"\s*:\s*"([^"]+)"`)
)

// loginHost serves the Google sign-in flow; landing there instead of
// the application means the cookies were not accepted.
const loginHost = "accounts.google.com"

// extractAuthToken pulls the anti-forgery token (sent as the "at"
// form field) out of the landing page HTML.
func extractAuthToken(html string) (string, bool) {
	match := authTokenPattern.FindStringSubmatch(html)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// extractSessionID pulls the session id (sent as the "f.sid" query
// parameter) out of the landing page HTML.
func extractSessionID(html string) (string, bool) {
	match := sessionIDPattern.FindStringSubmatch(html)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// isLoginRedirect reports whether the final URL of a redirect chain
// landed on the Google sign-in flow.
func isLoginRedirect(finalURL string) bool {
	parsed, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), loginHost)
}

// containsLoginRedirect reports whether page HTML is a client-side
// bounce to the sign-in flow (meta refresh or script redirect).
func containsLoginRedirect(html string) bool {
	return strings.Contains(html, loginHost)
}
