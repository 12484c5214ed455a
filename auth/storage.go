// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Environment variables consulted by LoadCookiesFromEnvironment, in
// precedence order.
const (
	// EnvAuthFile names a Playwright storage state file. Useful in CI
	// where the state is provisioned as a secret file.
	EnvAuthFile = "NLM_AUTH_FILE"

	// EnvAuthJSON holds the storage state JSON inline, no file needed.
	EnvAuthJSON = "NLM_AUTH_JSON"

	// EnvHome overrides the directory holding the default storage
	// state file.
	EnvHome = "NLM_HOME"
)

// storageStateFile is the file name the login flow writes under the
// home directory.
const storageStateFile = "storage_state.json"

// Cookie is one browser cookie from a Playwright storage state file.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// StorageState is the subset of a Playwright storage state file the
// client reads.
type StorageState struct {
	Cookies []Cookie `json:"cookies"`
}

// baseGoogleDomain always wins when the same cookie name appears on
// several Google domains.
const baseGoogleDomain = ".google.com"

// allowedCookieDomains are the non-regional domains auth cookies may
// come from.
var allowedCookieDomains = map[string]bool{
	baseGoogleDomain:         true,
	"notebooklm.google.com":  true,
	".googleusercontent.com": true,
}

// googleRegionalSuffixes lists the ccTLD suffixes after ".google."
// where Google sets session cookies for users in those regions. An
// explicit allowlist, not a pattern: "evil-google.com" and lookalike
// domains must never pass.
var googleRegionalSuffixes = map[string]bool{
	"com.sg": true, "com.au": true, "com.br": true, "com.mx": true,
	"com.ar": true, "com.hk": true, "com.tw": true, "com.my": true,
	"com.ph": true, "com.vn": true, "com.pk": true, "com.bd": true,
	"com.ng": true, "com.eg": true, "com.tr": true, "com.ua": true,
	"com.co": true, "com.pe": true, "com.sa": true, "com.ae": true,
	"co.uk": true, "co.jp": true, "co.in": true, "co.kr": true,
	"co.za": true, "co.nz": true, "co.id": true, "co.th": true,
	"co.il": true, "co.ve": true, "co.cr": true, "co.ke": true,
	"co.ug": true, "co.tz": true, "co.ma": true, "co.ao": true,
	"co.mz": true, "co.zw": true, "co.bw": true,
	"cn": true, "de": true, "fr": true, "it": true, "es": true,
	"nl": true, "pl": true, "ru": true, "ca": true, "be": true,
	"at": true, "ch": true, "se": true, "no": true, "dk": true,
	"fi": true, "pt": true, "gr": true, "cz": true, "ro": true,
	"hu": true, "ie": true, "sk": true, "bg": true, "hr": true,
	"si": true, "lt": true, "lv": true, "ee": true, "lu": true,
	"cl": true, "cat": true,
}

func isGoogleDomain(domain string) bool {
	if domain == baseGoogleDomain {
		return true
	}
	suffix, ok := strings.CutPrefix(domain, ".google.")
	return ok && googleRegionalSuffixes[suffix]
}

func isAllowedAuthDomain(domain string) bool {
	return allowedCookieDomains[domain] || isGoogleDomain(domain)
}

// MissingCookieError means the storage state carried no usable SID
// cookie, the minimum a Google session needs. The diagnostic fields
// help users tell an empty file from one scoped to the wrong domains.
type MissingCookieError struct {
	// Found lists the cookie names that did pass the domain filter.
	Found []string
	// GoogleDomains lists the Google-looking domains present in the
	// file, accepted or not.
	GoogleDomains []string
}

func (e *MissingCookieError) Error() string {
	msg := "auth: storage state has no SID cookie"
	if len(e.Found) > 0 {
		msg += fmt.Sprintf(" (found %v)", e.Found)
	}
	if len(e.GoogleDomains) > 0 {
		msg += fmt.Sprintf(" (google domains present: %v)", e.GoogleDomains)
	}
	return msg + "; run the browser sign-in again"
}

// ExtractCookies filters a parsed storage state down to the cookies
// the backend needs. When a cookie name appears on several domains
// the .google.com value wins regardless of file order; regional
// domains (.google.de, .google.co.uk, ...) are fallbacks for users
// whose SID lives there.
func ExtractCookies(state StorageState) ([]Cookie, error) {
	byName := make(map[string]Cookie)
	var order []string
	for _, cookie := range state.Cookies {
		if cookie.Name == "" || !isAllowedAuthDomain(cookie.Domain) {
			continue
		}
		existing, seen := byName[cookie.Name]
		if !seen {
			order = append(order, cookie.Name)
			byName[cookie.Name] = cookie
			continue
		}
		if cookie.Domain == baseGoogleDomain && existing.Domain != baseGoogleDomain {
			byName[cookie.Name] = cookie
		}
	}

	if _, ok := byName["SID"]; !ok {
		err := &MissingCookieError{Found: order}
		domains := make(map[string]bool)
		for _, cookie := range state.Cookies {
			if strings.Contains(strings.ToLower(cookie.Domain), "google") {
				domains[cookie.Domain] = true
			}
		}
		for domain := range domains {
			err.GoogleDomains = append(err.GoogleDomains, domain)
		}
		sort.Strings(err.GoogleDomains)
		return nil, err
	}

	cookies := make([]Cookie, 0, len(order))
	for _, name := range order {
		cookies = append(cookies, byName[name])
	}
	return cookies, nil
}

// ParseStorageState parses Playwright storage state JSON and extracts
// the auth cookies from it.
func ParseStorageState(data []byte) ([]Cookie, error) {
	var state StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("auth: parsing storage state: %w", err)
	}
	return ExtractCookies(state)
}

// LoadCookiesFile reads and parses a storage state file.
func LoadCookiesFile(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("auth: storage state %s does not exist, run the browser sign-in first: %w", path, err)
		}
		return nil, fmt.Errorf("auth: reading storage state: %w", err)
	}
	return ParseStorageState(data)
}

// DefaultStoragePath returns the storage state location the login flow
// writes to: $NLM_HOME/storage_state.json, or ~/.nlm/storage_state.json.
func DefaultStoragePath() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return filepath.Join(home, storageStateFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("auth: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".nlm", storageStateFile), nil
}

// LoadCookiesFromEnvironment resolves the storage state by precedence:
// an explicit path argument, then NLM_AUTH_FILE, then inline JSON in
// NLM_AUTH_JSON, then the default file location. path may be empty.
func LoadCookiesFromEnvironment(path string) ([]Cookie, error) {
	if path != "" {
		return LoadCookiesFile(path)
	}
	if file := strings.TrimSpace(os.Getenv(EnvAuthFile)); file != "" {
		return LoadCookiesFile(file)
	}
	if inline := strings.TrimSpace(os.Getenv(EnvAuthJSON)); inline != "" {
		cookies, err := ParseStorageState([]byte(inline))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvAuthJSON, err)
		}
		return cookies, nil
	}
	fallback, err := DefaultStoragePath()
	if err != nil {
		return nil, err
	}
	return LoadCookiesFile(fallback)
}

// CookieHeader renders cookies as a Cookie header value, in load
// order: "SID=abc; HSID=def".
func CookieHeader(cookies []Cookie) string {
	parts := make([]string, len(cookies))
	for i, cookie := range cookies {
		parts[i] = cookie.Name + "=" + cookie.Value
	}
	return strings.Join(parts, "; ")
}
