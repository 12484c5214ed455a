// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExtractCookiesBaseDomainWins(t *testing.T) {
	tests := []struct {
		name    string
		cookies []Cookie
	}{
		{
			name: "base domain first",
			cookies: []Cookie{
				{Name: "SID", Value: "base", Domain: ".google.com"},
				{Name: "SID", Value: "regional", Domain: ".google.com.sg"},
			},
		},
		{
			name: "base domain last",
			cookies: []Cookie{
				{Name: "SID", Value: "regional", Domain: ".google.com.sg"},
				{Name: "SID", Value: "base", Domain: ".google.com"},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cookies, err := ExtractCookies(StorageState{Cookies: test.cookies})
			if err != nil {
				t.Fatalf("ExtractCookies: %v", err)
			}
			if len(cookies) != 1 || cookies[0].Value != "base" {
				t.Fatalf("cookies = %+v, want single SID with value base", cookies)
			}
		})
	}
}

func TestExtractCookiesRegionalFallback(t *testing.T) {
	cookies, err := ExtractCookies(StorageState{Cookies: []Cookie{
		{Name: "SID", Value: "tokyo", Domain: ".google.co.jp"},
	}})
	if err != nil {
		t.Fatalf("ExtractCookies: %v", err)
	}
	if cookies[0].Value != "tokyo" {
		t.Fatalf("SID = %q, want tokyo", cookies[0].Value)
	}
}

func TestExtractCookiesFiltersDomains(t *testing.T) {
	cookies, err := ExtractCookies(StorageState{Cookies: []Cookie{
		{Name: "SID", Value: "ok", Domain: ".google.com"},
		{Name: "APP", Value: "ok", Domain: "notebooklm.google.com"},
		{Name: "MEDIA", Value: "ok", Domain: ".googleusercontent.com"},
		{Name: "EVIL", Value: "no", Domain: "evil-google.com"},
		{Name: "FAKE", Value: "no", Domain: ".google.attacker"},
		{Name: "OTHER", Value: "no", Domain: ".example.com"},
	}})
	if err != nil {
		t.Fatalf("ExtractCookies: %v", err)
	}
	var names []string
	for _, cookie := range cookies {
		names = append(names, cookie.Name)
	}
	if want := []string{"SID", "APP", "MEDIA"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
}

func TestExtractCookiesMissingSID(t *testing.T) {
	_, err := ExtractCookies(StorageState{Cookies: []Cookie{
		{Name: "HSID", Value: "x", Domain: ".google.com"},
		{Name: "SID", Value: "wrong-domain", Domain: "mail.google.attacker"},
	}})
	var missingErr *MissingCookieError
	if !errors.As(err, &missingErr) {
		t.Fatalf("error = %v, want *MissingCookieError", err)
	}
	if !reflect.DeepEqual(missingErr.Found, []string{"HSID"}) {
		t.Errorf("Found = %v, want [HSID]", missingErr.Found)
	}
}

func TestCookieHeader(t *testing.T) {
	header := CookieHeader([]Cookie{
		{Name: "SID", Value: "abc"},
		{Name: "HSID", Value: "def"},
	})
	if header != "SID=abc; HSID=def" {
		t.Fatalf("header = %q", header)
	}
}

const sampleStorageJSON = `{
	"cookies": [
		{"name": "SID", "value": "abc", "domain": ".google.com", "path": "/"},
		{"name": "HSID", "value": "def", "domain": ".google.com", "path": "/"}
	],
	"origins": []
}`

func writeStorageFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage_state.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing storage file: %v", err)
	}
	return path
}

func TestLoadCookiesFromEnvironmentPrecedence(t *testing.T) {
	filePath := writeStorageFile(t, sampleStorageJSON)

	t.Run("explicit path wins over env", func(t *testing.T) {
		t.Setenv(EnvAuthJSON, `{"cookies":[{"name":"SID","value":"from-env","domain":".google.com"}]}`)
		cookies, err := LoadCookiesFromEnvironment(filePath)
		if err != nil {
			t.Fatalf("LoadCookiesFromEnvironment: %v", err)
		}
		if cookies[0].Value != "abc" {
			t.Errorf("SID = %q, want abc (from file)", cookies[0].Value)
		}
	})

	t.Run("auth file env wins over inline json", func(t *testing.T) {
		t.Setenv(EnvAuthFile, filePath)
		t.Setenv(EnvAuthJSON, `{"cookies":[{"name":"SID","value":"from-env","domain":".google.com"}]}`)
		cookies, err := LoadCookiesFromEnvironment("")
		if err != nil {
			t.Fatalf("LoadCookiesFromEnvironment: %v", err)
		}
		if cookies[0].Value != "abc" {
			t.Errorf("SID = %q, want abc (from file)", cookies[0].Value)
		}
	})

	t.Run("inline json", func(t *testing.T) {
		t.Setenv(EnvAuthJSON, `{"cookies":[{"name":"SID","value":"from-env","domain":".google.com"}]}`)
		cookies, err := LoadCookiesFromEnvironment("")
		if err != nil {
			t.Fatalf("LoadCookiesFromEnvironment: %v", err)
		}
		if cookies[0].Value != "from-env" {
			t.Errorf("SID = %q, want from-env", cookies[0].Value)
		}
	})

	t.Run("default path under NLM_HOME", func(t *testing.T) {
		home := t.TempDir()
		if err := os.WriteFile(filepath.Join(home, "storage_state.json"), []byte(sampleStorageJSON), 0o600); err != nil {
			t.Fatalf("writing storage file: %v", err)
		}
		t.Setenv(EnvHome, home)
		cookies, err := LoadCookiesFromEnvironment("")
		if err != nil {
			t.Fatalf("LoadCookiesFromEnvironment: %v", err)
		}
		if cookies[0].Value != "abc" {
			t.Errorf("SID = %q, want abc", cookies[0].Value)
		}
	})
}

func TestLoadCookiesFileMissing(t *testing.T) {
	_, err := LoadCookiesFile(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("LoadCookiesFile succeeded on missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestParseStorageStateMalformed(t *testing.T) {
	if _, err := ParseStorageState([]byte(`{"cookies": [`)); err == nil {
		t.Fatal("ParseStorageState succeeded on malformed JSON")
	}
}
