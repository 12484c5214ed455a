// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Profile holds per-user defaults kept in a hand-edited profile.jsonc
// next to the storage state. Comments and trailing commas are allowed;
// the file is optional.
type Profile struct {
	// DefaultNotebook is used when a command that needs a notebook id
	// is invoked without one.
	DefaultNotebook string `json:"default_notebook"`

	// SourcePath overrides the transport's default source-path.
	SourcePath string `json:"source_path"`
}

const profileFile = "profile.jsonc"

// defaultProfilePath mirrors the storage state location rules:
// $NLM_HOME/profile.jsonc, or ~/.nlm/profile.jsonc.
func defaultProfilePath() (string, error) {
	if home := os.Getenv("NLM_HOME"); home != "" {
		return filepath.Join(home, profileFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".nlm", profileFile), nil
}

// loadProfile reads the profile file. A missing file yields an empty
// profile, not an error.
func loadProfile(path string) (Profile, error) {
	var profile Profile
	if path == "" {
		resolved, err := defaultProfilePath()
		if err != nil {
			return profile, err
		}
		path = resolved
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return profile, nil
		}
		return profile, fmt.Errorf("reading profile %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &profile); err != nil {
		return profile, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return profile, nil
}
