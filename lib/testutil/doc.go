// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared by tests, mostly
// channel-wait wrappers that fail the test instead of hanging it.
package testutil
