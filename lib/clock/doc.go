// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the pieces of the client that wait:
// retry backoff, the post-refresh settle delay, and polling loops.
//
// Production code injects [Real]; tests inject [Fake] and drive time
// with [FakeClock.Advance]. [FakeClock.WaitForTimers] removes the race
// between a goroutine registering a wait and the test advancing past
// its deadline.
package clock
