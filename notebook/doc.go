// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

// Package notebook provides typed call sites over the RPC transport
// for working with notebooks and their sources.
//
// The backend returns positional arrays, not objects: a notebook is
// a list whose index 0 is the title, index 2 the id, and so on. The
// parsers in this package traverse those trees defensively; a missing
// or wrong-shaped element yields a zero field, never a panic, because
// the backend reshuffles optional elements between deployments.
package notebook
