// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc implements the batch-style RPC transport used by the
// NotebookLM private backend.
//
// The wire protocol is undocumented and position-sensitive. A request
// is a form-encoded POST whose f.req field carries a triple-nested
// JSON envelope [[[method_id, serialized_params, null, "generic"]]];
// the parameter tree itself is serialized separately and embedded as a
// string. A response starts with the four-byte anti-XSSI guard ")]}'"
// followed by newline-delimited JSON array records interleaved with
// length lines; the record tagged "wrb.fr" whose method id matches the
// request carries the result as a string that needs a second parse
// pass.
//
// [Transport.Call] runs one logical call: assign a sequence number,
// encode, send, decode, classify. Errors are explicit types:
// [*AuthError] triggers exactly one credential refresh (through the
// [CredentialSource], which single-flights it) followed by one retry;
// [*RateLimitError] is retried with capped exponential backoff up to
// the per-call limit; everything else surfaces immediately. Each
// physical send consumes a fresh, strictly increasing sequence number;
// the remote end rejects reuse.
//
// Method ids observed in responses that were never requested are the
// early-warning signal for protocol drift; the decoder logs each such
// id once per Transport and counts it in metrics.
package rpc
