// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// batchExecutePath is the single POST endpoint every RPC goes to.
const batchExecutePath = "/_/LabsTailwindUi/data/batchexecute"

// envelopeTag is the fixed fourth element of the request envelope.
// Its meaning is unknown; the backend rejects requests without it.
const envelopeTag = "generic"

// buildEnvelope wraps a method id and its serialized parameter tree
// in the protocol's triple-nested envelope:
//
//	[[["<method_id>", "<serialized_params>", null, "generic"]]]
//
// The parameter tree is serialized first and embedded as a string;
// the backend parses it in a second pass, mirroring how responses
// carry their results.
func buildEnvelope(method Method, params []Param) (string, error) {
	serialized, err := marshalParams(params)
	if err != nil {
		return "", err
	}
	envelope, err := json.Marshal([]any{[]any{[]any{method.ID, serialized, nil, envelopeTag}}})
	if err != nil {
		// Only reachable if json.Marshal fails on plain strings,
		// which it does not; kept for completeness.
		return "", &EncodeError{Reason: err.Error()}
	}
	return string(envelope), nil
}

// encodeRequest produces the form-encoded POST body and the query
// parameters for one physical send. seq is the per-session request
// counter assigned by Transport: strictly increasing, one per send,
// never reused (the backend rejects duplicates and out-of-order
// numbers).
func encodeRequest(method Method, params []Param, seq uint64, creds Credentials, sourcePath, buildLabel string) (string, url.Values, error) {
	envelope, err := buildEnvelope(method, params)
	if err != nil {
		return "", nil, err
	}

	body := url.Values{
		"f.req": {envelope},
	}
	if creds.AuthToken != "" {
		body.Set("at", creds.AuthToken)
	}

	query := url.Values{
		"rpcids":      {method.ID},
		"source-path": {sourcePath},
		"rt":          {"c"},
		"_reqid":      {strconv.FormatUint(seq, 10)},
	}
	if creds.SessionID != "" {
		query.Set("f.sid", creds.SessionID)
	}
	if buildLabel != "" {
		query.Set("bl", buildLabel)
	}

	return body.Encode(), query, nil
}
