// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// responseGuard is the fixed anti-XSSI prefix every protocol response
// starts with. A response without it is not protocol output at all,
// typically an HTML error or login page.
const responseGuard = ")]}'"

// resultTag marks a record that carries an RPC result.
const resultTag = "wrb.fr"

// loginMarker appears in the HTML interstitial the backend serves
// when the session cookies are no longer accepted. Its presence turns
// a would-be DecodeError into an AuthError so the refresh path runs.
const loginMarker = "accounts.google.com"

// decoder parses response streams and tracks, per Transport, which
// unrequested method ids have already been reported as drift. The
// dedup set only grows; observed ids are short opaque strings so the
// memory cost is negligible.
type decoder struct {
	logger  *slog.Logger
	metrics *Metrics

	mu       sync.Mutex
	observed map[string]struct{}
}

func newDecoder(logger *slog.Logger, metrics *Metrics) *decoder {
	return &decoder{
		logger:   logger,
		metrics:  metrics,
		observed: make(map[string]struct{}),
	}
}

// decode extracts the result for method from a raw response body.
//
// Return values follow the call classification: (value, nil) on
// success where a nil value is a legitimately empty result (the frame
// was present with an explicit null payload); *DecodeError for
// non-protocol output; *AuthError when the body is the login
// interstitial; *ServerError for an in-frame application failure;
// *UnknownMethodError when the stream contained no frame for method.
func (d *decoder) decode(raw []byte, method Method) (any, error) {
	body := string(raw)
	if !strings.HasPrefix(body, responseGuard) {
		if strings.Contains(body, loginMarker) {
			return nil, &AuthError{
				Method: method.Name,
				Reason: "response is the login page, session cookies rejected",
			}
		}
		return nil, &DecodeError{
			Reason:  "missing anti-XSSI guard, response is not protocol output",
			Snippet: snippet(body),
		}
	}
	body = strings.TrimLeft(body[len(responseGuard):], "\n")

	// The stream interleaves chunk lines with length lines. A chunk
	// line is a JSON array of records, though some responses carry a
	// result record directly on its own line; result records are
	// tagged "wrb.fr". Each line parses independently, so a length
	// line or an unrecognized control record is skipped, not fatal.
	// The whole stream is scanned even after a match so that every
	// unrequested id feeds the drift diagnostic.
	var result []json.RawMessage
	var unmatched []string
	consider := func(record []json.RawMessage) {
		if len(record) < 3 {
			return
		}
		var tag string
		if err := json.Unmarshal(record[0], &tag); err != nil || tag != resultTag {
			return
		}
		var id string
		if err := json.Unmarshal(record[1], &id); err != nil {
			return
		}
		if id != method.ID {
			unmatched = append(unmatched, id)
			return
		}
		if result == nil {
			result = record
		}
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] != '[' {
			continue
		}

		var elements []json.RawMessage
		if err := json.Unmarshal([]byte(line), &elements); err != nil {
			continue
		}
		if isResultRecord(elements) {
			consider(elements)
			continue
		}
		for _, element := range elements {
			var record []json.RawMessage
			if err := json.Unmarshal(element, &record); err != nil {
				continue
			}
			consider(record)
		}
	}

	d.noteUnrequested(unmatched, method)
	if result == nil {
		return nil, &UnknownMethodError{Method: method.Name, Observed: unmatched}
	}
	return d.decodeResultFrame(result, method)
}

// isResultRecord reports whether a parsed line is itself a result
// record rather than a chunk of records: its first element is the
// result tag.
func isResultRecord(elements []json.RawMessage) bool {
	if len(elements) == 0 {
		return false
	}
	var tag string
	return json.Unmarshal(elements[0], &tag) == nil && tag == resultTag
}

// decodeResultFrame extracts the payload from a matched result
// record. The payload is itself serialized: a JSON string holding the
// result tree, parsed in a second pass. An explicit null payload is a
// completed call that returned nothing, unless the frame carries a
// trailing error code, which makes it a server-side failure.
func (d *decoder) decodeResultFrame(record []json.RawMessage, method Method) (any, error) {
	payload := bytes.TrimSpace(record[2])
	if bytes.Equal(payload, []byte("null")) {
		if code, ok := frameErrorCode(record); ok {
			return nil, &ServerError{Method: method.Name, Code: code, StatusCode: 200}
		}
		return nil, nil
	}

	var serialized string
	if err := json.Unmarshal(payload, &serialized); err != nil {
		return nil, &DecodeError{
			Reason:  "result payload is neither null nor a serialized string",
			Snippet: snippet(string(payload)),
		}
	}
	var value any
	if err := json.Unmarshal([]byte(serialized), &value); err != nil {
		return nil, &DecodeError{
			Reason:  "second-pass parse of result payload failed: " + err.Error(),
			Snippet: snippet(serialized),
		}
	}
	return value, nil
}

// frameErrorCode looks for an application error code in the trailing
// elements of a null-payload result frame. Observed shape: the
// element after the two null fillers is either a bare number or a
// one-element number array.
func frameErrorCode(record []json.RawMessage) (string, bool) {
	for _, element := range record[3:] {
		element = bytes.TrimSpace(element)
		if len(element) == 0 || bytes.Equal(element, []byte("null")) {
			continue
		}
		var code json.Number
		if err := json.Unmarshal(element, &code); err == nil {
			return code.String(), true
		}
		var codes []json.Number
		if err := json.Unmarshal(element, &codes); err == nil && len(codes) > 0 {
			return codes[0].String(), true
		}
		// A non-null trailing element that is not a recognized error
		// shape (e.g. the "generic" tag mirror) is ignored.
	}
	return "", false
}

// noteUnrequested reports method ids that appeared in a response
// without ever being requested. Each id is logged once per Transport
// lifetime (repeated sightings add noise, not information) but
// every sighting is counted in metrics.
func (d *decoder) noteUnrequested(ids []string, requested Method) {
	if len(ids) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.metrics.unknownMethods.Inc()
		if _, seen := d.observed[id]; seen {
			continue
		}
		d.observed[id] = struct{}{}
		d.logger.Warn("unrequested rpc method id in response, possible protocol drift",
			"observed_id", id,
			"requested_id", requested.ID,
			"requested_method", requested.Name,
		)
	}
}

// snippet bounds a string for inclusion in error messages.
func snippet(s string) string {
	const max = 64
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
