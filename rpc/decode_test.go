// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func newTestDecoder() *decoder {
	return newDecoder(slog.New(slog.NewTextHandler(io.Discard, nil)), NewMetrics(nil))
}

// chunkBody assembles a response stream the way the backend does: the
// anti-XSSI guard, a blank line, then length-prefixed chunk lines.
func chunkBody(chunks ...string) string {
	var b strings.Builder
	b.WriteString(")]}'\n\n")
	for _, chunk := range chunks {
		b.WriteString(strconv.Itoa(len(chunk)))
		b.WriteString("\n")
		b.WriteString(chunk)
		b.WriteString("\n")
	}
	return b.String()
}

// resultChunk builds a chunk holding one result record whose payload
// is the serialized JSON text serialized.
func resultChunk(methodID, serialized string) string {
	return fmt.Sprintf(`[["wrb.fr",%q,%q,null,null,null,"generic"]]`, methodID, serialized)
}

func TestDecodeResult(t *testing.T) {
	body := chunkBody(
		resultChunk("wXbhsf", `[["nb-1","My Notebook"]]`),
		`[["di",59],["af.httprm",59,"4245221195791342455",7]]`,
	)
	value, err := newTestDecoder().decode([]byte(body), MethodListNotebooks)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []any{[]any{"nb-1", "My Notebook"}}
	if !reflect.DeepEqual(value, want) {
		t.Fatalf("decode = %#v, want %#v", value, want)
	}
}

func TestDecodeTopLevelRecord(t *testing.T) {
	// Some responses skip the chunk wrapper and put the result record
	// directly on its own line, with or without length framing.
	record := `["wrb.fr","wXbhsf","[\"ok\"]"]`
	tests := []struct {
		name string
		body string
	}{
		{"bare record line", ")]}'\n" + record},
		{"length framed", ")]}'\n\n" + strconv.Itoa(len(record)) + "\n" + record + "\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			value, err := newTestDecoder().decode([]byte(test.body), MethodListNotebooks)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(value, []any{"ok"}) {
				t.Fatalf("decode = %#v, want [ok]", value)
			}
		})
	}
}

func TestDecodeSelectsRequestedFrame(t *testing.T) {
	body := chunkBody(
		resultChunk("CCqFvf", `["other"]`),
		resultChunk("wXbhsf", `["mine"]`),
	)
	value, err := newTestDecoder().decode([]byte(body), MethodListNotebooks)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(value, []any{"mine"}) {
		t.Fatalf("decode = %#v, want [mine]", value)
	}
}

func TestDecodeNullPayloadIsEmptyResult(t *testing.T) {
	body := chunkBody(`[["wrb.fr","WWINqb",null,null,null,null,"generic"]]`)
	value, err := newTestDecoder().decode([]byte(body), MethodDeleteNotebook)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value != nil {
		t.Fatalf("decode = %#v, want nil", value)
	}
}

func TestDecodeInFrameError(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		code  string
	}{
		{
			name:  "bare number code",
			chunk: `[["wrb.fr","wXbhsf",null,null,null,3,"generic"]]`,
			code:  "3",
		},
		{
			name:  "number array code",
			chunk: `[["wrb.fr","wXbhsf",null,null,null,[8],"generic"]]`,
			code:  "8",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := newTestDecoder().decode([]byte(chunkBody(test.chunk)), MethodListNotebooks)
			var serverErr *ServerError
			if !errors.As(err, &serverErr) {
				t.Fatalf("decode error = %v, want *ServerError", err)
			}
			if serverErr.Code != test.code {
				t.Errorf("Code = %q, want %q", serverErr.Code, test.code)
			}
			if serverErr.StatusCode != 200 {
				t.Errorf("StatusCode = %d, want 200", serverErr.StatusCode)
			}
		})
	}
}

func TestDecodeMissingGuard(t *testing.T) {
	_, err := newTestDecoder().decode([]byte("<html><body>502</body></html>"), MethodListNotebooks)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("decode error = %v, want *DecodeError", err)
	}
	if !strings.Contains(decodeErr.Snippet, "<html>") {
		t.Errorf("Snippet = %q, want leading response text", decodeErr.Snippet)
	}
}

func TestDecodeLoginPage(t *testing.T) {
	page := `<html><head><meta http-equiv="refresh" content="0; url=https://accounts.google.com/ServiceLogin"></head></html>`
	_, err := newTestDecoder().decode([]byte(page), MethodListNotebooks)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("decode error = %v, want *AuthError", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	body := chunkBody(resultChunk("wXbhsf", `[truncated`))
	_, err := newTestDecoder().decode([]byte(body), MethodListNotebooks)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("decode error = %v, want *DecodeError", err)
	}
}

func TestDecodeReportsDriftAlongsideResult(t *testing.T) {
	// The drift diagnostic fires even when the requested frame is
	// present: an unrequested id next to a good result is still the
	// early warning.
	var logs bytes.Buffer
	d := newDecoder(slog.New(slog.NewTextHandler(&logs, nil)), NewMetrics(nil))
	body := chunkBody(
		resultChunk("strayXX", `["stray"]`),
		resultChunk("wXbhsf", `["ok"]`),
	)

	value, err := d.decode([]byte(body), MethodListNotebooks)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(value, []any{"ok"}) {
		t.Fatalf("decode = %#v, want [ok]", value)
	}
	if got := strings.Count(logs.String(), "observed_id=strayXX"); got != 1 {
		t.Errorf("drift diagnostic logged %d times, want 1\nlogs:\n%s", got, logs.String())
	}

	// The stray frame also surfaces when it follows the match.
	after := chunkBody(
		resultChunk("wXbhsf", `["ok"]`),
		resultChunk("trailYY", `["stray"]`),
	)
	if _, err := d.decode([]byte(after), MethodListNotebooks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := strings.Count(logs.String(), "observed_id=trailYY"); got != 1 {
		t.Errorf("trailing drift diagnostic logged %d times, want 1\nlogs:\n%s", got, logs.String())
	}
}

func TestDecodeUnknownMethod(t *testing.T) {
	var logs bytes.Buffer
	d := newDecoder(slog.New(slog.NewTextHandler(&logs, nil)), NewMetrics(nil))
	body := chunkBody(resultChunk("Xyz123", `["stray"]`))

	_, err := d.decode([]byte(body), MethodListNotebooks)
	var unknownErr *UnknownMethodError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("decode error = %v, want *UnknownMethodError", err)
	}
	if !reflect.DeepEqual(unknownErr.Observed, []string{"Xyz123"}) {
		t.Errorf("Observed = %v, want [Xyz123]", unknownErr.Observed)
	}

	// The drift diagnostic for a given id fires once per decoder.
	if _, err := d.decode([]byte(body), MethodListNotebooks); err == nil {
		t.Fatal("second decode succeeded unexpectedly")
	}
	if got := strings.Count(logs.String(), "observed_id=Xyz123"); got != 1 {
		t.Errorf("drift diagnostic logged %d times, want 1\nlogs:\n%s", got, logs.String())
	}
}
