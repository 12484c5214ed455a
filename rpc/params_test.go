// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"math"
	"testing"
)

func TestMarshalParams(t *testing.T) {
	tests := []struct {
		name   string
		params []Param
		want   string
	}{
		{
			name:   "empty",
			params: nil,
			want:   "[]",
		},
		{
			name:   "scalars",
			params: []Param{String("abc"), Int(7), Float(1.5), Bool(true), Null()},
			want:   `["abc",7,1.5,true,null]`,
		},
		{
			name:   "empty list is not null",
			params: []Param{List(), Null()},
			want:   `[[],null]`,
		},
		{
			name:   "strings helper",
			params: []Param{Strings("a", "b")},
			want:   `[["a","b"]]`,
		},
		{
			name: "nested positional tree",
			params: []Param{
				List(List(List(
					Null(), Null(), Strings("https://example.com"),
					Null(), Null(), Null(), Null(), Null(),
				))),
				String("nb-1"),
				List(Int(2)),
				Null(),
				Null(),
			},
			want: `[[[[null,null,["https://example.com"],null,null,null,null,null]]],"nb-1",[2],null,null]`,
		},
		{
			name:   "string needing escapes",
			params: []Param{String(`line "one"` + "\n")},
			want:   `["line \"one\"\n"]`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := marshalParams(test.params)
			if err != nil {
				t.Fatalf("marshalParams: %v", err)
			}
			if got != test.want {
				t.Fatalf("marshalParams = %s, want %s", got, test.want)
			}
		})
	}
}

func TestMarshalParamsNonFinite(t *testing.T) {
	for _, value := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := marshalParams([]Param{Float(value)})
		var encodeErr *EncodeError
		if !errors.As(err, &encodeErr) {
			t.Fatalf("marshalParams(%v) error = %v, want *EncodeError", value, err)
		}
	}
}

func TestMarshalParamsNonFiniteNested(t *testing.T) {
	_, err := marshalParams([]Param{List(String("ok"), List(Float(math.NaN())))})
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}
}
