// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"encoding/json"
	"math"
	"strconv"
)

// Param is one node of a positional parameter tree: null, a scalar,
// or a list of further nodes. List order encodes meaning on this
// protocol, so an absent argument must be an explicit [Null] at its
// position, never omitted.
type Param struct {
	kind  paramKind
	str   string
	num   float64
	inum  int64
	flag  bool
	items []Param
}

type paramKind int

const (
	kindNull paramKind = iota
	kindString
	kindInt
	kindFloat
	kindBool
	kindList
)

// Null returns an explicit null placeholder.
func Null() Param { return Param{kind: kindNull} }

// String returns a string scalar.
func String(s string) Param { return Param{kind: kindString, str: s} }

// Int returns an integer scalar.
func Int(i int) Param { return Param{kind: kindInt, inum: int64(i)} }

// Float returns a floating-point scalar. NaN and infinities are
// structurally invalid and fail at encode time.
func Float(f float64) Param { return Param{kind: kindFloat, num: f} }

// Bool returns a boolean scalar.
func Bool(b bool) Param { return Param{kind: kindBool, flag: b} }

// List returns a list node. A nil items slice encodes as the empty
// list, not null; use [Null] for absent positions.
func List(items ...Param) Param {
	if items == nil {
		items = []Param{}
	}
	return Param{kind: kindList, items: items}
}

// Strings returns a list of string scalars, a common leaf shape
// (e.g. an id wrapped as ["id"]).
func Strings(values ...string) Param {
	items := make([]Param, len(values))
	for i, v := range values {
		items[i] = String(v)
	}
	return Param{kind: kindList, items: items}
}

// IsNull reports whether the node is an explicit null.
func (p Param) IsNull() bool { return p.kind == kindNull }

// marshalParams serializes a top-level parameter list to the compact
// JSON text embedded in the request envelope.
func marshalParams(params []Param) (string, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, '[')
	for i, p := range params {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		buf, err = p.appendJSON(buf)
		if err != nil {
			return "", err
		}
	}
	buf = append(buf, ']')
	return string(buf), nil
}

func (p Param) appendJSON(buf []byte) ([]byte, error) {
	switch p.kind {
	case kindNull:
		return append(buf, "null"...), nil
	case kindString:
		return appendQuoted(buf, p.str), nil
	case kindInt:
		return strconv.AppendInt(buf, p.inum, 10), nil
	case kindFloat:
		if math.IsNaN(p.num) || math.IsInf(p.num, 0) {
			return nil, &EncodeError{Reason: "non-finite number in parameter tree"}
		}
		return strconv.AppendFloat(buf, p.num, 'g', -1, 64), nil
	case kindBool:
		return strconv.AppendBool(buf, p.flag), nil
	case kindList:
		buf = append(buf, '[')
		for i, item := range p.items {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = item.appendJSON(buf)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	default:
		return nil, &EncodeError{Reason: "unknown parameter kind"}
	}
}

// appendQuoted writes a JSON string literal. encoding/json never
// fails for a string value, so the error is discarded.
func appendQuoted(buf []byte, s string) []byte {
	quoted, _ := json.Marshal(s)
	return append(buf, quoted...)
}
