// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package notebook

import "time"

// at walks an index path through nested []any values. Any miss
// (non-list node, index out of range) returns false.
func at(value any, path ...int) (any, bool) {
	for _, index := range path {
		list, ok := value.([]any)
		if !ok || index < 0 || index >= len(list) {
			return nil, false
		}
		value = list[index]
	}
	return value, true
}

func stringAt(value any, path ...int) (string, bool) {
	node, ok := at(value, path...)
	if !ok {
		return "", false
	}
	s, ok := node.(string)
	return s, ok
}

func listAt(value any, path ...int) ([]any, bool) {
	node, ok := at(value, path...)
	if !ok {
		return nil, false
	}
	list, ok := node.([]any)
	return list, ok
}

// numberAt reads a numeric leaf. Decoded JSON numbers arrive as
// float64.
func numberAt(value any, path ...int) (float64, bool) {
	node, ok := at(value, path...)
	if !ok {
		return 0, false
	}
	f, ok := node.(float64)
	return f, ok
}

// timeAt reads a [seconds, nanoseconds] pair at the given path.
func timeAt(value any, path ...int) (time.Time, bool) {
	seconds, ok := numberAt(value, append(path, 0)...)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(seconds), 0).UTC(), true
}
