// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package notebook

import "time"

// Notebook is one notebook as the backend reports it. Fields beyond
// ID may be zero when the response omits them.
type Notebook struct {
	ID        string
	Title     string
	CreatedAt time.Time
	// Shared is set when the notebook is owned by someone else and
	// shared with this account.
	Shared bool
}

// Source processing status codes as the backend reports them.
const (
	SourceProcessing = 1
	SourceReady      = 2
	SourceError      = 3
)

// Source is one source attached to a notebook.
type Source struct {
	ID        string
	Title     string
	URL       string
	CreatedAt time.Time
	// Status is one of the Source* status codes. Zero when the
	// response carried no status, which in practice means ready.
	Status int
	// TypeCode is the backend's numeric source kind (web page, pasted
	// text, youtube, ...). Opaque here; zero when absent.
	TypeCode int
}

// Ready reports whether the source has finished processing.
func (s Source) Ready() bool {
	return s.Status == SourceReady || s.Status == 0
}

// parseNotebook reads a positional notebook tuple:
// [title, sources, id, emoji, _, [_, shared, _, _, _, [seconds, nanos]]].
func parseNotebook(data any) Notebook {
	var nb Notebook
	nb.Title, _ = stringAt(data, 0)
	nb.ID, _ = stringAt(data, 2)
	if created, ok := timeAt(data, 5, 5); ok {
		nb.CreatedAt = created
	}
	if shared, ok := at(data, 5, 1); ok {
		flag, isBool := shared.(bool)
		nb.Shared = isBool && flag
	}
	return nb
}

// parseSource reads a positional source tuple:
// [[id], title, [_, _, [seconds, nanos], _, type, _, _, [url]], [_, status]].
func parseSource(data any) Source {
	var src Source
	if id, ok := stringAt(data, 0, 0); ok {
		src.ID = id
	} else if id, ok := stringAt(data, 0); ok {
		src.ID = id
	}
	src.Title, _ = stringAt(data, 1)
	src.URL, _ = stringAt(data, 2, 7, 0)
	if created, ok := timeAt(data, 2, 2); ok {
		src.CreatedAt = created
	}
	if status, ok := numberAt(data, 3, 1); ok {
		src.Status = int(status)
	}
	if typeCode, ok := numberAt(data, 2, 4); ok {
		src.TypeCode = int(typeCode)
	}
	return src
}
