// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package notebook

import (
	"context"
	"fmt"

	"github.com/nlmkit/nlm/rpc"
)

// Client issues notebook and source operations over an RPC transport.
type Client struct {
	transport *rpc.Transport
	opts      rpc.CallOptions
}

// NewClient wraps transport. opts is applied to every call; per-call
// source paths are filled in by the operations themselves.
func NewClient(transport *rpc.Transport, opts rpc.CallOptions) *Client {
	return &Client{transport: transport, opts: opts}
}

func (c *Client) call(ctx context.Context, method rpc.Method, params []rpc.Param, sourcePath string) (any, error) {
	opts := c.opts
	if sourcePath != "" {
		opts.SourcePath = sourcePath
	}
	return c.transport.Call(ctx, method, params, opts)
}

func notebookPath(id string) string {
	return "/notebook/" + id
}

// List returns every notebook the account can see.
func (c *Client) List(ctx context.Context) ([]Notebook, error) {
	result, err := c.call(ctx, rpc.MethodListNotebooks, nil, "")
	if err != nil {
		return nil, err
	}
	entries, ok := listAt(result, 0)
	if !ok {
		// An account with no notebooks yields an empty or null tree.
		return nil, nil
	}
	notebooks := make([]Notebook, 0, len(entries))
	for _, entry := range entries {
		if nb := parseNotebook(entry); nb.ID != "" {
			notebooks = append(notebooks, nb)
		}
	}
	return notebooks, nil
}

// Create makes a new notebook with the given title.
func (c *Client) Create(ctx context.Context, title string) (Notebook, error) {
	result, err := c.call(ctx, rpc.MethodCreateNotebook, []rpc.Param{rpc.String(title)}, "")
	if err != nil {
		return Notebook{}, err
	}
	nb := parseNotebook(result)
	if nb.ID == "" {
		return Notebook{}, fmt.Errorf("notebook: create %q: response carried no notebook id", title)
	}
	return nb, nil
}

// Get returns one notebook and its sources.
func (c *Client) Get(ctx context.Context, id string) (Notebook, []Source, error) {
	params := []rpc.Param{
		rpc.String(id),
		rpc.Null(),
		rpc.List(rpc.Int(2)),
		rpc.Null(),
		rpc.Int(0),
	}
	result, err := c.call(ctx, rpc.MethodGetNotebook, params, notebookPath(id))
	if err != nil {
		return Notebook{}, nil, err
	}
	data, ok := at(result, 0)
	if !ok {
		return Notebook{}, nil, fmt.Errorf("notebook: get %s: response carried no notebook", id)
	}
	nb := parseNotebook(data)
	if nb.ID == "" {
		nb.ID = id
	}

	var sources []Source
	if entries, ok := listAt(data, 1); ok {
		sources = make([]Source, 0, len(entries))
		for _, entry := range entries {
			if src := parseSource(entry); src.ID != "" {
				sources = append(sources, src)
			}
		}
	}
	return nb, sources, nil
}

// Sources returns the sources of a notebook.
func (c *Client) Sources(ctx context.Context, notebookID string) ([]Source, error) {
	_, sources, err := c.Get(ctx, notebookID)
	return sources, err
}

// Rename changes a notebook's title.
func (c *Client) Rename(ctx context.Context, id, title string) error {
	params := []rpc.Param{
		rpc.String(id),
		rpc.String(title),
		rpc.Null(),
		rpc.Null(),
		rpc.Null(),
	}
	_, err := c.call(ctx, rpc.MethodRenameNotebook, params, notebookPath(id))
	return err
}

// Delete removes a notebook permanently.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.call(ctx, rpc.MethodDeleteNotebook, []rpc.Param{rpc.Strings(id)}, notebookPath(id))
	return err
}

// AddSourceURL attaches a web page to a notebook. The returned source
// is usually still processing; poll Sources until Ready.
func (c *Client) AddSourceURL(ctx context.Context, notebookID, url string) (Source, error) {
	payload := rpc.List(rpc.List(
		rpc.Null(), rpc.Null(), rpc.Strings(url),
		rpc.Null(), rpc.Null(), rpc.Null(), rpc.Null(), rpc.Null(),
	))
	return c.addSource(ctx, notebookID, payload, url)
}

// AddSourceText attaches pasted text under the given title.
func (c *Client) AddSourceText(ctx context.Context, notebookID, title, content string) (Source, error) {
	payload := rpc.List(rpc.List(
		rpc.Null(), rpc.Strings(title, content),
		rpc.Null(), rpc.Null(), rpc.Null(), rpc.Null(), rpc.Null(), rpc.Null(),
	))
	return c.addSource(ctx, notebookID, payload, title)
}

func (c *Client) addSource(ctx context.Context, notebookID string, payload rpc.Param, label string) (Source, error) {
	params := []rpc.Param{
		payload,
		rpc.String(notebookID),
		rpc.List(rpc.Int(2)),
		rpc.Null(),
		rpc.Null(),
	}
	result, err := c.call(ctx, rpc.MethodAddSource, params, notebookPath(notebookID))
	if err != nil {
		return Source{}, err
	}
	src := parseAddedSource(result)
	if src.ID == "" {
		return Source{}, fmt.Errorf("notebook: add source %q: response carried no source id", label)
	}
	return src, nil
}

// parseAddedSource locates the source tuple inside an add-source
// result. The nesting depth varies: [[[[id], title, ...]]] on most
// paths, one level less on others.
func parseAddedSource(result any) Source {
	if entry, ok := at(result, 0, 0); ok {
		if src := parseSource(entry); src.ID != "" {
			return src
		}
	}
	if entry, ok := at(result, 0); ok {
		if src := parseSource(entry); src.ID != "" {
			return src
		}
	}
	return parseSource(result)
}

// CheckSourceFreshness reports whether a URL-backed source still
// matches its upstream content. False means the source is stale and a
// refresh would pick up changes.
func (c *Client) CheckSourceFreshness(ctx context.Context, notebookID, sourceID string) (bool, error) {
	params := []rpc.Param{
		rpc.Null(),
		rpc.Strings(sourceID),
		rpc.List(rpc.Int(2)),
	}
	result, err := c.call(ctx, rpc.MethodCheckSourceFreshness, params, notebookPath(notebookID))
	if err != nil {
		return false, err
	}
	fresh, _ := result.(bool)
	return fresh, nil
}
