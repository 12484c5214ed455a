// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package notebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nlmkit/nlm/rpc"
)

// fakeBackend answers batchexecute posts with canned serialized
// results keyed by method id, and records every request.
type fakeBackend struct {
	t       *testing.T
	results map[string]string

	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	methodID   string
	params     string
	sourcePath string
}

func (b *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(raw))

		var envelope [][][]any
		if err := json.Unmarshal([]byte(form.Get("f.req")), &envelope); err != nil {
			b.t.Errorf("malformed f.req: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		methodID, _ := envelope[0][0][0].(string)
		params, _ := envelope[0][0][1].(string)

		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			methodID:   methodID,
			params:     params,
			sourcePath: r.URL.Query().Get("source-path"),
		})
		b.mu.Unlock()

		serialized, ok := b.results[methodID]
		if !ok {
			b.t.Errorf("unexpected method id %s", methodID)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		frame, _ := json.Marshal([]any{[]any{"wrb.fr", methodID, serialized, nil, nil, nil, "generic"}})
		fmt.Fprintf(w, ")]}'\n\n%d\n%s\n", len(frame), frame)
	})
}

func (b *fakeBackend) lastRequest() recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		b.t.Fatal("no requests recorded")
	}
	return b.requests[len(b.requests)-1]
}

func newTestClient(t *testing.T, results map[string]string) (*Client, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{t: t, results: results}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	transport, err := rpc.New(rpc.Config{
		BaseURL:    server.URL,
		SourcePath: "/",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Credentials: rpc.Static(rpc.Credentials{
			CookieHeader: "SID=abc",
			AuthToken:    "token-1",
			SessionID:    "-1",
		}),
	})
	if err != nil {
		t.Fatalf("rpc.New: %v", err)
	}
	return NewClient(transport, rpc.CallOptions{}), backend
}

const listNotebooksResult = `[[
	["My First Notebook", null, "nb_001", "📓", null, [null, false, null, null, null, [1704067200, 0]]],
	["Shared Notebook", null, "nb_002", "📘", null, [null, true, null, null, null, [1704153600, 0]]]
]]`

func TestList(t *testing.T) {
	client, backend := newTestClient(t, map[string]string{"wXbhsf": listNotebooksResult})

	notebooks, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []Notebook{
		{ID: "nb_001", Title: "My First Notebook", CreatedAt: time.Unix(1704067200, 0).UTC()},
		{ID: "nb_002", Title: "Shared Notebook", CreatedAt: time.Unix(1704153600, 0).UTC(), Shared: true},
	}
	if !reflect.DeepEqual(notebooks, want) {
		t.Fatalf("List = %+v, want %+v", notebooks, want)
	}
	if got := backend.lastRequest().params; got != "[]" {
		t.Errorf("params = %s, want []", got)
	}
}

func TestListEmptyAccount(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{"wXbhsf": `[]`})
	notebooks, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notebooks) != 0 {
		t.Fatalf("List = %+v, want empty", notebooks)
	}
}

func TestCreate(t *testing.T) {
	result := `["My Notebook", [], "new_nb_id", "📓", null, [null, false, null, null, null, [1704067200, 0]]]`
	client, backend := newTestClient(t, map[string]string{"CCqFvf": result})

	nb, err := client.Create(context.Background(), "My Notebook")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if nb.ID != "new_nb_id" || nb.Title != "My Notebook" {
		t.Fatalf("Create = %+v", nb)
	}
	if got := backend.lastRequest().params; got != `["My Notebook"]` {
		t.Errorf("params = %s", got)
	}
}

func TestCreateWithoutID(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{"CCqFvf": `[]`})
	if _, err := client.Create(context.Background(), "X"); err == nil {
		t.Fatal("Create succeeded on id-free response")
	}
}

const getNotebookResult = `[[
	"Test Notebook",
	[
		[["src_1"], "Example Page", [null, null, [1704067200, 0], null, 6, null, null, ["https://example.com"]], [null, 2]],
		[["src_2"], "Pasted Notes", [null, null, [1704070800, 0], null, 5, null, null, null], [null, 1]]
	],
	"nb_123", "📘", null, [null, false, null, null, null, [1704067200, 0]]
]]`

func TestGet(t *testing.T) {
	client, backend := newTestClient(t, map[string]string{"rLM1Ne": getNotebookResult})

	nb, sources, err := client.Get(context.Background(), "nb_123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if nb.ID != "nb_123" || nb.Title != "Test Notebook" {
		t.Fatalf("notebook = %+v", nb)
	}
	wantSources := []Source{
		{
			ID: "src_1", Title: "Example Page", URL: "https://example.com",
			CreatedAt: time.Unix(1704067200, 0).UTC(), Status: SourceReady, TypeCode: 6,
		},
		{
			ID: "src_2", Title: "Pasted Notes",
			CreatedAt: time.Unix(1704070800, 0).UTC(), Status: SourceProcessing, TypeCode: 5,
		},
	}
	if !reflect.DeepEqual(sources, wantSources) {
		t.Fatalf("sources = %+v, want %+v", sources, wantSources)
	}

	request := backend.lastRequest()
	if request.sourcePath != "/notebook/nb_123" {
		t.Errorf("source-path = %q, want /notebook/nb_123", request.sourcePath)
	}
	if want := `["nb_123",null,[2],null,0]`; request.params != want {
		t.Errorf("params = %s, want %s", request.params, want)
	}
}

func TestRename(t *testing.T) {
	result := `["New Name", [], "nb_123", "📘", null, []]`
	client, backend := newTestClient(t, map[string]string{"s0tc2d": result})

	if err := client.Rename(context.Background(), "nb_123", "New Name"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if want := `["nb_123","New Name",null,null,null]`; backend.lastRequest().params != want {
		t.Errorf("params = %s, want %s", backend.lastRequest().params, want)
	}
}

func TestDelete(t *testing.T) {
	client, backend := newTestClient(t, map[string]string{"WWINqb": `[true]`})

	if err := client.Delete(context.Background(), "nb_123"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if want := `[["nb_123"]]`; backend.lastRequest().params != want {
		t.Errorf("params = %s, want %s", backend.lastRequest().params, want)
	}
}

func TestAddSourceURL(t *testing.T) {
	result := `[[[["src_new"], "Example", [null, null, null, null, null, null, null, ["https://example.com"]]]]]`
	client, backend := newTestClient(t, map[string]string{"izAoDd": result})

	src, err := client.AddSourceURL(context.Background(), "nb_123", "https://example.com")
	if err != nil {
		t.Fatalf("AddSourceURL: %v", err)
	}
	if src.ID != "src_new" || src.Title != "Example" || src.URL != "https://example.com" {
		t.Fatalf("source = %+v", src)
	}

	request := backend.lastRequest()
	want := `[[[null,null,["https://example.com"],null,null,null,null,null]],"nb_123",[2],null,null]`
	if request.params != want {
		t.Errorf("params = %s\nwant     %s", request.params, want)
	}
	if request.sourcePath != "/notebook/nb_123" {
		t.Errorf("source-path = %q", request.sourcePath)
	}
}

func TestAddSourceText(t *testing.T) {
	result := `[[[["src_text"], "Meeting Notes"]]]`
	client, backend := newTestClient(t, map[string]string{"izAoDd": result})

	src, err := client.AddSourceText(context.Background(), "nb_123", "Meeting Notes", "agenda...")
	if err != nil {
		t.Fatalf("AddSourceText: %v", err)
	}
	if src.ID != "src_text" {
		t.Fatalf("source = %+v", src)
	}
	want := `[[[null,["Meeting Notes","agenda..."],null,null,null,null,null,null]],"nb_123",[2],null,null]`
	if got := backend.lastRequest().params; got != want {
		t.Errorf("params = %s\nwant     %s", got, want)
	}
}

func TestCheckSourceFreshness(t *testing.T) {
	client, backend := newTestClient(t, map[string]string{"yR9Yof": `false`})

	fresh, err := client.CheckSourceFreshness(context.Background(), "nb_123", "src_1")
	if err != nil {
		t.Fatalf("CheckSourceFreshness: %v", err)
	}
	if fresh {
		t.Error("fresh = true, want false")
	}
	if want := `[null,["src_1"],[2]]`; backend.lastRequest().params != want {
		t.Errorf("params = %s, want %s", backend.lastRequest().params, want)
	}
}
