// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nlmkit/nlm/lib/clock"
	"github.com/nlmkit/nlm/notebook"
	"github.com/nlmkit/nlm/rpc"
)

// probeStatus classifies one health probe.
type probeStatus string

const (
	probeOK      probeStatus = "OK"
	probeDrift   probeStatus = "DRIFT"
	probeError   probeStatus = "ERROR"
	probeSkipped probeStatus = "SKIP"
)

type probeResult struct {
	method rpc.Method
	status probeStatus
	detail string
}

// healthCheck probes every known method id against the live backend
// and reports which ones the backend still recognizes. The ids are
// opaque and rotate when the frontend is redeployed; a DRIFT result
// means the id table needs updating from fresh browser traffic.
type healthCheck struct {
	transport *rpc.Transport
	books     *notebook.Client
	clk       clock.Clock
	out       io.Writer

	// delay paces probes so a full sweep does not trip the backend's
	// rate limiting.
	delay time.Duration
}

// run sweeps the method table. notebookID scopes the read probes; when
// empty and full is set, a scratch notebook is created and deleted
// around the sweep. Returns true when no probe reported DRIFT or ERROR.
func (h *healthCheck) run(ctx context.Context, notebookID string, full bool) (bool, error) {
	var results []probeResult
	record := func(r probeResult) {
		results = append(results, r)
		detail := ""
		if r.detail != "" {
			detail = "  " + r.detail
		}
		fmt.Fprintf(h.out, "%-6s %-24s%s\n", r.status, r.method.Name, detail)
	}

	record(h.probe(ctx, rpc.MethodListNotebooks, nil))

	scratch := false
	if full && notebookID == "" {
		result, id := h.probeCreate(ctx)
		record(result)
		if id != "" {
			notebookID = id
			scratch = true
			defer func() {
				// Cleanup runs even when the sweep context is done.
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := h.books.Delete(cleanupCtx, id); err != nil {
					fmt.Fprintf(h.out, "warning: scratch notebook %s not deleted: %v\n", id, err)
				}
			}()
		}
	} else {
		record(skipped(rpc.MethodCreateNotebook, "creates a notebook; pass --full"))
	}

	if notebookID == "" {
		for _, method := range []rpc.Method{
			rpc.MethodGetNotebook,
			rpc.MethodRenameNotebook,
			rpc.MethodAddSource,
			rpc.MethodCheckSourceFreshness,
			rpc.MethodSummarize,
			rpc.MethodPollStudio,
			rpc.MethodActOnSources,
			rpc.MethodDeleteNotebook,
		} {
			record(skipped(method, "needs a notebook; pass --notebook or --full"))
		}
		for _, r := range skipGenerators() {
			record(r)
		}
		return h.summarize(results), nil
	}

	record(h.probe(ctx, rpc.MethodGetNotebook, []rpc.Param{rpc.String(notebookID)}))

	if scratch {
		record(h.probe(ctx, rpc.MethodRenameNotebook, []rpc.Param{
			rpc.String(notebookID), rpc.String("rpc health check"),
			rpc.Null(), rpc.Null(), rpc.Null(),
		}))
		result, _ := h.probeAddSource(ctx, notebookID)
		record(result)
	} else {
		record(skipped(rpc.MethodRenameNotebook, "mutates the notebook; pass --full"))
		record(skipped(rpc.MethodAddSource, "mutates the notebook; pass --full"))
	}

	// Placeholder ids are fine here: the backend rejects them inside a
	// recognized frame, which still proves the method id is live.
	record(h.probe(ctx, rpc.MethodCheckSourceFreshness, []rpc.Param{
		rpc.Strings(notebookID), rpc.List(rpc.Strings("placeholder")),
	}))
	record(h.probe(ctx, rpc.MethodSummarize, []rpc.Param{
		rpc.Strings(notebookID), rpc.List(), rpc.String("Summarize the content"),
	}))
	record(h.probe(ctx, rpc.MethodPollStudio, []rpc.Param{rpc.Strings(notebookID)}))
	record(h.probe(ctx, rpc.MethodActOnSources, []rpc.Param{
		rpc.Strings(notebookID), rpc.List(), rpc.Int(5),
	}))
	for _, r := range skipGenerators() {
		record(r)
	}

	if scratch {
		record(h.probeDelete(ctx, notebookID))
	} else {
		record(skipped(rpc.MethodDeleteNotebook, "deletes a notebook; pass --full"))
	}
	return h.summarize(results), nil
}

// probe sends one minimal call and classifies the outcome. An in-frame
// server rejection still counts as OK: the backend dispatched on the
// id, which is all the probe asks.
func (h *healthCheck) probe(ctx context.Context, method rpc.Method, params []rpc.Param) probeResult {
	h.pause(ctx)
	_, err := h.transport.Call(ctx, method, params, rpc.CallOptions{})
	return classify(method, err)
}

func classify(method rpc.Method, err error) probeResult {
	if err == nil {
		return probeResult{method: method, status: probeOK}
	}
	var serverErr *rpc.ServerError
	if errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusOK {
		return probeResult{
			method: method,
			status: probeOK,
			detail: fmt.Sprintf("id recognized, placeholder params rejected (code %s)", serverErr.Code),
		}
	}
	var unknownErr *rpc.UnknownMethodError
	if errors.As(err, &unknownErr) {
		detail := "id not in response"
		if len(unknownErr.Observed) > 0 {
			detail = "response carried " + strings.Join(unknownErr.Observed, ", ")
		}
		return probeResult{method: method, status: probeDrift, detail: detail}
	}
	return probeResult{method: method, status: probeError, detail: err.Error()}
}

// probeCreate makes the scratch notebook for full mode and returns its
// id alongside the probe result.
func (h *healthCheck) probeCreate(ctx context.Context) (probeResult, string) {
	h.pause(ctx)
	nb, err := h.books.Create(ctx, "rpc health check (safe to delete)")
	if err != nil {
		return classify(rpc.MethodCreateNotebook, err), ""
	}
	return probeResult{method: rpc.MethodCreateNotebook, status: probeOK}, nb.ID
}

func (h *healthCheck) probeAddSource(ctx context.Context, notebookID string) (probeResult, string) {
	h.pause(ctx)
	src, err := h.books.AddSourceText(ctx, notebookID, "health check", "probe content")
	if err != nil {
		return classify(rpc.MethodAddSource, err), ""
	}
	return probeResult{method: rpc.MethodAddSource, status: probeOK}, src.ID
}

func (h *healthCheck) probeDelete(ctx context.Context, notebookID string) probeResult {
	h.pause(ctx)
	return classify(rpc.MethodDeleteNotebook, h.books.Delete(ctx, notebookID))
}

// skipGenerators covers the studio generation methods. They run for
// minutes and consume account quota, so the health check never
// exercises them, full mode included.
func skipGenerators() []probeResult {
	return []probeResult{
		skipped(rpc.MethodCreateAudio, "generation uses quota"),
		skipped(rpc.MethodCreateVideo, "generation uses quota"),
		skipped(rpc.MethodCreateArtifact, "generation uses quota"),
	}
}

func skipped(method rpc.Method, reason string) probeResult {
	return probeResult{method: method, status: probeSkipped, detail: reason}
}

func (h *healthCheck) summarize(results []probeResult) bool {
	counts := map[probeStatus]int{}
	for _, r := range results {
		counts[r.status]++
	}
	fmt.Fprintf(h.out, "\n%d ok, %d drifted, %d errors, %d skipped\n",
		counts[probeOK], counts[probeDrift], counts[probeError], counts[probeSkipped])
	return counts[probeDrift] == 0 && counts[probeError] == 0
}

// pause spaces probes out. The transport's limiter already paces
// steady-state traffic; this keeps a sweep gentle even with pacing
// disabled in config.
func (h *healthCheck) pause(ctx context.Context) {
	if h.delay <= 0 {
		return
	}
	select {
	case <-h.clk.After(h.delay):
	case <-ctx.Done():
	}
}
