// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

// Method identifies one remote operation: an opaque short id the
// backend dispatches on, plus a human-readable name used in logs,
// errors, and metrics.
type Method struct {
	ID   string
	Name string
}

func (m Method) String() string {
	if m.Name == "" {
		return m.ID
	}
	return m.Name
}

// Known method ids of the NotebookLM backend. The ids are opaque and
// change without notice when the frontend is redeployed; the health
// check in cmd/nlm probes each one and reports drift.
var (
	MethodListNotebooks        = Method{ID: "wXbhsf", Name: "list-notebooks"}
	MethodCreateNotebook       = Method{ID: "CCqFvf", Name: "create-notebook"}
	MethodGetNotebook          = Method{ID: "rLM1Ne", Name: "get-notebook"}
	MethodRenameNotebook       = Method{ID: "s0tc2d", Name: "rename-notebook"}
	MethodDeleteNotebook       = Method{ID: "WWINqb", Name: "delete-notebook"}
	MethodAddSource            = Method{ID: "izAoDd", Name: "add-source"}
	MethodCheckSourceFreshness = Method{ID: "yR9Yof", Name: "check-source-freshness"}
	MethodSummarize            = Method{ID: "VfAZjd", Name: "summarize"}
	MethodCreateAudio          = Method{ID: "AHyHrd", Name: "create-audio"}
	MethodCreateVideo          = Method{ID: "R7cb6c", Name: "create-video"}
	MethodPollStudio           = Method{ID: "gArtLc", Name: "poll-studio"}
	MethodCreateArtifact       = Method{ID: "xpWGLf", Name: "create-artifact"}
	MethodActOnSources         = Method{ID: "yyryJe", Name: "act-on-sources"}
)

// KnownMethods lists every declared method, in a stable order, for
// the drift health check.
func KnownMethods() []Method {
	return []Method{
		MethodListNotebooks,
		MethodCreateNotebook,
		MethodGetNotebook,
		MethodRenameNotebook,
		MethodDeleteNotebook,
		MethodAddSource,
		MethodCheckSourceFreshness,
		MethodSummarize,
		MethodCreateAudio,
		MethodCreateVideo,
		MethodPollStudio,
		MethodCreateArtifact,
		MethodActOnSources,
	}
}
