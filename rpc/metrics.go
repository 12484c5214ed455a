// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport's instrumentation. Construct with
// NewMetrics; a nil *Metrics inside Transport is replaced by one
// backed by a throwaway registry so call sites never nil-check.
type Metrics struct {
	calls          *prometheus.CounterVec
	retries        *prometheus.CounterVec
	refreshes      prometheus.Counter
	unknownMethods prometheus.Counter
}

// NewMetrics registers the transport metrics on reg. A nil reg uses a
// private registry, which keeps the counters live but unexported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlm",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlm",
			Subsystem: "rpc",
			Name:      "retries_total",
			Help:      "Retried sends by method and trigger.",
		}, []string{"method", "trigger"}),
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nlm",
			Subsystem: "rpc",
			Name:      "credential_refreshes_total",
			Help:      "Credential refreshes triggered by auth rejections.",
		}),
		unknownMethods: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nlm",
			Subsystem: "rpc",
			Name:      "unknown_method_ids_total",
			Help:      "Sightings of unrequested method ids in responses.",
		}),
	}
}

// outcome labels for the calls counter.
const (
	outcomeOK          = "ok"
	outcomeEncode      = "encode_error"
	outcomeDecode      = "decode_error"
	outcomeServer      = "server_error"
	outcomeRateLimit   = "rate_limited"
	outcomeAuth        = "auth_error"
	outcomeTransport   = "transport_error"
	outcomeUnknownMeth = "unknown_method"
	outcomeCanceled    = "canceled"
)
