// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus gauges/counters covering a fuzz round in flight.
var (
	CallsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "madkv_fuzzer_calls_issued_total",
		Help: "KV calls issued to client subprocesses, by operation type.",
	}, []string{"op"})

	RespsHarvested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madkv_fuzzer_resps_harvested_total",
		Help: "KV responses harvested from client subprocesses.",
	})

	Violations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madkv_fuzzer_violations_total",
		Help: "Consistency violations detected by the history checker.",
	})

	CheckQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "madkv_fuzzer_check_queue_depth",
		Help: "Responses enqueued in the history checker awaiting judgement.",
	})
)

// ServeMetrics exposes the registry over HTTP at /metrics. It blocks, so
// callers run it in a goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
