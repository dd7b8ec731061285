// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest results.
const (
	ResultSuccess     = "success"
	ResultInvalid     = "invalid"
	ResultNodeFailure = "node_failure"
	ResultEdgeFailure = "edge_failure"
)

// Poll outcomes.
const (
	PollOK          = "ok"
	PollFetchFailed = "fetch_failed"
)

// Query outcomes.
const (
	QueryHit               = "hit"
	QueryFilled            = "filled"
	QueryNotFound          = "not_found"
	QuerySourceUnavailable = "source_unavailable"
	QueryStoreError        = "store_error"
)

var (
	IngestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discgraph_ingests_total",
		Help: "Total number of record ingests by result",
	}, []string{"result"})

	RecordsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discgraph_records_skipped_total",
		Help: "Total number of ledger records skipped by reason",
	}, []string{"reason"})

	PollPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discgraph_poll_passes_total",
		Help: "Total number of reconciler passes by outcome",
	}, []string{"outcome"})

	ActivePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discgraph_active_pollers",
		Help: "Number of programs currently being polled",
	})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discgraph_queries_total",
		Help: "Total number of discriminator queries by outcome",
	}, []string{"outcome"})

	LedgerFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discgraph_ledger_fetch_duration_seconds",
		Help:    "Time taken to list a program's accounts from the ledger",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)
