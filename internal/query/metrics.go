package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queryDuration: время вызова исполнителя.
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataview_query_duration_seconds",
			Help:    "Query executor latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)
	// queriesTotal: число выполненных запросов.
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataview_queries_total",
			Help: "Total number of executed queries",
		},
		[]string{"source", "status"},
	)
)
