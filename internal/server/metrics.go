package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doclens_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Extraction metrics
	extractRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclens_extract_requests_total",
			Help: "Total number of extraction requests",
		},
		[]string{"mode", "status"}, // mode: full, simple, stream
	)

	extractProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doclens_extract_processing_duration_seconds",
			Help:    "End-to-end extraction duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"mode"},
	)

	extractTextLength = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doclens_extract_text_length",
			Help:    "Length of extracted text",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"mode"},
	)

	extractPagesTotal = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doclens_extract_pages",
			Help:    "Number of pages per processed document",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		},
		[]string{"mode"},
	)

	// Asset externalization metrics
	assetsExternalizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doclens_assets_externalized_total",
			Help: "Total number of binary assets written to storage",
		},
	)

	assetBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doclens_asset_bytes_total",
			Help: "Total raw bytes of binary assets processed during externalization",
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "doclens_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclens_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
