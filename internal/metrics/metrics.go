// Package metrics holds the Prometheus collectors for ingestion, embedding
// calls and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EmbeddingBuckets covers local model latencies from 10ms to 30s.
var EmbeddingBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

var (
	// ChunksTotal counts ingested chunks by outcome (stored, embed_failed, append_failed).
	ChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_rag_chunks_total",
			Help: "Chunks processed during ingestion",
		},
		[]string{"status"},
	)

	// EmbeddingRequestsTotal counts embedding calls by provider and outcome.
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_rag_embedding_requests_total",
			Help: "Embedding requests",
		},
		[]string{"provider", "status"},
	)

	EmbeddingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "page_rag_embedding_duration_seconds",
			Help:    "Embedding request latency",
			Buckets: EmbeddingBuckets,
		},
		[]string{"provider"},
	)

	// SearchesTotal counts nearest-neighbor searches by outcome (hit, empty, error).
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_rag_searches_total",
			Help: "Top match searches",
		},
		[]string{"status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_rag_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "status"},
	)
)

const (
	StatusStored       = "stored"
	StatusEmbedFailed  = "embed_failed"
	StatusAppendFailed = "append_failed"

	StatusOK    = "ok"
	StatusError = "error"

	StatusHit   = "hit"
	StatusEmpty = "empty"
)

func init() {
	prometheus.MustRegister(
		ChunksTotal,
		EmbeddingRequestsTotal,
		EmbeddingDuration,
		SearchesTotal,
		RequestsTotal,
	)
}

// ObserveEmbedding records one embedding call that started at start.
func ObserveEmbedding(provider string, start time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	EmbeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	EmbeddingDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// Middleware counts requests by method and status class.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status/100)+"xx").Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
