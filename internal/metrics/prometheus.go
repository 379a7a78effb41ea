package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "halluc_completion_duration_seconds",
			Help:    "Mitigation agent query duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	CompletionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluc_completion_total",
			Help: "Total mitigation agent queries",
		},
		[]string{"strategy", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluc_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "strategy"},
	)

	RAGFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "halluc_rag_fallback_total",
			Help: "RAG queries that fell back to baseline for lack of documents",
		},
	)

	TestsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluc_tests_logged_total",
			Help: "Tests written to the experiment store",
		},
		[]string{"strategy", "hallucination"},
	)

	RetrievalResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "halluc_retrieval_results_count",
			Help:    "Number of knowledge base passages per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	KnowledgeDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "halluc_knowledge_documents",
			Help: "Documents in the knowledge base collection",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluc_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluc_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "halluc_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CompletionDuration,
			CompletionTotal,
			LLMTokensUsed,
			RAGFallbacks,
			TestsLogged,
			RetrievalResultsCount,
			KnowledgeDocuments,
			CacheHits,
			CacheMisses,
			RateLimited,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
