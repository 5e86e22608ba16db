package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	LLMTokensUsed     *prometheus.CounterVec
	LLMCost           *prometheus.CounterVec
	PricingErrors     *prometheus.CounterVec
	DocumentsUploaded *prometheus.CounterVec
	DocumentsDeleted  prometheus.Counter
	RetrievalResults  prometheus.Histogram
	RetrievalRefused  prometheus.Counter
	SummaryTasks      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LLMTokensUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_llm_tokens_used_total",
				Help: "LLM tokens used",
			},
			[]string{"model", "type"},
		),
		LLMCost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_llm_cost_usd_total",
				Help: "Charged LLM cost in USD",
			},
			[]string{"model"},
		),
		PricingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_pricing_errors_total",
				Help: "Usage that could not be priced",
			},
			[]string{"model"},
		),
		DocumentsUploaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_documents_uploaded_total",
				Help: "Uploaded files by outcome",
			},
			[]string{"status"},
		),
		DocumentsDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "foresight_documents_deleted_total",
				Help: "Deleted documents",
			},
		),
		RetrievalResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "foresight_retrieval_results",
				Help:    "Matches returned per retrieval",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		RetrievalRefused: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "foresight_retrieval_refused_total",
				Help: "Retrievals short-circuited for lack of matching documents",
			},
		),
		SummaryTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foresight_summary_tasks_total",
				Help: "Summary tasks by status",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LLMTokensUsed,
		m.LLMCost,
		m.PricingErrors,
		m.DocumentsUploaded,
		m.DocumentsDeleted,
		m.RetrievalResults,
		m.RetrievalRefused,
		m.SummaryTasks,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUsage records tokens and the charged amount for one call.
func (m *Metrics) ObserveUsage(model string, promptTokens, completionTokens int, cost float64) {
	m.LLMTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	m.LLMTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	m.LLMCost.WithLabelValues(model).Add(cost)
}

func (m *Metrics) ObservePricingError(model string) {
	m.PricingErrors.WithLabelValues(model).Inc()
}

func (m *Metrics) ObserveUpload(status string) {
	m.DocumentsUploaded.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveDeleted(n int) {
	m.DocumentsDeleted.Add(float64(n))
}

func (m *Metrics) ObserveRetrieval(matches int) {
	m.RetrievalResults.Observe(float64(matches))
}

func (m *Metrics) ObserveRetrievalRefused() {
	m.RetrievalRefused.Inc()
}

func (m *Metrics) ObserveSummary(status string) {
	m.SummaryTasks.WithLabelValues(status).Inc()
}
