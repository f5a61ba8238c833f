package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the loop's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs              *prometheus.CounterVec
	verdicts          *prometheus.CounterVec
	toolCalls         *prometheus.CounterVec
	retries           prometheus.Counter
	generationSeconds prometheus.Histogram
}

// NewMetrics registers the loop collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lexiguard_loop_runs_total",
			Help: "Grounding loop runs by outcome",
		}, []string{"outcome"}),
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lexiguard_loop_grader_verdicts_total",
			Help: "Grounding grader verdicts",
		}, []string{"verdict"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lexiguard_loop_tool_calls_total",
			Help: "Tool calls by tool and status",
		}, []string{"tool", "status"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "lexiguard_loop_retries_total",
			Help: "Answers rejected by the grader and regenerated",
		}),
		generationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexiguard_loop_generation_duration_seconds",
			Help:    "Generation step latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
	}
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeVerdict(verdict string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) observeToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	status := "ok"
	if isError {
		status = "error"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) observeGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.generationSeconds.Observe(d.Seconds())
}
