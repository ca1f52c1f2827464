package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveStreams     prometheus.Gauge
	ChatRequests      *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	SweepEvictions    prometheus.Counter
	FirstTokenLatency prometheus.Histogram
	StageLatency      *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of chat responses currently streaming.",
		}),
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by surface and outcome.",
		}, []string{"surface", "outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Model provider errors by code.",
		}, []string{"code"}),
		SweepEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_evictions_total",
			Help:      "Idle sessions evicted by the reaper.",
		}),
		FirstTokenLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_token_latency_ms",
			Help:      "Latency to first streamed assistant token in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000, 4000},
		}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_stage_latency_ms",
			Help:      "Per-stage chat turn latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"stage"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// StageRecorder bridges per-turn latency observations into both the
// Prometheus histograms and the in-process stage window.
type StageRecorder struct {
	metrics *Metrics
	window  *StageWindow
}

func NewStageRecorder(metrics *Metrics, window *StageWindow) *StageRecorder {
	return &StageRecorder{metrics: metrics, window: window}
}

func (r *StageRecorder) ObserveStage(stage string, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	if r.metrics != nil {
		r.metrics.StageLatency.WithLabelValues(stage).Observe(ms)
		if stage == "first_token" {
			r.metrics.FirstTokenLatency.Observe(ms)
		}
	}
	if r.window != nil {
		r.window.Observe(stage, ms)
	}
}
