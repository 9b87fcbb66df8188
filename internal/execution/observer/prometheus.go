package observer

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBucketsMs = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// PrometheusRecorder exports metrics on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	compileDuration   *prometheus.HistogramVec
	testsTotal        *prometheus.CounterVec
	testDuration      *prometheus.HistogramVec
	memoryUsage       *prometheus.HistogramVec
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	queueDepth        prometheus.Gauge
	activeExecutions  prometheus.Gauge
	categoryActive    *prometheus.GaugeVec
	categoryMemory    *prometheus.GaugeVec
	rejectionsTotal   *prometheus.CounterVec
}

// NewPrometheusRecorder registers every collector under namespace.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		compileDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_ms",
			Help:      "Compilation duration in milliseconds",
			Buckets:   durationBucketsMs,
		}, []string{"language", "ok"}),
		testsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_cases_total",
			Help:      "Test cases run, by verdict",
		}, []string{"category", "language", "verdict"}),
		testDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_case_duration_ms",
			Help:      "Per test case run duration in milliseconds",
			Buckets:   durationBucketsMs,
		}, []string{"category"}),
		memoryUsage: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_usage_kb",
			Help:      "Peak memory per test case in KB",
			Buckets:   []float64{1024, 4096, 16384, 65536, 131072, 262144, 524288},
		}, []string{"language"}),
		executionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executions finished, by terminal status",
		}, []string{"category", "status"}),
		executionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_ms",
			Help:      "End-to-end execution duration in milliseconds",
			Buckets:   durationBucketsMs,
		}, []string{"category"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Requests waiting in the queue",
		}),
		activeExecutions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_executions",
			Help:      "Requests currently executing",
		}),
		categoryActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "category_active_executions",
			Help:      "Requests currently executing per category",
		}, []string{"category"}),
		categoryMemory: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "category_reserved_memory_mb",
			Help:      "Memory reserved by running requests per category",
		}, []string{"category"}),
		rejectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Requests rejected before queueing",
		}, []string{"reason"}),
	}
}

// Handler serves the registry in the exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveCompile(_ context.Context, language string, ok bool, d time.Duration) {
	p.compileDuration.WithLabelValues(language, strconv.FormatBool(ok)).Observe(ms(d))
}

func (p *PrometheusRecorder) ObserveTest(_ context.Context, category, language, verdict string, d time.Duration, memoryKB int64) {
	p.testsTotal.WithLabelValues(category, language, verdict).Inc()
	p.testDuration.WithLabelValues(category).Observe(ms(d))
	if memoryKB > 0 {
		p.memoryUsage.WithLabelValues(language).Observe(float64(memoryKB))
	}
}

func (p *PrometheusRecorder) ObserveExecution(_ context.Context, category, status string, d time.Duration) {
	p.executionsTotal.WithLabelValues(category, status).Inc()
	p.executionDuration.WithLabelValues(category).Observe(ms(d))
}

func (p *PrometheusRecorder) ObserveQueue(depth, active int) {
	p.queueDepth.Set(float64(depth))
	p.activeExecutions.Set(float64(active))
}

func (p *PrometheusRecorder) ObserveCategory(category string, active, memoryMB int) {
	p.categoryActive.WithLabelValues(category).Set(float64(active))
	p.categoryMemory.WithLabelValues(category).Set(float64(memoryMB))
}

func (p *PrometheusRecorder) ObserveRejection(reason string) {
	p.rejectionsTotal.WithLabelValues(reason).Inc()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
