// Package metrics exposes portal counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"safetyportal/internal/ports"
)

const namespace = "safetyportal"

// Prometheus holds every collector the portal registers.
type Prometheus struct {
	Registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	sagaFailures    *prometheus.CounterVec
	imageCache      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDurationSec *prometheus.HistogramVec
}

var _ ports.Metrics = (*Prometheus)(nil)

// NewPrometheus registers collectors on a fresh registry, plus the Go and
// process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Prometheus{
		Registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Report submissions by outcome.",
		}, []string{"outcome"}),
		sagaFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_step_failures_total",
			Help:      "Failed submission steps by step name.",
		}, []string{"step"}),
		imageCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pdf",
			Name:      "image_cache_lookups_total",
			Help:      "PDF image cache lookups by result.",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDurationSec: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (p *Prometheus) SubmissionFinished(outcome string) {
	p.submissions.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) SagaStepFailed(step string) {
	p.sagaFailures.WithLabelValues(step).Inc()
}

func (p *Prometheus) ImageCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.imageCache.WithLabelValues(result).Inc()
}

// ObserveHTTP records one finished request.
func (p *Prometheus) ObserveHTTP(route string, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.httpDurationSec.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
