package moya

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the dispatch pipeline.
// A nil *MetricsCollector is valid and records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	dispatchesTotal *prometheus.CounterVec
	coalescedTotal  *prometheus.CounterVec
	cancelledTotal  *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "moya_requests_total",
				Help: "Total number of requests delivered to callers",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moya_request_duration_seconds",
				Help:    "Time from request to delivery in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "moya_requests_in_flight",
				Help: "Number of underlying calls currently executing",
			},
			[]string{"method", "endpoint"},
		),
		dispatchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "moya_dispatches_total",
				Help: "Total number of underlying executions by mode (network, immediate, delayed)",
			},
			[]string{"mode", "method", "endpoint"},
		),
		coalescedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "moya_coalesced_total",
				Help: "Total number of requests joined to an in-flight call",
			},
			[]string{"method", "endpoint"},
		),
		cancelledTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "moya_cancelled_total",
				Help: "Total number of requests cancelled before delivery",
			},
			[]string{"method", "endpoint"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "moya_errors_total",
				Help: "Total number of failed outcomes by error type",
			},
			[]string{"type", "method", "endpoint"},
		),
		buildInfo: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "moya_build_info",
				Help: "Build metadata of the moya library; always 1",
			},
			[]string{"version", "commit", "go_version"},
		),
		registry: registry,
	}

	info := GetBuildInfo()
	mc.buildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordDispatchStart increments the in-flight gauge and the dispatch counter.
func (mc *MetricsCollector) RecordDispatchStart(mode, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.dispatchesTotal.WithLabelValues(mode, method, endpoint).Inc()
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordDispatchEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordDispatchEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordCoalesced increments the coalesced counter.
func (mc *MetricsCollector) RecordCoalesced(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.coalescedTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordCancelled increments the cancellation counter.
func (mc *MetricsCollector) RecordCancelled(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cancelledTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry exposes the registerer the collector was built with.
func (mc *MetricsCollector) GetRegistry() prometheus.Registerer {
	return mc.registry
}
