package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	CourierCalls     *prometheus.CounterVec
	CourierDuration  *prometheus.HistogramVec
	RateCalculations *prometheus.CounterVec
	LockerSelections *prometheus.CounterVec
	LockerCache      *prometheus.CounterVec
}

// NewMetrics creates Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelgate_requests_total",
				Help: "Total number of requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parcelgate_request_duration_seconds",
				Help:    "Request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CourierCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelgate_courier_calls_total",
				Help: "Total Europarcel API calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		CourierDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parcelgate_courier_call_duration_seconds",
				Help:    "Europarcel API call duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		RateCalculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelgate_rate_calculations_total",
				Help: "Rate calculation passes by instance and outcome",
			},
			[]string{"instance", "outcome"},
		),
		LockerSelections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelgate_locker_selections_total",
				Help: "Recorded locker selections by instance",
			},
			[]string{"instance"},
		),
		LockerCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelgate_locker_cache_lookups_total",
				Help: "Locker cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration)
}

// ObserveCourierCall records the outcome of a Europarcel API call.
func (m *Metrics) ObserveCourierCall(operation, status string, seconds float64) {
	m.CourierCalls.WithLabelValues(operation, status).Inc()
	m.CourierDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveLockerCache records a locker cache lookup.
func (m *Metrics) ObserveLockerCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.LockerCache.WithLabelValues(result).Inc()
}

// RecordRateCalculation records one calculation pass.
func (m *Metrics) RecordRateCalculation(instanceID int, outcome string) {
	m.RateCalculations.WithLabelValues(strconv.Itoa(instanceID), outcome).Inc()
}

// RecordLockerSelection records a stored locker selection.
func (m *Metrics) RecordLockerSelection(instanceID int) {
	m.LockerSelections.WithLabelValues(strconv.Itoa(instanceID)).Inc()
}
