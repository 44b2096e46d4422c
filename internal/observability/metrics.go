// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	RunErrors      *prometheus.CounterVec
	BarsProcessed  prometheus.Counter
	FillsTotal     *prometheus.CounterVec
	OrdersRejected prometheus.Counter
	TradesClosed   *prometheus.CounterVec

	// Sweep metrics
	SweepsTotal    *prometheus.CounterVec
	SweepDuration  prometheus.Histogram
	SweepRunsDone  prometheus.Counter
	SweepsInFlight prometheus.Gauge

	// Ingestion metrics
	BarsIngested    *prometheus.CounterVec
	IngestionErrors *prometheus.CounterVec

	// Server metrics
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	WSClients         prometheus.Gauge
	TraceRowsStreamed prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	ReportsGenerated  prometheus.Counter
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "crossover_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Backtest metrics
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds, persistence included",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		RunErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_errors_total",
			Help:      "Total number of failed runs by error kind",
		}, []string{"kind"}),
		BarsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bars_processed_total",
			Help:      "Total number of bars replayed through the simulator",
		}),
		FillsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "fills_total",
			Help:      "Total number of settled orders by side",
		}, []string{"side"}),
		OrdersRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "orders_rejected_total",
			Help:      "Total number of entry orders rejected at settlement",
		}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_closed_total",
			Help:      "Total number of closed round-trips by outcome",
		}, []string{"outcome"}),

		// Sweep metrics
		SweepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "sweeps_total",
			Help:      "Total number of parameter sweeps by status",
		}, []string{"status"}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Parameter sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		SweepRunsDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_completed_total",
			Help:      "Total number of sweep runs completed",
		}),
		SweepsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "in_flight",
			Help:      "Number of sweeps currently running",
		}),

		// Ingestion metrics
		BarsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_ingested_total",
			Help:      "Total number of bars stored by instrument",
		}, []string{"instrument"}),
		IngestionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by type",
		}, []string{"error_type"}),

		// Server metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "ws_clients",
			Help:      "Number of connected trace stream clients",
		}),
		TraceRowsStreamed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "trace_rows_streamed_total",
			Help:      "Total number of trace rows written to WebSocket clients",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a finished backtest run.
func (m *Metrics) RecordRun(status string, durationSeconds float64) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunError records a failed run by error kind.
func (m *Metrics) RecordRunError(kind string) {
	m.RunErrors.WithLabelValues(kind).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordSweep records a finished sweep.
func (m *Metrics) RecordSweep(status string, durationSeconds float64) {
	m.SweepsTotal.WithLabelValues(status).Inc()
	m.SweepDuration.Observe(durationSeconds)
}

// RecordBarsIngested increments the bars ingested counter.
func RecordBarsIngested(instrument string, n int) {
	DefaultMetrics.BarsIngested.WithLabelValues(instrument).Add(float64(n))
}

// RecordIngestionError records an ingestion error.
func RecordIngestionError(errorType string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(errorType).Inc()
}

// RecordHTTPRequest records one served HTTP request on the default metrics.
func RecordHTTPRequest(route string, code int, seconds float64) {
	DefaultMetrics.RecordHTTPRequest(route, code, seconds)
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, code int, seconds float64) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}
