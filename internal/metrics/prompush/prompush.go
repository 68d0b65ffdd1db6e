// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts the generic metrics.Backend interface to Prometheus by using
// client_golang collectors and pushing collected metrics to a Pushgateway
// instance instead of exposing a scrape endpoint, since the process exits
// when the run completes. All Prometheus-specific dependencies live here so
// the rest of the project stays decoupled.
package prompush

import (
	"fmt"

	"cricetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // "cricetl_step_total"
	stepDuration  *prometheus.SummaryVec // "cricetl_step_duration_seconds"
	recordCounter *prometheus.CounterVec // "cricetl_records_total"
	chunkCounter  prometheus.Counter     // "cricetl_chunks_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName is the Pushgateway "job" name; gatewayURL is the server base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "cricetl"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cricetl_step_total",
			Help: "Total number of pipeline step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "cricetl_step_duration_seconds",
			Help:       "Duration of pipeline steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cricetl_records_total",
			Help: "Record-level counts per kind (documents_processed, rows_deliveries, etc.).",
		},
		[]string{"kind"},
	)
	chunkCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cricetl_chunks_total",
			Help: "Total number of bulk-insert chunks flushed for this run.",
		},
	)

	if err := reg.Register(stepCounter); err != nil {
		return nil, fmt.Errorf("prompush: register step counter: %w", err)
	}
	if err := reg.Register(stepDuration); err != nil {
		return nil, fmt.Errorf("prompush: register step summary: %w", err)
	}
	if err := reg.Register(recordCounter); err != nil {
		return nil, fmt.Errorf("prompush: register record counter: %w", err)
	}
	if err := reg.Register(chunkCounter); err != nil {
		return nil, fmt.Errorf("prompush: register chunk counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		chunkCounter:  chunkCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "cricetl_step_total":
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "cricetl_records_total":
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "cricetl_chunks_total":
		b.chunkCounter.Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "cricetl_step_duration_seconds" {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
