// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A batch job has nothing to scrape, so collected metrics
// are pushed once at the end of the run instead of being exposed over HTTP.
// All Prometheus-specific dependencies live here, keeping the rest of the
// pipeline decoupled from the metric system.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"sparkify/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	pusher *push.Pusher

	stageCounter  *prometheus.CounterVec
	stageDuration *prometheus.SummaryVec
	rowCounter    *prometheus.CounterVec
	other         map[string]prometheus.Counter
	reg           *prometheus.Registry
}

// NewBackend constructs a Pushgateway backend. jobName becomes the
// Pushgateway "job" grouping key; gatewayURL is the server base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "dwh_etl"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwh_stage_total",
			Help: "Pipeline stage executions, partitioned by stage and status.",
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "dwh_stage_duration_seconds",
			Help:       "Pipeline stage duration in seconds, partitioned by stage and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"stage", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwh_rows_total",
			Help: "Rows written per relation.",
		},
		[]string{"relation"},
	)
	reg.MustRegister(stageCounter, stageDuration, rowCounter)

	return &Backend{
		pusher:        push.New(gatewayURL, jobName).Gatherer(reg),
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		rowCounter:    rowCounter,
		other:         map[string]prometheus.Counter{},
		reg:           reg,
	}, nil
}

// IncCounter implements metrics.Backend. Known counters map onto their
// labeled collectors; anything else lands in an unlabeled counter so no
// measurement is silently dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "dwh_stage_total":
		b.stageCounter.WithLabelValues(labels["stage"], labels["status"]).Add(delta)
	case "dwh_rows_total":
		b.rowCounter.WithLabelValues(labels["relation"]).Add(delta)
	default:
		b.plain(name).Add(delta)
	}
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, seconds float64, labels metrics.Labels) {
	if name == "dwh_stage_duration_seconds" {
		b.stageDuration.WithLabelValues(labels["stage"], labels["status"]).Observe(seconds)
	}
}

func (b *Backend) plain(name string) prometheus.Counter {
	if c, ok := b.other[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "Unclassified pipeline counter."})
	b.reg.MustRegister(c)
	b.other[name] = c
	return c
}

// Flush pushes all collected metrics to the Pushgateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
