// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the load pipeline.
//
// It mirrors the warehouse abstraction pattern: a narrow Backend interface,
// a global pluggable backend defaulting to a no-op implementation, and
// concrete metric systems isolated in subpackages. Stages call the helpers
// unconditionally; with no backend configured they cost nothing.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a duration-style value in seconds.
	ObserveDuration(name string, seconds float64, labels Labels)
	// Flush pushes collected metrics if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveDuration(string, float64, Labels)  {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the current one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStage records one pipeline stage execution: duration plus a
// success/failure count.
func RecordStage(stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"stage": stage, "status": status}
	backend.IncCounter("dwh_stage_total", 1, lbls)
	backend.ObserveDuration("dwh_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows counts rows written to one relation during a run.
func RecordRows(relation string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter("dwh_rows_total", float64(n), Labels{"relation": relation})
}
