// Package metrics counts generation outcomes for a single run and writes them
// in the Prometheus text format for a node exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fightgen"

// Recorder holds the run's collectors on a private registry. A nil Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	batches       prometheus.Counter
	records       prometheus.Counter
	failed        prometheus.Counter
	abandoned     prometheus.Counter
	duplicates    prometheus.Counter
	storageErrors prometheus.Counter
	lastID        prometheus.Gauge
	latency       prometheus.Histogram
}

// New creates a Recorder with every collector registered
func New() *Recorder {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	r := &Recorder{
		registry:      prometheus.NewRegistry(),
		batches:       counter("batches_accepted_total", "Batches appended to the record history."),
		records:       counter("records_accepted_total", "Fight records appended to the record history."),
		failed:        counter("failed_attempts_total", "Generation attempts that produced no usable batch."),
		abandoned:     counter("abandoned_rounds_total", "Rounds abandoned after exhausting retries."),
		duplicates:    counter("duplicate_facts_total", "Records whose winning fact was already used."),
		storageErrors: counter("storage_errors_total", "Failed appends to the record history."),
		lastID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_fight_id",
			Help:      "Highest fight id persisted.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of generation requests.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
	}

	r.registry.MustRegister(r.batches, r.records, r.failed, r.abandoned, r.duplicates, r.storageErrors, r.lastID, r.latency)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// BatchAccepted counts one accepted batch of n records
func (r *Recorder) BatchAccepted(n, lastID int) {
	if r == nil {
		return
	}
	r.batches.Inc()
	r.records.Add(float64(n))
	r.lastID.Set(float64(lastID))
}

func (r *Recorder) FailedAttempt() {
	if r == nil {
		return
	}
	r.failed.Inc()
}

func (r *Recorder) RoundAbandoned() {
	if r == nil {
		return
	}
	r.abandoned.Inc()
}

func (r *Recorder) DuplicateFacts(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.duplicates.Add(float64(n))
}

func (r *Recorder) StorageError() {
	if r == nil {
		return
	}
	r.storageErrors.Inc()
}

// SetLastID records the resume point without counting a batch
func (r *Recorder) SetLastID(id int) {
	if r == nil {
		return
	}
	r.lastID.Set(float64(id))
}

// ObserveGeneration records how long a generation request took
func (r *Recorder) ObserveGeneration(d time.Duration) {
	if r == nil {
		return
	}
	r.latency.Observe(d.Seconds())
}

// WriteTextfile writes every metric to path, creating its directory
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
