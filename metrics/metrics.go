// Package metrics exposes ingestion pass counters in the Prometheus text
// format, written as a node exporter textfile after each pass.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/viant/kdb/ingest"
)

const namespace = "kdb"

// Recorder collects per-pass metrics. It implements ingest.Observer.
type Recorder struct {
	registry *prometheus.Registry
	library  string

	// FilesTotal counts files by terminal state and organism group.
	FilesTotal *prometheus.CounterVec
	// DigestsTotal counts digests by origin (sidecar, computed).
	DigestsTotal *prometheus.CounterVec
	// PassDuration is the wall time of the last pass.
	PassDuration *prometheus.GaugeVec
	// LastSuccess is the completion time of the last uninterrupted pass.
	LastSuccess *prometheus.GaugeVec
	// LedgerEntries is the ledger size after the last pass.
	LedgerEntries *prometheus.GaugeVec
}

// New creates a Recorder with its own registry for the named library.
func New(library string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		library:  library,
		FilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_files_total",
			Help:      "Files processed by the last ingestion pass by state and group",
		}, []string{"library", "state", "group"}),
		DigestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_digests_total",
			Help:      "Digests resolved by origin",
		}, []string{"library", "origin"}),
		PassDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_pass_duration_seconds",
			Help:      "Duration of the last ingestion pass",
		}, []string{"library"}),
		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_last_success_timestamp_seconds",
			Help:      "Unix time of the last completed ingestion pass",
		}, []string{"library"}),
		LedgerEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Digests recorded in the library ledger",
		}, []string{"library"}),
	}
}

// Observe records one file outcome.
func (r *Recorder) Observe(result ingest.FileResult) {
	r.FilesTotal.WithLabelValues(r.library, result.State.String(), result.Group).Inc()
	if result.State == ingest.Unreadable || result.Digest.IsZero() {
		return
	}
	r.DigestsTotal.WithLabelValues(r.library, result.Source.String()).Inc()
}

// Finish records pass level values.
func (r *Recorder) Finish(summary *ingest.Summary, ledgerEntries int) {
	if summary == nil {
		return
	}
	r.PassDuration.WithLabelValues(summary.Library).Set(summary.Duration.Seconds())
	r.LedgerEntries.WithLabelValues(summary.Library).Set(float64(ledgerEntries))
	if !summary.Interrupted {
		end := summary.Started.Add(summary.Duration)
		r.LastSuccess.WithLabelValues(summary.Library).Set(float64(end.Unix()))
	}
}

// WriteFile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: create directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
