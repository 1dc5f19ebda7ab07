// Package metrics documents the Prometheus series exported by the harvester
// and writes them out for batch runs.
//
// Series are defined next to the code that updates them (harvest, source,
// artifact) and registered with Registry through promauto.With.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registerer all harvester series are created on.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the registered metrics.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all metrics in text exposition format to path, for
// the node-exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics textfile path is required")
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Harvest Metrics (pkg/harvest):
//   - harvest_pages_total (Counter): Pages fetched successfully
//   - harvest_records_total (Counter): Records accumulated
//   - harvest_runs_total{outcome} (Counter): Runs by outcome (completed, aborted)
//   - harvest_aborts_total{class} (Counter): Aborts by class (transport, protocol, shape, interrupted)
//   - harvest_cursor (Gauge): Cursor of the current or last run
//   - harvest_run_duration_seconds (Histogram): Fetch loop duration
//
// Source Metrics (pkg/source):
//   - source_requests_total{status} (Counter): Page requests by HTTP status or network_error
//   - source_request_duration_seconds (Histogram): Page request duration
//   - source_errors_total{class} (Counter): Failed page fetches by class
//   - source_retries_total (Counter): Retry attempts
//   - source_retry_backoff_seconds (Histogram): Backoff before a retry
//   - source_retry_exhausted_total (Counter): Fetches that exhausted their attempts
//
// Artifact Metrics (pkg/artifact):
//   - harvest_artifact_writes_total{backend, status} (Counter): Artifact writes
//   - harvest_artifact_size_bytes{backend} (Gauge): Size of the last artifact
//   - harvest_artifact_records{backend} (Gauge): Records in the last artifact
//
// Example Prometheus Queries:
//
//   # Last run aborted
//   increase(harvest_runs_total{outcome="aborted"}[1d]) > 0
//
//   # Records in the last artifact dropped by more than 5%
//   harvest_artifact_records < 0.95 * harvest_artifact_records offset 1d
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(source_request_duration_seconds_bucket[5m]))
