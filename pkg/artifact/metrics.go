package artifact

import (
	"github.com/Sternrassler/problem-harvester/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// factory registers series with metrics.Registry.
var factory = promauto.With(metrics.Registry)

var (
	// ArtifactWrites tracks writes by backend and status
	ArtifactWrites = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_artifact_writes_total",
			Help: "Total number of artifact writes",
		},
		[]string{"backend", "status"}, // "file"|"redis", "ok"|"error"
	)

	// ArtifactSize tracks the size of the last artifact written
	ArtifactSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvest_artifact_size_bytes",
			Help: "Size of the last artifact written in bytes",
		},
		[]string{"backend"},
	)

	// ArtifactRecords tracks the record count of the last artifact written
	ArtifactRecords = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvest_artifact_records",
			Help: "Number of records in the last artifact written",
		},
		[]string{"backend"},
	)
)

func recordWrite(backend string, err error, size, records int) {
	if err != nil {
		ArtifactWrites.WithLabelValues(backend, "error").Inc()
		return
	}
	ArtifactWrites.WithLabelValues(backend, "ok").Inc()
	ArtifactSize.WithLabelValues(backend).Set(float64(size))
	ArtifactRecords.WithLabelValues(backend).Set(float64(records))
}
