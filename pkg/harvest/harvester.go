package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/problem-harvester/pkg/logging"
	"github.com/Sternrassler/problem-harvester/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// factory registers series with metrics.Registry.
var factory = promauto.With(metrics.Registry)

// Prometheus metrics for harvest runs.
var (
	harvestPagesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "harvest_pages_total",
		Help: "Total pages fetched successfully",
	})

	harvestRecordsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "harvest_records_total",
		Help: "Total records accumulated",
	})

	harvestAbortsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_aborts_total",
		Help: "Total aborted runs by error class",
	}, []string{"class"})

	harvestRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_runs_total",
		Help: "Total harvest runs by outcome",
	}, []string{"outcome"})

	harvestCursor = factory.NewGauge(prometheus.GaugeOpts{
		Name: "harvest_cursor",
		Help: "Cursor of the current or last harvest run",
	})

	harvestRunDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_run_duration_seconds",
		Help:    "Duration of the fetch loop in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

// DefaultArtifactName is the artifact written when Config.ArtifactName is empty.
const DefaultArtifactName = "leetcode_all_problems.json"

// Config holds harvester configuration
type Config struct {
	// PageSize is the limit sent with every request
	PageSize int
	// StartCursor lets an operator restart an aborted run where it stopped
	StartCursor int
	// RequestTimeout bounds each FetchPage call
	RequestTimeout time.Duration
	// WriteTimeout bounds the final artifact write
	WriteTimeout time.Duration
	// Filters are passed through to the source
	Filters map[string]any
	// ArtifactName is the location the records are written to
	ArtifactName string
	// OnPhase, if set, is called on every state transition
	OnPhase func(Phase)
}

// DefaultConfig returns 50-record pages, a 15s request timeout and the
// default artifact name.
func DefaultConfig() Config {
	return Config{
		PageSize:       50,
		RequestTimeout: 15 * time.Second,
		WriteTimeout:   30 * time.Second,
		ArtifactName:   DefaultArtifactName,
	}
}

// Harvester collects every record of a paged source into one artifact.
type Harvester struct {
	source PageSource
	store  ArtifactStore
	config Config
	logger zerolog.Logger
}

// New creates a new harvester
func New(source PageSource, store ArtifactStore, config Config) (*Harvester, error) {
	if source == nil {
		return nil, fmt.Errorf("page source is required")
	}
	if store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if config.PageSize <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPageSize, config.PageSize)
	}
	if config.StartCursor < 0 {
		return nil, fmt.Errorf("start cursor must be >= 0 (got %d)", config.StartCursor)
	}
	if config.StartCursor > math.MaxInt-config.PageSize {
		return nil, fmt.Errorf("start cursor %d plus page size %d overflows", config.StartCursor, config.PageSize)
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 15 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if config.ArtifactName == "" {
		config.ArtifactName = DefaultArtifactName
	}

	return &Harvester{
		source: source,
		store:  store,
		config: config,
		logger: logging.NewLogger("harvester"),
	}, nil
}

// HarvestAll fetches pages until the cursor reaches the reported total or a
// fatal error occurs, then writes the accumulated records once.
//
// The harvest outcome is always in the returned Result; a non-nil error
// means only that the artifact write failed.
func (h *Harvester) HarvestAll(ctx context.Context) (Result, error) {
	start := time.Now()
	h.enter(PhaseIdle)

	result := Result{
		Records:  make([]Record, 0),
		Cursor:   h.config.StartCursor,
		Total:    Unbounded(),
		Artifact: h.config.ArtifactName,
	}

	h.logger.Info().
		Int("cursor", result.Cursor).
		Int("page_size", h.config.PageSize).
		Str("artifact", result.Artifact).
		Msg("Starting harvest")

	h.enter(PhaseFetching)
	for result.Total.Above(result.Cursor) {
		if err := ctx.Err(); err != nil {
			h.abort(&result, fmt.Errorf("%w: %v", ErrInterrupted, err))
			break
		}

		// The cursor must stay strictly increasing.
		if result.Cursor > math.MaxInt-h.config.PageSize {
			h.abort(&result, &ShapeError{
				Detail: fmt.Sprintf("cursor %d cannot advance by page size %d", result.Cursor, h.config.PageSize),
			})
			break
		}

		page, err := h.fetch(ctx, result.Cursor)
		if err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %v", ErrInterrupted, err)
			}
			h.abort(&result, err)
			break
		}

		// An empty page is only acceptable when nothing is left at this cursor.
		if len(page.Records) == 0 && result.Cursor < page.ReportedTotal {
			h.abort(&result, &ShapeError{
				Detail: fmt.Sprintf("empty page while source reports %d records", page.ReportedTotal),
			})
			break
		}

		result.Records = append(result.Records, page.Records...)
		result.Total = Known(page.ReportedTotal)
		result.Cursor += h.config.PageSize
		result.Pages++

		harvestPagesTotal.Inc()
		harvestRecordsTotal.Add(float64(len(page.Records)))
		harvestCursor.Set(float64(result.Cursor))

		h.logger.Info().
			Int("fetched", result.Total.Clamp(result.Cursor)).
			Int("total", page.ReportedTotal).
			Int("records", len(result.Records)).
			Msgf("Fetched %d / %d records", result.Total.Clamp(result.Cursor), page.ReportedTotal)
	}

	if result.Outcome == "" {
		result.Outcome = OutcomeCompleted
		h.enter(PhaseCompleted)
	}
	harvestRunsTotal.WithLabelValues(string(result.Outcome)).Inc()
	harvestRunDuration.Observe(time.Since(start).Seconds())

	h.enter(PhaseWriting)
	writeErr := h.write(ctx, result)
	h.enter(PhaseDone)

	event := h.logger.Info()
	if !result.Completed() {
		event = h.logger.Warn().Str("reason", result.Reason())
	}
	event.
		Str("outcome", string(result.Outcome)).
		Int("records", len(result.Records)).
		Int("pages", result.Pages).
		Int("cursor", result.Cursor).
		Stringer("total", result.Total).
		Dur("duration", time.Since(start)).
		Msg("Harvest finished")

	return result, writeErr
}

// fetch requests the page at cursor with the per-request timeout applied.
func (h *Harvester) fetch(ctx context.Context, cursor int) (Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, h.config.RequestTimeout)
	defer cancel()

	h.logger.Debug().
		Int("cursor", cursor).
		Int("page_size", h.config.PageSize).
		Msg("Fetching page")

	page, err := h.source.FetchPage(pageCtx, PageRequest{
		Cursor:   cursor,
		PageSize: h.config.PageSize,
		Filters:  h.config.Filters,
	})
	if err == nil {
		if page.ReportedTotal < 0 {
			return Page{}, &ShapeError{Detail: fmt.Sprintf("negative total %d", page.ReportedTotal)}
		}
		return page, nil
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if ctx.Err() == nil && errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			transportErr.Timeout = true
		}
		return Page{}, err
	}
	if Classify(err) == ErrorClassTransport {
		// Unclassified source failure.
		return Page{}, &TransportError{
			Timeout: ctx.Err() == nil && errors.Is(pageCtx.Err(), context.DeadlineExceeded),
			Err:     err,
		}
	}
	return Page{}, err
}

// abort records a fatal error. Records collected so far are kept.
func (h *Harvester) abort(result *Result, err error) {
	class := Classify(err)
	result.Outcome = OutcomeAborted
	result.Err = &AbortError{Cursor: result.Cursor, Class: class, Err: err}
	harvestAbortsTotal.WithLabelValues(string(class)).Inc()

	event := h.logger.Error().
		Err(err).
		Int("cursor", result.Cursor).
		Str("error_class", string(class)).
		Int("records", len(result.Records))

	var (
		transportErr *TransportError
		protocolErr  *ProtocolError
		shapeErr     *ShapeError
	)
	switch {
	case errors.As(err, &protocolErr):
		event = event.RawJSON("payload", rawOrQuoted(protocolErr.Payload))
	case errors.As(err, &shapeErr) && len(shapeErr.Payload) > 0:
		event = event.Bytes("payload", shapeErr.Payload)
	case errors.As(err, &transportErr) && transportErr.StatusCode != 0:
		event = event.Int("status_code", transportErr.StatusCode).Str("body", transportErr.Body)
	}
	event.Msg("Page fetch failed - aborting harvest")

	h.enter(PhaseAborted)
}

// write stores the records once. It runs on a context detached from ctx so
// an interrupted run still persists what it collected.
func (h *Harvester) write(ctx context.Context, result Result) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.WriteTimeout)
	defer cancel()

	if err := h.store.Put(writeCtx, result.Artifact, result.Records); err != nil {
		h.logger.Error().
			Err(err).
			Str("artifact", result.Artifact).
			Int("records", len(result.Records)).
			Msg("Failed to write artifact")
		return fmt.Errorf("write artifact %s: %w", result.Artifact, err)
	}

	h.logger.Info().
		Str("artifact", result.Artifact).
		Int("records", len(result.Records)).
		Msg("Artifact written")
	return nil
}

func (h *Harvester) enter(phase Phase) {
	h.logger.Debug().Str("phase", string(phase)).Msg("Harvest phase")
	if h.config.OnPhase != nil {
		h.config.OnPhase(phase)
	}
}

// rawOrQuoted returns payload when it is valid JSON, otherwise a JSON string.
func rawOrQuoted(payload []byte) []byte {
	if json.Valid(payload) {
		return payload
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}
