package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/Sternrassler/problem-harvester/pkg/harvest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	sourceRetriesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "source_retries_total",
		Help: "Total number of page request retries",
	})

	sourceRetryBackoffSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "source_retry_backoff_seconds",
		Help:    "Backoff duration before a page request retry",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	})

	sourceRetryExhaustedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "source_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the number of attempts including the first one.
	// 1 disables retry.
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration: a single
// attempt, so any failure aborts the harvest.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// shouldRetry reports whether err is a transient transport failure:
// no response at all, 429 or 5xx. Protocol and shape errors are never retried.
func shouldRetry(err error) bool {
	var transportErr *harvest.TransportError
	if !errors.As(err, &transportErr) {
		return false
	}
	switch {
	case transportErr.StatusCode == 0:
		return true
	case transportErr.StatusCode == http.StatusTooManyRequests:
		return true
	case transportErr.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// retryWithBackoff executes fn with exponential backoff and ±20% jitter.
// The last error is returned unchanged so its class survives.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Page request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !shouldRetry(err) || ctx.Err() != nil {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		sourceRetriesTotal.Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		sourceRetryBackoffSeconds.Observe(jitter.Seconds())

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying page request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &harvest.TransportError{Err: fmt.Errorf("cancelled during retry backoff: %w (last error: %v)", ctx.Err(), lastErr)}
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	if config.MaxAttempts > 1 {
		sourceRetryExhaustedTotal.Inc()
		log.Warn().
			Int("max_attempts", config.MaxAttempts).
			Msg("Retry attempts exhausted")
	}

	return lastErr
}
