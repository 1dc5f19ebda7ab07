// Package source implements the LeetCode GraphQL problem list as a
// harvest.PageSource.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/problem-harvester/pkg/harvest"
	"github.com/Sternrassler/problem-harvester/pkg/logging"
	"github.com/Sternrassler/problem-harvester/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// factory registers series with metrics.Registry.
var factory = promauto.With(metrics.Registry)

// Prometheus metrics for source requests.
var (
	sourceRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "source_requests_total",
		Help: "Total page requests by status",
	}, []string{"status"})

	sourceRequestDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "source_request_duration_seconds",
		Help:    "Page request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	sourceErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "source_errors_total",
		Help: "Total page errors by class",
	}, []string{"class"})
)

// Defaults matching the public LeetCode problem set.
const (
	DefaultEndpoint  = "https://leetcode.com/graphql"
	DefaultReferer   = "https://leetcode.com/problemset/all/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

	// sessionCookie carries the optional credential.
	sessionCookie = "LEETCODE_SESSION"

	// errorBodyLimit caps the response body kept on a TransportError.
	errorBodyLimit = 512
)

// Client fetches problem list pages.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the GraphQL URL.
	Endpoint string

	// UserAgent and Referer are sent with every request. The endpoint
	// rejects requests that do not look like they come from the problem set page.
	UserAgent string
	Referer   string

	// SessionToken is an optional credential sent as the LEETCODE_SESSION cookie.
	SessionToken string

	// CategorySlug narrows the list ("" for all problems).
	CategorySlug string

	// MaxBodyBytes caps the response body read per page.
	MaxBodyBytes int64

	// Retry applies to transport errors only.
	Retry RetryConfig
}

// DefaultConfig returns a configuration for the public endpoint with retry disabled.
func DefaultConfig() Config {
	return Config{
		Endpoint:     DefaultEndpoint,
		UserAgent:    DefaultUserAgent,
		Referer:      DefaultReferer,
		MaxBodyBytes: 64 << 20,
		Retry:        DefaultRetryConfig(),
	}
}

// New creates a new source client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 20
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		config: cfg,
		logger: logging.NewLogger("leetcode-source"),
	}, nil
}

// FetchPage implements harvest.PageSource.
func (c *Client) FetchPage(ctx context.Context, req harvest.PageRequest) (harvest.Page, error) {
	body, err := json.Marshal(graphQLRequest{
		Query: problemsetQuery,
		Variables: variables{
			CategorySlug: c.config.CategorySlug,
			Limit:        req.PageSize,
			Skip:         req.Cursor,
			Filters:      filtersOrEmpty(req.Filters),
		},
	})
	if err != nil {
		return harvest.Page{}, fmt.Errorf("marshal query: %w", err)
	}

	var page harvest.Page
	err = retryWithBackoff(ctx, c.config.Retry, func() error {
		var attemptErr error
		page, attemptErr = c.do(ctx, body, req.Cursor)
		return attemptErr
	})
	if err != nil {
		sourceErrorsTotal.WithLabelValues(string(harvest.Classify(err))).Inc()
		return harvest.Page{}, err
	}
	return page, nil
}

// do performs a single request.
func (c *Client) do(ctx context.Context, body []byte, cursor int) (harvest.Page, error) {
	startTime := time.Now()
	defer func() {
		sourceRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return harvest.Page{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.Referer != "" {
		httpReq.Header.Set("Referer", c.config.Referer)
	}
	if c.config.SessionToken != "" {
		httpReq.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.config.SessionToken})
	}

	c.logger.Debug().
		Int("cursor", cursor).
		Str("endpoint", c.config.Endpoint).
		Msg("Executing page request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		sourceRequestsTotal.WithLabelValues("network_error").Inc()
		return harvest.Page{}, &harvest.TransportError{Err: err}
	}
	defer resp.Body.Close()

	sourceRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	// One byte past the cap tells a full body from a cut-off one.
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		return harvest.Page{}, &harvest.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	oversized := int64(len(data)) > c.config.MaxBodyBytes
	if oversized {
		data = data[:c.config.MaxBodyBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Int("cursor", cursor).
			Int("status_code", resp.StatusCode).
			Msg("Page request returned non-2xx status")
		return harvest.Page{}, &harvest.TransportError{
			StatusCode: resp.StatusCode,
			Body:       truncate(data, errorBodyLimit),
		}
	}

	if oversized {
		return harvest.Page{}, &harvest.ShapeError{
			Detail:  fmt.Sprintf("response exceeds %d bytes", c.config.MaxBodyBytes),
			Payload: []byte(truncate(data, errorBodyLimit)),
		}
	}

	return decodePage(data)
}

// decodePage maps a 2xx body to a page or a protocol/shape error.
func decodePage(data []byte) (harvest.Page, error) {
	var decoded graphQLResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return harvest.Page{}, &harvest.ShapeError{
			Detail:  fmt.Sprintf("decode response: %v", err),
			Payload: []byte(truncate(data, errorBodyLimit)),
		}
	}

	if len(decoded.Errors) > 0 && !bytes.Equal(decoded.Errors, []byte("null")) {
		return harvest.Page{}, &harvest.ProtocolError{Payload: decoded.Errors}
	}

	if decoded.Data == nil || decoded.Data.List == nil {
		return harvest.Page{}, &harvest.ShapeError{
			Detail:  "missing data.problemsetQuestionList",
			Payload: []byte(truncate(data, errorBodyLimit)),
		}
	}
	list := decoded.Data.List
	if list.Total == nil {
		return harvest.Page{}, &harvest.ShapeError{Detail: "missing total"}
	}
	if list.Questions == nil {
		return harvest.Page{}, &harvest.ShapeError{Detail: "missing questions"}
	}

	return harvest.Page{
		Records:       list.Questions,
		ReportedTotal: *list.Total,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func filtersOrEmpty(filters map[string]any) map[string]any {
	if filters == nil {
		return map[string]any{}
	}
	return filters
}

func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
