// Package testutil provides testing utilities for the problem harvester.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines a canned response for one skip value.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSource is a configurable mock of the problem list GraphQL endpoint.
// By default it serves a catalog of Total generated problems.
type MockSource struct {
	server    *httptest.Server
	mu        sync.RWMutex
	total     int
	responses map[int][]MockResponse

	// Tracking
	RequestCount      int
	Skips             []int
	LastFilters       map[string]any
	LastRequestHeader http.Header
}

type mockRequest struct {
	Query     string `json:"query"`
	Variables struct {
		Limit   int            `json:"limit"`
		Skip    int            `json:"skip"`
		Filters map[string]any `json:"filters"`
	} `json:"variables"`
}

// NewMockSource creates a mock endpoint serving total problems.
func NewMockSource(total int) *MockSource {
	mock := &MockSource{
		total:     total,
		responses: make(map[int][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.Skips = append(mock.Skips, req.Variables.Skip)
		mock.LastFilters = req.Variables.Filters
		mock.LastRequestHeader = r.Header.Clone()

		// Canned responses are consumed in order; the last one sticks.
		var canned *MockResponse
		if queue := mock.responses[req.Variables.Skip]; len(queue) > 0 {
			resp := queue[0]
			canned = &resp
			if len(queue) > 1 {
				mock.responses[req.Variables.Skip] = queue[1:]
			}
		}
		total := mock.total
		mock.mu.Unlock()

		if canned != nil {
			writeResponse(w, *canned)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(PageBody(req.Variables.Skip, req.Variables.Limit, total))
	}))

	return mock
}

// URL returns the mock endpoint URL.
func (m *MockSource) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSource) Close() {
	m.server.Close()
}

// SetTotal changes the reported total for subsequent requests.
func (m *MockSource) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// SetResponse queues canned responses for requests at skip.
func (m *MockSource) SetResponse(skip int, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[skip] = resps
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSource) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetSkips returns the skip values requested, in order.
func (m *MockSource) GetSkips() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.Skips...)
}

// GetLastFilters returns the filters of the last request.
func (m *MockSource) GetLastFilters() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastFilters
}

// GetLastRequestHeader returns the headers of the last request.
func (m *MockSource) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Problem returns the generated problem at index i.
func Problem(i int) map[string]any {
	return map[string]any{
		"questionFrontendId": fmt.Sprintf("%d", i+1),
		"title":              fmt.Sprintf("Problem %d", i+1),
		"titleSlug":          fmt.Sprintf("problem-%d", i+1),
		"difficulty":         "Easy",
		"topicTags":          []map[string]string{{"name": "Array", "slug": "array"}},
	}
}

// PageBody renders a successful GraphQL response for a page.
func PageBody(skip, limit, total int) []byte {
	questions := make([]map[string]any, 0, limit)
	for i := skip; i < skip+limit && i < total; i++ {
		questions = append(questions, Problem(i))
	}

	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"problemsetQuestionList": map[string]any{
				"total":     total,
				"questions": questions,
			},
		},
	})
	return body
}

// NewGraphQLErrorResponse creates a 200 response carrying a GraphQL error.
func NewGraphQLErrorResponse(message string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"errors": []map[string]any{{"message": message}},
		"data":   nil,
	})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewMissingDataResponse creates a 200 response without the problem list.
func NewMissingDataResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": {}}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
